package coordinator

import (
	"syscall"
)

// setReuseAddr sets SO_REUSEADDR on a listening socket before bind, so
// a restarted coordinator can rebind its endpoint ports immediately
// per spec.md §6. Socket options have no third-party equivalent in the
// examples; this is a deliberate stdlib use (see DESIGN.md).
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
