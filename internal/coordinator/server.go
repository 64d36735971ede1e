package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net"
)

// acceptLoop runs the standard accept-and-hand-off loop every endpoint
// in this package uses: accept connections until ctx is canceled or
// the listener is closed, handling each on its own goroutine.
func acceptLoop(ctx context.Context, ln net.Listener, logger *slog.Logger, handle func(net.Conn)) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.ErrorContext(ctx, "accept failed", "error", err)
			continue
		}
		go handle(nc)
	}
}

// listen opens a TCP listener with SO_REUSEADDR set, per spec.md §6.
func listen(addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: setReuseAddr,
	}
	return lc.Listen(context.Background(), "tcp", addr)
}
