package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net"
)

// MaxMessageSize bounds a single wire message. spec.md §6: "each
// message fits in the implementation's read buffer (1 KiB in the
// reference; implementations should accept up to 64 KiB)".
const MaxMessageSize = 64 * 1024

// ErrMessageTooLarge is returned when a peer writes more than
// MaxMessageSize bytes without a newline.
var ErrMessageTooLarge = errors.New("protocol: message exceeds maximum size")

// Conn wraps a net.Conn with newline-delimited JSON framing, the wire
// format every endpoint in spec.md §6 speaks.
type Conn struct {
	nc     net.Conn
	reader *bufio.Reader
}

func NewConn(nc net.Conn) *Conn {
	reader := bufio.NewReaderSize(nc, MaxMessageSize)
	return &Conn{nc: nc, reader: reader}
}

func (c *Conn) Close() error { return c.nc.Close() }

func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// ReadMessage reads one newline-terminated line and unmarshals it into
// v. A connection closed after writing a final line with no trailing
// newline still yields that line's content.
func (c *Conn) ReadMessage(v any) error {
	// ReadSlice, unlike ReadString, stops with ErrBufferFull once the
	// MaxMessageSize buffer fills without a newline.
	raw, err := c.reader.ReadSlice('\n')
	line := string(raw)
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return ErrMessageTooLarge
		}
		if errors.Is(err, io.EOF) {
			if line == "" {
				return io.EOF
			}
		} else {
			return err
		}
	}
	return json.Unmarshal([]byte(trimNewline(line)), v)
}

// WriteMessage marshals v and writes it newline-terminated.
func (c *Conn) WriteMessage(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = c.nc.Write(b)
	return err
}

func trimNewline(s string) string {
	n := len(s)
	for n > 0 && (s[n-1] == '\n' || s[n-1] == '\r') {
		n--
	}
	return s[:n]
}
