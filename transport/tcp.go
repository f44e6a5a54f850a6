// Package transport adapts concrete carriers — a raw TCP connection or a
// WebSocket — into the (io.Reader, io.Writer) halves core/frame.Framer
// expects, so the same Tunnel runs unmodified over either.
package transport

import (
	"fmt"
	"net"
)

// DialTCP connects to addr and returns the net.Conn for use as both
// tunnel carrier halves (it implements both io.Reader and io.Writer).
func DialTCP(addr string) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return conn, nil
}

// ListenTCP starts a TCP listener on addr. Callers Accept() it themselves
// and pass the resulting net.Conn straight to ptls.New.
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return ln, nil
}
