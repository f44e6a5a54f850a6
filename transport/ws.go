package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/coder/websocket"
)

// DialWS opens a WebSocket connection to url and adapts it into a
// net.Conn carrier via websocket.NetConn, so it can be handed straight to
// ptls.New like any other carrier.
func DialWS(ctx context.Context, url string) (net.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial ws %s: %w", url, err)
	}
	return websocket.NetConn(ctx, conn, websocket.MessageBinary), nil
}

// AcceptWS upgrades an incoming HTTP request to a WebSocket and adapts it
// into a net.Conn carrier, for mounting under a chi route in a demo
// server. OriginPatterns is left wide open (demo simplicity) the same way
// the teacher's own WebSocket demo does.
func AcceptWS(w http.ResponseWriter, r *http.Request) (net.Conn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return nil, fmt.Errorf("transport: accept ws: %w", err)
	}
	return websocket.NetConn(r.Context(), conn, websocket.MessageBinary), nil
}
