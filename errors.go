// Package ptls implements a lightweight transport-security tunnel: RSA-OAEP
// encrypts every post-handshake payload directly and RSA-PSS signatures
// authenticate the peer and bind a freshness nonce. There is no symmetric
// session key and no forward secrecy.
package ptls

import (
	"errors"
	"fmt"

	"github.com/ptls-project/ptls/core/subproto"
)

var (
	// ErrNotReady is returned by Send when called before the handshake has
	// completed. The tunnel remains usable; the caller may retry once
	// Application state is reached.
	ErrNotReady = errors.New("ptls: tunnel not ready, handshake incomplete")

	// ErrSocketDied is returned by Send/Receive once the tunnel has
	// transitioned to Terminated or GracefullyDisconnected.
	ErrSocketDied = errors.New("ptls: tunnel socket has died")

	// ErrTimeout is returned when a handshake does not complete before the
	// configured timeout elapses.
	ErrTimeout = errors.New("ptls: handshake timed out")

	// ErrPeerKeyAlreadySet is returned by SetPeerPublicKey when a peer key
	// has already been installed: peer keys are append-only.
	ErrPeerKeyAlreadySet = errors.New("ptls: peer public key already set")

	// ErrUnknownCa names the case of a ServerHello whose
	// trusted_authority_id has no trusted entry. No code path returns it:
	// the handshake does not check the authority id or its signature.
	ErrUnknownCa = errors.New("ptls: unknown trusted authority")

	// ErrInappropriateMessage is returned when a message arrives out of
	// the order the current handshake role/state expects.
	ErrInappropriateMessage = errors.New("ptls: inappropriate message for current state")
)

// HandshakeError reports a fatal alert received from the peer. It carries
// the decoded subproto.AlertBody of that alert, mirroring how a typed RPC
// error carries its wire representation alongside a Go error.
type HandshakeError struct {
	Body subproto.AlertBody
	Err  error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ptls: handshake failed: %v", e.Err)
	}
	return "ptls: handshake failed"
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func newHandshakeError(body subproto.AlertBody, err error) *HandshakeError {
	return &HandshakeError{Body: body, Err: err}
}
