package subproto

import "errors"

var (
	// ErrTruncated is returned by any Decode function when the input ends
	// before a complete message could be read.
	ErrTruncated = errors.New("subproto: truncated message")

	// ErrInvalidContentType is returned when a Handshake record's inner
	// type tag does not match one of ClientHello/EncryptedClientHello/
	// ServerHello/Finished.
	ErrInvalidContentType = errors.New("subproto: invalid handshake content type")

	// ErrInappropriatePublicKey names a public_key_der field that is not a
	// DER-encoded RSA public key. This package does not parse keys and never
	// returns it; the tunnel reports parse failures with
	// ptls.ErrInappropriatePublicKey.
	ErrInappropriatePublicKey = errors.New("subproto: inappropriate public key encoding")

	// ErrInvalidAlertBody is returned when an Alert's body kind byte does
	// not match one of the enumerated AlertBody variants.
	ErrInvalidAlertBody = errors.New("subproto: invalid alert body kind")
)
