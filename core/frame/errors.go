package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPayload is returned by Send when given an empty payload, and by
	// Receive when the wire header declares a zero-length payload. A
	// zero-length record is illegal in both directions.
	ErrNoPayload = errors.New("frame: record payload must not be empty")
)

// InappropriateVersion is returned by Receive when the header's version
// field is not 0, carrying the offending value.
type InappropriateVersion struct {
	Version uint16
}

func (e *InappropriateVersion) Error() string {
	return fmt.Sprintf("frame: inappropriate record version %d", e.Version)
}

// MessageTooLong is returned by Send when the payload exceeds
// MaxPayloadLength, and by Receive when the wire header declares a length
// exceeding it.
type MessageTooLong struct {
	Length int
}

func (e *MessageTooLong) Error() string {
	return fmt.Sprintf("frame: message too long (%d bytes)", e.Length)
}

// UnknownContentType is returned by Receive after it has drained the
// record's payload from the stream to keep framing aligned, when the
// content_type byte does not match any of the three sub-protocols.
type UnknownContentType struct {
	ContentType byte
}

func (e *UnknownContentType) Error() string {
	return fmt.Sprintf("frame: unknown content type %d", e.ContentType)
}
