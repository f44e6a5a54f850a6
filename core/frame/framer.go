// Package frame implements pTLS's record framer: a length-prefixed record
// protocol that multiplexes the Handshake, ApplicationData and Alert
// sub-protocols over a single bidirectional byte stream.
package frame

import (
	"encoding/binary"
	"io"
	"sync"
)

// Version is the only record version this implementation understands.
// It is reserved for future protocol revisions.
const Version uint16 = 0

// headerSize is version(2) + content_type(1) + length(2).
const headerSize = 5

// MaxPayloadLength bounds a single record's payload so the 5-byte header's
// length field (a u16) can always address it: u16::MAX - headerSize + 1.
const MaxPayloadLength = 0xFFFF - headerSize + 1

// ContentType selects which sub-protocol a record's payload belongs to.
type ContentType byte

const (
	ContentHandshake       ContentType = 0
	ContentApplicationData ContentType = 1
	ContentAlert           ContentType = 2
)

func (c ContentType) recognized() bool {
	return c == ContentHandshake || c == ContentApplicationData || c == ContentAlert
}

// Framer reads and writes framed records over a pair of unidirectional
// streams. The read and write sides are guarded by independent mutexes so
// one goroutine may be mid-Receive while another is mid-Send; concurrent
// Sends serialize on wmu, concurrent Receives serialize on rmu.
type Framer struct {
	r   io.Reader
	w   io.Writer
	rmu sync.Mutex
	wmu sync.Mutex
}

// New wraps a reader half and a writer half of a carrier stream (e.g. the
// two directions of a net.Conn, or a net.Conn used as both) in a Framer.
func New(r io.Reader, w io.Writer) *Framer {
	return &Framer{r: r, w: w}
}

// Send writes version ‖ content_type ‖ length ‖ payload as a single framed
// record in network byte order, under the write lock for the whole call.
// A partial write leaves the stream misaligned for any subsequent record;
// callers should treat it as fatal to the tunnel, per spec.
func (f *Framer) Send(ct ContentType, payload []byte) error {
	if len(payload) == 0 {
		return ErrNoPayload
	}
	if len(payload) > MaxPayloadLength {
		return &MessageTooLong{Length: len(payload)}
	}

	f.wmu.Lock()
	defer f.wmu.Unlock()

	var header [headerSize]byte
	binary.BigEndian.PutUint16(header[0:2], Version)
	header[2] = byte(ct)
	binary.BigEndian.PutUint16(header[3:5], uint16(len(payload)))

	if _, err := f.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := f.w.Write(payload); err != nil {
		return err
	}
	return nil
}

// Receive reads one framed record: the header first, then exactly length
// bytes of payload. If content_type is not one of the three recognized
// sub-protocols, the payload is still drained from the stream (to keep
// framing aligned for a caller that retries) before UnknownContentType is
// returned.
func (f *Framer) Receive() (ContentType, []byte, error) {
	f.rmu.Lock()
	defer f.rmu.Unlock()

	var header [headerSize]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		return 0, nil, err
	}

	version := binary.BigEndian.Uint16(header[0:2])
	if version != Version {
		return 0, nil, &InappropriateVersion{Version: version}
	}

	ct := ContentType(header[2])
	length := binary.BigEndian.Uint16(header[3:5])
	if length == 0 {
		return 0, nil, ErrNoPayload
	}
	if int(length) > MaxPayloadLength {
		return 0, nil, &MessageTooLong{Length: int(length)}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return 0, nil, err
	}

	if !ct.recognized() {
		return 0, nil, &UnknownContentType{ContentType: byte(ct)}
	}
	return ct, payload, nil
}
