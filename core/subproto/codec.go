// Package subproto implements the three sub-protocols multiplexed over a
// framed record: Handshake (ClientHello, EncryptedClientHello, ServerHello,
// Finished), Alert, and the plain-bytes ApplicationData payload. It defines
// their wire encoding: a small deterministic, length-delimited binary
// codec, since the original source's codec is not something this
// implementation needs to match bit-for-bit (see spec.md §9).
package subproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxBlobSize bounds a single length-prefixed field. Every handshake
// message fits in one framed record (at most frame.MaxPayloadLength
// bytes), so anything claiming to be larger than that is corrupt.
const maxBlobSize = 1 << 16

// Encoder appends fields to an in-memory buffer in the order they are
// written; decoding must mirror that order exactly.
type Encoder struct {
	buf bytes.Buffer
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) WriteUint8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// WriteBlob writes a uint32 big-endian length prefix followed by b's
// bytes, giving every variable-length field a self-describing boundary.
func (e *Encoder) WriteBlob(b []byte) {
	var lp [4]byte
	binary.BigEndian.PutUint32(lp[:], uint32(len(b)))
	e.buf.Write(lp[:])
	e.buf.Write(b)
}

// WriteString writes s as a blob of its UTF-8 bytes.
func (e *Encoder) WriteString(s string) { e.WriteBlob([]byte(s)) }

// Decoder reads fields back out of a byte slice in the order Encoder wrote
// them, returning ErrTruncated if the buffer runs out early.
type Decoder struct {
	r *bytes.Reader
}

func NewDecoder(b []byte) *Decoder { return &Decoder{r: bytes.NewReader(b)} }

func (d *Decoder) ReadUint8() (uint8, error) {
	v, err := d.r.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	return v, nil
}

func (d *Decoder) ReadUint16() (uint16, error) {
	var b [2]byte
	if _, err := readFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	var b [8]byte
	if _, err := readFull(d.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (d *Decoder) ReadBlob() ([]byte, error) {
	var lp [4]byte
	if _, err := readFull(d.r, lp[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lp[:])
	if n > maxBlobSize {
		return nil, fmt.Errorf("%w: blob of %d bytes exceeds %d byte cap", ErrTruncated, n, maxBlobSize)
	}
	out := make([]byte, n)
	if n > 0 {
		if _, err := readFull(d.r, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBlob()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Remaining reports whether the decoder has leftover bytes, useful for
// asserting a message was consumed exactly.
func (d *Decoder) Remaining() int { return d.r.Len() }

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := io.ReadFull(r, b)
	if err != nil {
		return n, ErrTruncated
	}
	return n, nil
}
