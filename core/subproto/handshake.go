package subproto

import (
	"github.com/ptls-project/ptls/core/crypto"
)

// HandshakeType is the inner content-type byte that leads every Handshake
// record's payload, selecting which of the four handshake messages
// follows.
type HandshakeType uint8

const (
	TypeClientHello          HandshakeType = 0
	TypeEncryptedClientHello HandshakeType = 1
	TypeServerHello          HandshakeType = 2
	TypeFinished             HandshakeType = 3
)

func (t HandshakeType) valid() bool {
	return t <= TypeFinished
}

// ClientHello is sent unencrypted to open a full handshake: the client's
// public key and the two hashes (signature, padding) it wants the peer to
// bind its primitives to.
type ClientHello struct {
	PublicKeyDER  []byte
	SignatureHash crypto.HashId
	PaddingHash   crypto.HashId
}

func (m *ClientHello) encode(e *Encoder) {
	e.WriteBlob(m.PublicKeyDER)
	e.WriteUint8(uint8(m.SignatureHash))
	e.WriteUint8(uint8(m.PaddingHash))
}

func decodeClientHello(d *Decoder) (*ClientHello, error) {
	pub, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	pad, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	return &ClientHello{PublicKeyDER: pub, SignatureHash: crypto.HashId(sig), PaddingHash: crypto.HashId(pad)}, nil
}

// EncryptedClientHello is the single message of an abbreviated handshake:
// everything ClientHello carries, plus a nonce and its signature, all
// encrypted under the server's a-priori-known public key.
type EncryptedClientHello struct {
	PublicKeyDER    []byte
	SignatureHash   crypto.HashId
	PaddingHash     crypto.HashId
	Random          uint64
	RandomSignature []byte
}

func (m *EncryptedClientHello) encode(e *Encoder) {
	e.WriteBlob(m.PublicKeyDER)
	e.WriteUint8(uint8(m.SignatureHash))
	e.WriteUint8(uint8(m.PaddingHash))
	e.WriteUint64(m.Random)
	e.WriteBlob(m.RandomSignature)
}

func decodeEncryptedClientHello(d *Decoder) (*EncryptedClientHello, error) {
	pub, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	pad, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	random, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	randSig, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	return &EncryptedClientHello{
		PublicKeyDER: pub, SignatureHash: crypto.HashId(sig), PaddingHash: crypto.HashId(pad),
		Random: random, RandomSignature: randSig,
	}, nil
}

// ServerHello replies to ClientHello, encrypted under the client's
// just-received public key. TrustedAuthorityID and CASignature carry the
// optional CA-signature bundle (spec.md §3 SignedPublicKey); this
// implementation transmits them but does not verify them (§9 open
// question).
type ServerHello struct {
	PublicKeyDER      []byte
	ExpiresAt         int64
	SignatureHash     crypto.HashId
	PaddingHash       crypto.HashId
	TrustedAuthorityID string
	CASignature       []byte
}

func (m *ServerHello) encode(e *Encoder) {
	e.WriteBlob(m.PublicKeyDER)
	e.WriteUint64(uint64(m.ExpiresAt))
	e.WriteUint8(uint8(m.SignatureHash))
	e.WriteUint8(uint8(m.PaddingHash))
	e.WriteString(m.TrustedAuthorityID)
	e.WriteBlob(m.CASignature)
}

func decodeServerHello(d *Decoder) (*ServerHello, error) {
	pub, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	expires, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	pad, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	authority, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	caSig, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	return &ServerHello{
		PublicKeyDER: pub, ExpiresAt: int64(expires), SignatureHash: crypto.HashId(sig), PaddingHash: crypto.HashId(pad),
		TrustedAuthorityID: authority, CASignature: caSig,
	}, nil
}

// Finished carries the nonce that binds the session, signed under the
// sender's private key, encrypted under the peer's public key.
type Finished struct {
	Random          uint64
	RandomSignature []byte
}

func (m *Finished) encode(e *Encoder) {
	e.WriteUint64(m.Random)
	e.WriteBlob(m.RandomSignature)
}

func decodeFinished(d *Decoder) (*Finished, error) {
	random, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	sig, err := d.ReadBlob()
	if err != nil {
		return nil, err
	}
	return &Finished{Random: random, RandomSignature: sig}, nil
}

// EncodeClientHello, EncodeEncryptedClientHello, EncodeServerHello and
// EncodeFinished each produce the full Handshake record payload: the inner
// type tag followed by the message's deterministic encoding.
func EncodeClientHello(m *ClientHello) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(TypeClientHello))
	m.encode(e)
	return e.Bytes()
}

func EncodeEncryptedClientHello(m *EncryptedClientHello) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(TypeEncryptedClientHello))
	m.encode(e)
	return e.Bytes()
}

func EncodeServerHello(m *ServerHello) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(TypeServerHello))
	m.encode(e)
	return e.Bytes()
}

func EncodeFinished(m *Finished) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(TypeFinished))
	m.encode(e)
	return e.Bytes()
}

// The Encode*Body/Decode*Body pairs below split a message into its inner
// type tag (always transmitted in the clear, so a receiver can tell what
// is arriving before it decrypts anything) and its field body (plaintext
// for ClientHello, ciphertext under a peer key for the other three). The
// tunnel assembles/disassembles the tag byte itself around these.

func EncodeClientHelloBody(m *ClientHello) []byte {
	e := NewEncoder()
	m.encode(e)
	return e.Bytes()
}

func DecodeClientHelloBody(data []byte) (*ClientHello, error) {
	return decodeClientHello(NewDecoder(data))
}

func EncodeEncryptedClientHelloBody(m *EncryptedClientHello) []byte {
	e := NewEncoder()
	m.encode(e)
	return e.Bytes()
}

func DecodeEncryptedClientHelloBody(data []byte) (*EncryptedClientHello, error) {
	return decodeEncryptedClientHello(NewDecoder(data))
}

func EncodeServerHelloBody(m *ServerHello) []byte {
	e := NewEncoder()
	m.encode(e)
	return e.Bytes()
}

func DecodeServerHelloBody(data []byte) (*ServerHello, error) {
	return decodeServerHello(NewDecoder(data))
}

func EncodeFinishedBody(m *Finished) []byte {
	e := NewEncoder()
	m.encode(e)
	return e.Bytes()
}

func DecodeFinishedBody(data []byte) (*Finished, error) {
	return decodeFinished(NewDecoder(data))
}

// DecodeHandshakePayload reads the inner type tag and dispatches to the
// matching decoder, returning the type tag alongside the decoded message
// (one of *ClientHello, *EncryptedClientHello, *ServerHello, *Finished) as
// an untyped value for the caller to type-switch on.
func DecodeHandshakePayload(payload []byte) (HandshakeType, interface{}, error) {
	d := NewDecoder(payload)
	tagByte, err := d.ReadUint8()
	if err != nil {
		return 0, nil, err
	}
	tag := HandshakeType(tagByte)
	if !tag.valid() {
		return 0, nil, ErrInvalidContentType
	}
	switch tag {
	case TypeClientHello:
		m, err := decodeClientHello(d)
		return tag, m, err
	case TypeEncryptedClientHello:
		m, err := decodeEncryptedClientHello(d)
		return tag, m, err
	case TypeServerHello:
		m, err := decodeServerHello(d)
		return tag, m, err
	case TypeFinished:
		m, err := decodeFinished(d)
		return tag, m, err
	default:
		return 0, nil, ErrInvalidContentType
	}
}
