package subproto

// AlertFlags packs the boolean flags that lead every Alert payload into a
// single byte with explicit bit positions, per spec.md §9 (avoiding a
// language bit-field type whose layout isn't guaranteed).
type AlertFlags uint8

const (
	FlagEncrypted AlertFlags = 1 << 0
	FlagFatal     AlertFlags = 1 << 1
)

func (f AlertFlags) Encrypted() bool { return f&FlagEncrypted != 0 }
func (f AlertFlags) Fatal() bool     { return f&FlagFatal != 0 }

// AlertBodyKind selects which alert body variant follows the flags byte.
type AlertBodyKind uint8

const (
	AlertKindHandshakeError       AlertBodyKind = 0
	AlertKindInvalidRandom        AlertBodyKind = 1
	AlertKindDecryptError         AlertBodyKind = 2
	AlertKindInappropriateMessage AlertBodyKind = 3
	AlertKindKeyUpdate            AlertBodyKind = 4
	AlertKindClose                AlertBodyKind = 5
)

// HandshakeErrorSubkind enumerates the reasons a HandshakeError alert body
// can carry.
type HandshakeErrorSubkind uint8

const (
	HandshakeErrorGeneric               HandshakeErrorSubkind = 0
	HandshakeErrorInvalidContentType    HandshakeErrorSubkind = 1
	HandshakeErrorInappropriatePublicKey HandshakeErrorSubkind = 2
	HandshakeErrorInvalidSignature      HandshakeErrorSubkind = 3
	HandshakeErrorUnknownCa             HandshakeErrorSubkind = 4
)

// AlertBody is implemented by each of the six alert body variants.
type AlertBody interface {
	Kind() AlertBodyKind
	encode(*Encoder)
}

type HandshakeErrorBody struct {
	Subkind HandshakeErrorSubkind
}

func (HandshakeErrorBody) Kind() AlertBodyKind { return AlertKindHandshakeError }
func (b HandshakeErrorBody) encode(e *Encoder) { e.WriteUint8(uint8(b.Subkind)) }

type InvalidRandomBody struct{}

func (InvalidRandomBody) Kind() AlertBodyKind { return AlertKindInvalidRandom }
func (InvalidRandomBody) encode(*Encoder)     {}

type DecryptErrorBody struct{}

func (DecryptErrorBody) Kind() AlertBodyKind { return AlertKindDecryptError }
func (DecryptErrorBody) encode(*Encoder)     {}

// InappropriateMessageBody reports that a content type was received while
// a different one was expected by the tunnel's current state.
type InappropriateMessageBody struct {
	Expected byte
	Got      byte
}

func (InappropriateMessageBody) Kind() AlertBodyKind { return AlertKindInappropriateMessage }
func (b InappropriateMessageBody) encode(e *Encoder) {
	e.WriteUint8(b.Expected)
	e.WriteUint8(b.Got)
}

// KeyUpdateBody carries a replacement public key. It is declared on the
// wire but, per spec.md §9, not wired into the tunnel's state machine: a
// received KeyUpdate is logged and otherwise ignored.
type KeyUpdateBody struct {
	NewPublicKeyDER []byte
}

func (KeyUpdateBody) Kind() AlertBodyKind { return AlertKindKeyUpdate }
func (b KeyUpdateBody) encode(e *Encoder) { e.WriteBlob(b.NewPublicKeyDER) }

// CloseBody carries no data; it notifies the peer of an orderly shutdown
// (Tunnel.Close), distinct from the fatal alert kinds above.
type CloseBody struct{}

func (CloseBody) Kind() AlertBodyKind { return AlertKindClose }
func (CloseBody) encode(*Encoder)     {}

// Alert is the full payload of an Alert record: the flags byte followed by
// the body selected by its Kind. The flags byte always travels in the
// clear (a receiver must read it before it knows whether the bytes that
// follow need decrypting first); EncodeAlertBody/DecodeAlertBody handle
// the part that the tunnel may encrypt under a peer key before framing.
type Alert struct {
	Flags AlertFlags
	Body  AlertBody
}

// EncodeAlertBody serializes body_kind ‖ body — everything that follows
// the flags byte, and the part the tunnel encrypts once a peer key is
// available.
func EncodeAlertBody(body AlertBody) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(body.Kind()))
	body.encode(e)
	return e.Bytes()
}

// DecodeAlertBody reverses EncodeAlertBody.
func DecodeAlertBody(data []byte) (AlertBody, error) {
	d := NewDecoder(data)
	kindByte, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}
	kind := AlertBodyKind(kindByte)

	switch kind {
	case AlertKindHandshakeError:
		sub, err := d.ReadUint8()
		if err != nil {
			return nil, err
		}
		return HandshakeErrorBody{Subkind: HandshakeErrorSubkind(sub)}, nil
	case AlertKindInvalidRandom:
		return InvalidRandomBody{}, nil
	case AlertKindDecryptError:
		return DecryptErrorBody{}, nil
	case AlertKindClose:
		return CloseBody{}, nil
	case AlertKindInappropriateMessage:
		expected, err := d.ReadUint8()
		if err != nil {
			return nil, err
		}
		got, err := d.ReadUint8()
		if err != nil {
			return nil, err
		}
		return InappropriateMessageBody{Expected: expected, Got: got}, nil
	case AlertKindKeyUpdate:
		key, err := d.ReadBlob()
		if err != nil {
			return nil, err
		}
		return KeyUpdateBody{NewPublicKeyDER: key}, nil
	default:
		return nil, ErrInvalidAlertBody
	}
}

// EncodeAlert serializes flags ‖ body_kind ‖ body for an alert whose body
// needs no separate encryption step (the pre-handshake, always-plaintext
// case). Tunnel code that may need to encrypt the body uses
// EncodeAlertBody directly and prepends the flags byte itself.
func EncodeAlert(a *Alert) []byte {
	e := NewEncoder()
	e.WriteUint8(uint8(a.Flags))
	e.buf.Write(EncodeAlertBody(a.Body))
	return e.Bytes()
}

// DecodeAlert reverses EncodeAlert. It does not decrypt; callers expecting
// an encrypted body must strip and decrypt payload[1:] before calling
// DecodeAlertBody themselves.
func DecodeAlert(payload []byte) (*Alert, error) {
	if len(payload) < 1 {
		return nil, ErrTruncated
	}
	flags := AlertFlags(payload[0])
	body, err := DecodeAlertBody(payload[1:])
	if err != nil {
		return nil, err
	}
	return &Alert{Flags: flags, Body: body}, nil
}
