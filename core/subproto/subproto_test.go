package subproto

import (
	"bytes"
	"testing"

	"github.com/ptls-project/ptls/core/crypto"
)

func TestClientHelloRoundTrip(t *testing.T) {
	m := &ClientHello{
		PublicKeyDER:  []byte{0x01, 0x02, 0x03},
		SignatureHash: crypto.HashSHA256,
		PaddingHash:   crypto.HashSHA384,
	}
	payload := EncodeClientHello(m)
	tag, decoded, err := DecodeHandshakePayload(payload)
	if err != nil {
		t.Fatalf("DecodeHandshakePayload: %v", err)
	}
	if tag != TypeClientHello {
		t.Fatalf("tag: got %v, want TypeClientHello", tag)
	}
	got, ok := decoded.(*ClientHello)
	if !ok {
		t.Fatalf("decoded type %T, want *ClientHello", decoded)
	}
	if !bytes.Equal(got.PublicKeyDER, m.PublicKeyDER) || got.SignatureHash != m.SignatureHash || got.PaddingHash != m.PaddingHash {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestEncryptedClientHelloRoundTrip(t *testing.T) {
	m := &EncryptedClientHello{
		PublicKeyDER:    []byte{0xAA, 0xBB},
		SignatureHash:   crypto.HashSHA224,
		PaddingHash:     crypto.HashSHA512,
		Random:          0xDEADBEEFCAFEBABE,
		RandomSignature: []byte{0x10, 0x20, 0x30},
	}
	payload := EncodeEncryptedClientHello(m)
	tag, decoded, err := DecodeHandshakePayload(payload)
	if err != nil {
		t.Fatalf("DecodeHandshakePayload: %v", err)
	}
	if tag != TypeEncryptedClientHello {
		t.Fatalf("tag: got %v, want TypeEncryptedClientHello", tag)
	}
	got := decoded.(*EncryptedClientHello)
	if got.Random != m.Random || !bytes.Equal(got.RandomSignature, m.RandomSignature) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestServerHelloRoundTrip(t *testing.T) {
	m := &ServerHello{
		PublicKeyDER:       []byte{0x01},
		ExpiresAt:          1893456000,
		SignatureHash:      crypto.HashSHA256,
		PaddingHash:        crypto.HashSHA256,
		TrustedAuthorityID: "root-ca-1",
		CASignature:        []byte{0xDE, 0xAD},
	}
	payload := EncodeServerHello(m)
	tag, decoded, err := DecodeHandshakePayload(payload)
	if err != nil {
		t.Fatalf("DecodeHandshakePayload: %v", err)
	}
	if tag != TypeServerHello {
		t.Fatalf("tag: got %v, want TypeServerHello", tag)
	}
	got := decoded.(*ServerHello)
	if got.ExpiresAt != m.ExpiresAt || got.TrustedAuthorityID != m.TrustedAuthorityID || !bytes.Equal(got.CASignature, m.CASignature) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestFinishedRoundTrip(t *testing.T) {
	m := &Finished{Random: 42, RandomSignature: []byte{1, 2, 3, 4}}
	payload := EncodeFinished(m)
	tag, decoded, err := DecodeHandshakePayload(payload)
	if err != nil {
		t.Fatalf("DecodeHandshakePayload: %v", err)
	}
	if tag != TypeFinished {
		t.Fatalf("tag: got %v, want TypeFinished", tag)
	}
	got := decoded.(*Finished)
	if got.Random != m.Random || !bytes.Equal(got.RandomSignature, m.RandomSignature) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestDecodeHandshakePayloadRejectsUnknownTag(t *testing.T) {
	if _, _, err := DecodeHandshakePayload([]byte{0x7F}); err != ErrInvalidContentType {
		t.Fatalf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestAlertRoundTrip(t *testing.T) {
	cases := []*Alert{
		{Flags: FlagFatal, Body: HandshakeErrorBody{Subkind: HandshakeErrorInvalidSignature}},
		{Flags: 0, Body: InvalidRandomBody{}},
		{Flags: FlagEncrypted | FlagFatal, Body: DecryptErrorBody{}},
		{Flags: FlagFatal, Body: InappropriateMessageBody{Expected: byte(TypeFinished), Got: 1}},
		{Flags: FlagEncrypted, Body: KeyUpdateBody{NewPublicKeyDER: []byte{9, 9, 9}}},
	}
	for _, want := range cases {
		payload := EncodeAlert(want)
		got, err := DecodeAlert(payload)
		if err != nil {
			t.Fatalf("DecodeAlert: %v", err)
		}
		if got.Flags != want.Flags || got.Body.Kind() != want.Body.Kind() {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestAlertFlagsBits(t *testing.T) {
	f := FlagEncrypted | FlagFatal
	if !f.Encrypted() || !f.Fatal() {
		t.Fatal("expected both bits set")
	}
	if (AlertFlags(0)).Encrypted() || (AlertFlags(0)).Fatal() {
		t.Fatal("expected neither bit set on zero value")
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := DecodeHandshakePayload(nil); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := DecodeAlert([]byte{uint8(FlagFatal)}); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
