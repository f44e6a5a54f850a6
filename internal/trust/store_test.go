package trust

import (
	"bytes"
	"testing"
)

func TestPeerKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	der := []byte{0x01, 0x02, 0x03}
	fp := Fingerprint(der)
	if err := s.RememberPeerKey(fp, der); err != nil {
		t.Fatalf("RememberPeerKey: %v", err)
	}
	got, err := s.PeerKey(fp)
	if err != nil {
		t.Fatalf("PeerKey: %v", err)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %v, want %v", got, der)
	}
}

func TestPeerKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.PeerKey("nonexistent"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthorityRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	der := []byte{0xAA, 0xBB}
	if err := s.TrustAuthority("root-ca-1", der); err != nil {
		t.Fatalf("TrustAuthority: %v", err)
	}
	got, err := s.Authority("root-ca-1")
	if err != nil {
		t.Fatalf("Authority: %v", err)
	}
	if !bytes.Equal(got, der) {
		t.Fatalf("got %v, want %v", got, der)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("same"))
	b := Fingerprint([]byte("same"))
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if a == Fingerprint([]byte("different")) {
		t.Fatal("expected different input to produce different fingerprint")
	}
}
