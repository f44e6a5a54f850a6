package ptls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrInappropriatePublicKey is returned when a public_key_der field fails
// to parse as a DER-encoded RSA public key.
var ErrInappropriatePublicKey = errors.New("ptls: inappropriate public key encoding")

// KeyPair is the local identity a Tunnel encrypts and signs under: an RSA
// private key and its derived public key. A KeyPair may be shared across
// multiple tunnels serving the same identity.
type KeyPair struct {
	Private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// NewKeyPair wraps an existing RSA private key.
func NewKeyPair(priv *rsa.PrivateKey) *KeyPair {
	return &KeyPair{Private: priv, public: &priv.PublicKey}
}

// GenerateKeyPair creates a fresh RSA key pair of the given bit size.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("ptls: generate key pair: %w", err)
	}
	return NewKeyPair(priv), nil
}

// PublicKey returns the derived public half.
func (k *KeyPair) PublicKey() *rsa.PublicKey { return k.public }

// PublicKeyDER encodes the public key as spec.md §6 requires: a
// DER-encoded PKCS#1 RSA public key.
func (k *KeyPair) PublicKeyDER() []byte {
	return x509.MarshalPKCS1PublicKey(k.public)
}

// ParsePublicKeyDER decodes the DER encoding PublicKeyDER produces.
func ParsePublicKeyDER(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("ptls: %w: %v", ErrInappropriatePublicKey, err)
	}
	return pub, nil
}

// SignedPublicKey is the server-side bundle presented in ServerHello: a
// public key together with an expiry and a trusted-authority signature.
// Installed before ServerHandshake is invoked; immutable thereafter.
type SignedPublicKey struct {
	PublicKeyDER       []byte
	ExpiresAt          int64
	TrustedAuthorityID string
	CASignature        []byte
}
