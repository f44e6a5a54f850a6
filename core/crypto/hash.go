// Package crypto implements the RSA-OAEP/PSS primitives pTLS layers over a
// tunnel: block-chunked encryption and decryption, PSS signing and
// verification, and the enumerated hash registry used to negotiate which
// hash backs each primitive.
package crypto

import (
	"crypto"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
)

// HashId is the wire tag for a negotiated hash function. Each peer
// advertises a signature hash and a padding hash independently; the
// receiving side binds its primitives to whatever was advertised.
type HashId uint8

const (
	HashSHA224 HashId = 0
	HashSHA256 HashId = 1
	HashSHA384 HashId = 2
	HashSHA512 HashId = 3
)

func (h HashId) String() string {
	switch h {
	case HashSHA224:
		return "SHA-224"
	case HashSHA256:
		return "SHA-256"
	case HashSHA384:
		return "SHA-384"
	case HashSHA512:
		return "SHA-512"
	default:
		return fmt.Sprintf("HashId(%d)", uint8(h))
	}
}

// cryptoHash returns the stdlib crypto.Hash backing this HashId.
func (h HashId) cryptoHash() (crypto.Hash, error) {
	switch h {
	case HashSHA224:
		return crypto.SHA224, nil
	case HashSHA256:
		return crypto.SHA256, nil
	case HashSHA384:
		return crypto.SHA384, nil
	case HashSHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownHashId, uint8(h))
	}
}

// size returns the output size in bytes of the hash this tag selects.
func (h HashId) size() int {
	switch h {
	case HashSHA224:
		return sha256.Size224
	case HashSHA256:
		return sha256.Size
	case HashSHA384:
		return sha512.Size384
	case HashSHA512:
		return sha512.Size
	default:
		return 0
	}
}

// IsValid reports whether h is one of the four enumerated hash ids.
func (h HashId) IsValid() bool {
	return h <= HashSHA512
}
