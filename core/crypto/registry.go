package crypto

import "crypto/rsa"

// PrimitiveKind selects which of the four primitive shapes to build.
type PrimitiveKind uint8

const (
	KindEncryptor PrimitiveKind = iota
	KindDecryptor
	KindSigner
	KindVerifier
)

// BuildEncryptor and its siblings are the registry's factory entry points:
// given a runtime HashId tag (as received on the wire) and the appropriate
// key half, they construct the primitive instance or fail with
// ErrUnknownHashId or ErrHashFunctionOutputTooLarge. They only reorder the
// arguments of the per-kind New* constructors, which the tunnel calls
// directly.
func BuildEncryptor(id HashId, pub *rsa.PublicKey) (*Encryptor, error) { return NewEncryptor(pub, id) }
func BuildDecryptor(id HashId, priv *rsa.PrivateKey) (*Decryptor, error) {
	return NewDecryptor(priv, id)
}
func BuildSigner(id HashId, priv *rsa.PrivateKey) (*Signer, error)   { return NewSigner(priv, id) }
func BuildVerifier(id HashId, pub *rsa.PublicKey) (*Verifier, error) { return NewVerifier(pub, id) }
