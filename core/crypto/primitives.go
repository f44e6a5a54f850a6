package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
)

// checkFeasible rejects hash/key combinations where OAEP or PSS padding
// cannot fit inside a single RSA block: 2*H+2 bytes of overhead must leave
// room for at least one byte of plaintext (or, for PSS, the encoded
// message).
func checkFeasible(keySizeBytes, hashSizeBytes int) error {
	if 2*hashSizeBytes+2 >= keySizeBytes {
		return fmt.Errorf("%w: key=%d bytes, hash=%d bytes", ErrHashFunctionOutputTooLarge, keySizeBytes, hashSizeBytes)
	}
	return nil
}

// Encryptor performs RSA-OAEP encryption under a public key, chunking
// arbitrarily long plaintext across as many RSA blocks as needed.
type Encryptor struct {
	pub        *rsa.PublicKey
	hash       crypto.Hash
	hashID     HashId
	keySize    int
	plainBlock int
}

// NewEncryptor builds an Encryptor for pub using the hash selected by id. It
// fails with ErrHashFunctionOutputTooLarge if OAEP padding would not fit in
// one RSA block for this key size.
func NewEncryptor(pub *rsa.PublicKey, id HashId) (*Encryptor, error) {
	h, err := id.cryptoHash()
	if err != nil {
		return nil, err
	}
	keySize := pub.Size()
	hashSize := h.Size()
	if err := checkFeasible(keySize, hashSize); err != nil {
		return nil, err
	}
	return &Encryptor{
		pub:        pub,
		hash:       h,
		hashID:     id,
		keySize:    keySize,
		plainBlock: keySize - 2*hashSize - 2,
	}, nil
}

// HashId reports the hash this Encryptor was constructed with, so it can be
// advertised on the wire.
func (e *Encryptor) HashId() HashId { return e.hashID }

// Encrypt OAEP-encrypts plaintext, splitting it into blocks of at most
// plainBlock bytes and producing one keySize-byte ciphertext block per
// chunk. Each call sources fresh randomness so repeated calls on identical
// plaintext yield different ciphertexts.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return e.encryptChunk(nil)
	}
	out := make([]byte, 0, (len(plaintext)/e.plainBlock+1)*e.keySize)
	for off := 0; off < len(plaintext); off += e.plainBlock {
		end := off + e.plainBlock
		if end > len(plaintext) {
			end = len(plaintext)
		}
		block, err := e.encryptChunk(plaintext[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

func (e *Encryptor) encryptChunk(chunk []byte) ([]byte, error) {
	return rsa.EncryptOAEP(e.hash.New(), rand.Reader, e.pub, chunk, nil)
}

// Decryptor performs RSA-OAEP decryption under a private key, reassembling
// plaintext from consecutive keySize-byte ciphertext blocks.
type Decryptor struct {
	priv    *rsa.PrivateKey
	hash    crypto.Hash
	hashID  HashId
	keySize int
}

// NewDecryptor builds a Decryptor for priv using the hash selected by id.
func NewDecryptor(priv *rsa.PrivateKey, id HashId) (*Decryptor, error) {
	h, err := id.cryptoHash()
	if err != nil {
		return nil, err
	}
	keySize := priv.Size()
	if err := checkFeasible(keySize, h.Size()); err != nil {
		return nil, err
	}
	return &Decryptor{priv: priv, hash: h, hashID: id, keySize: keySize}, nil
}

func (d *Decryptor) HashId() HashId { return d.hashID }

// Decrypt reverses Encrypt. It rejects ciphertext whose length is not a
// multiple of the RSA key size.
func (d *Decryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext)%d.keySize != 0 {
		return nil, ErrCiphertextNotBlockAligned
	}
	out := make([]byte, 0, len(ciphertext))
	for off := 0; off < len(ciphertext); off += d.keySize {
		block := ciphertext[off : off+d.keySize]
		plain, err := rsa.DecryptOAEP(d.hash.New(), rand.Reader, d.priv, block, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		out = append(out, plain...)
	}
	return out, nil
}

// Signer produces RSA-PSS signatures under a private key.
type Signer struct {
	priv   *rsa.PrivateKey
	hash   crypto.Hash
	hashID HashId
	rand   io.Reader
}

// NewSigner builds a Signer for priv using the hash selected by id.
func NewSigner(priv *rsa.PrivateKey, id HashId) (*Signer, error) {
	h, err := id.cryptoHash()
	if err != nil {
		return nil, err
	}
	if err := checkFeasible(priv.Size(), h.Size()); err != nil {
		return nil, err
	}
	return &Signer{priv: priv, hash: h, hashID: id, rand: rand.Reader}, nil
}

func (s *Signer) HashId() HashId { return s.hashID }

// Sign returns a PSS signature over message. The output is exactly one
// RSA-block long. A fresh salt is drawn for every call.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	digest := s.hash.New()
	digest.Write(message)
	return rsa.SignPSS(s.rand, s.priv, s.hash, digest.Sum(nil), nil)
}

// Verifier checks RSA-PSS signatures under a public key.
type Verifier struct {
	pub    *rsa.PublicKey
	hash   crypto.Hash
	hashID HashId
}

// NewVerifier builds a Verifier for pub using the hash selected by id.
func NewVerifier(pub *rsa.PublicKey, id HashId) (*Verifier, error) {
	h, err := id.cryptoHash()
	if err != nil {
		return nil, err
	}
	if err := checkFeasible(pub.Size(), h.Size()); err != nil {
		return nil, err
	}
	return &Verifier{pub: pub, hash: h, hashID: id}, nil
}

func (v *Verifier) HashId() HashId { return v.hashID }

// Verify reports ErrInvalidSignature if sig is not a valid PSS signature of
// message under this Verifier's key.
func (v *Verifier) Verify(message, sig []byte) error {
	digest := v.hash.New()
	digest.Write(message)
	if err := rsa.VerifyPSS(v.pub, v.hash, digest.Sum(nil), sig, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
