package crypto

import "errors"

var (
	// ErrUnknownHashId is returned when a wire HashId does not match one of
	// the four enumerated hash functions.
	ErrUnknownHashId = errors.New("crypto: unknown hash id")

	// ErrHashFunctionOutputTooLarge is returned by a primitive constructor
	// when 2*hash_output_size+2 >= key_size_bytes, i.e. OAEP/PSS padding
	// cannot fit inside a single RSA block for this key size.
	ErrHashFunctionOutputTooLarge = errors.New("crypto: hash function output too large for key size")

	// ErrCiphertextNotBlockAligned is returned by Decrypt when the input
	// length is not a multiple of the RSA key size in bytes.
	ErrCiphertextNotBlockAligned = errors.New("crypto: ciphertext length is not a multiple of the key size")

	// ErrDecrypt wraps any OAEP decryption failure (padding oracle-safe:
	// never reveals which block or byte failed).
	ErrDecrypt = errors.New("crypto: decryption failed")

	// ErrInvalidSignature is returned by Verify when the PSS signature does
	// not validate for the given message and key.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)
