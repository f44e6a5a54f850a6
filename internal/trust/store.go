// Package trust backs two durable, storage-agnostic domain objects the
// wire protocol names but never defines persistence for: a cache of
// previously-seen peer public keys (so a long-lived client can recognize
// a server across process restarts before trusting a hard-coded key for
// the abbreviated handshake) and a registry mapping a trusted_authority_id
// to the CA public key ServerHello's signature bundle references. The
// registry is populated and readable, but — per spec.md §9's open
// question on certificate-authority verification — nothing in this
// module invokes it against an incoming ca_signature.
package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

var (
	// ErrNotFound is returned by the Get* accessors when no record
	// matches the requested key.
	ErrNotFound = errors.New("trust: not found")

	peerKeyPrefix   = []byte("peer/")
	authorityPrefix = []byte("authority/")
)

// Fingerprint derives a stable identifier for a DER-encoded public key: the
// hex SHA-256 digest of its bytes. It is one possible peer-key cache key;
// cmd/ptls-client keys its cache by server address instead.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// Store is a pebble-backed key-value store holding the peer-key cache and
// the trusted-authority registry side by side under distinct key
// prefixes.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("trust: open store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying pebble database.
func (s *Store) Close() error { return s.db.Close() }

// RememberPeerKey caches der under the caller-chosen key fingerprint (the
// demo client passes the server address), so a future abbreviated-handshake
// dial can consult it without an out-of-band exchange.
func (s *Store) RememberPeerKey(fingerprint string, der []byte) error {
	key := append(append([]byte(nil), peerKeyPrefix...), fingerprint...)
	return s.db.Set(key, der, pebble.Sync)
}

// PeerKey looks up a previously remembered peer key by the key it was
// remembered under.
func (s *Store) PeerKey(fingerprint string) ([]byte, error) {
	key := append(append([]byte(nil), peerKeyPrefix...), fingerprint...)
	return s.get(key)
}

// TrustAuthority registers a trusted authority's DER-encoded public key
// under id, for later lookup against a ServerHello's trusted_authority_id.
func (s *Store) TrustAuthority(id string, der []byte) error {
	key := append(append([]byte(nil), authorityPrefix...), id...)
	return s.db.Set(key, der, pebble.Sync)
}

// Authority looks up a trusted authority's public key by id. Nothing in
// this package calls it during a handshake; it exists so an application
// that wants to implement the §9 open question has somewhere to read
// from.
func (s *Store) Authority(id string) ([]byte, error) {
	key := append(append([]byte(nil), authorityPrefix...), id...)
	return s.get(key)
}

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("trust: get: %w", err)
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, fmt.Errorf("trust: close iterator: %w", err)
	}
	return out, nil
}
