package stash

import (
	"fmt"
	"time"

	"github.com/webstash/webstash/internal/hoststore"
)

// KeyVal is the synchronous backend: envelope bookkeeping over a plain
// KV store. It has no capacity limit and no eviction; it relies on the
// backing store's own limits.
type KeyVal struct {
	kv hoststore.KV
}

// NewKeyVal wraps a KV store.
func NewKeyVal(kv hoststore.KV) *KeyVal {
	return &KeyVal{kv: kv}
}

// Read returns the value JSON stored under key. Expired entries are
// removed and reported as absent; a second read after expiry is still
// an ordinary miss. Undecodable entries propagate ErrMalformedEntry
// without being removed.
func (s *KeyVal) Read(key string) ([]byte, bool, error) {
	raw, ok := s.kv.Get(key)
	if !ok {
		return nil, false, nil
	}

	env, err := decodeEnvelope([]byte(raw))
	if err != nil {
		return nil, false, err
	}

	if env.expired(time.Now()) {
		if err := s.kv.Remove(key); err != nil {
			return nil, false, fmt.Errorf("failed to remove expired entry: %w", err)
		}
		return nil, false, nil
	}

	return env.Value, true, nil
}

// Write stores value under key with the given absolute expiration,
// unconditionally overwriting any prior entry.
func (s *KeyVal) Write(key string, value any, expiration time.Time) error {
	env, err := newEnvelope(value, expiration)
	if err != nil {
		return err
	}

	data, err := env.encode()
	if err != nil {
		return err
	}

	return s.kv.Set(key, string(data))
}

// Clear removes every entry in the backing store, including entries
// other callers placed there.
func (s *KeyVal) Clear() error {
	return s.kv.Clear()
}

// Len returns the number of entries in the backing store.
func (s *KeyVal) Len() int {
	return s.kv.Len()
}
