package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/smallnest/crag/store"
)

// Store is an in-memory ByteStore. Values are copied on the way in and out.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ store.ByteStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// MGet returns the stored values, nil for misses.
func (s *Store) MGet(_ context.Context, keys []string) ([][]byte, error) {
	if err := store.ValidateKeys(keys); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok := s.data[key]; ok {
			values[i] = slices.Clone(v)
		}
	}
	return values, nil
}

// MSet stores every entry.
func (s *Store) MSet(_ context.Context, entries []store.KeyValue) error {
	if err := store.ValidateEntries(entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		v := slices.Clone(e.Value)
		if v == nil {
			v = []byte{}
		}
		s.data[e.Key] = v
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
