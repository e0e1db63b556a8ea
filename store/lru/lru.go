// Package lru puts a bounded in-process LRU in front of another
// store.ByteStore. Reads are served from memory when possible; writes go to
// both layers.
package lru

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/smallnest/crag/store"
)

// Store is a read-through, write-through LRU layer.
type Store struct {
	cache *lru.Cache[string, []byte]
	next  store.ByteStore
}

var _ store.ByteStore = (*Store)(nil)

// New wraps next with an LRU holding at most size entries.
func New(next store.ByteStore, size int) (*Store, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &Store{cache: c, next: next}, nil
}

// MGet answers from the LRU and forwards only the remaining keys.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := store.ValidateKeys(keys); err != nil {
		return nil, err
	}

	values := make([][]byte, len(keys))
	var missKeys []string
	var missIdx []int
	for i, k := range keys {
		if v, ok := s.cache.Get(k); ok {
			values[i] = slices.Clone(v)
			continue
		}
		missKeys = append(missKeys, k)
		missIdx = append(missIdx, i)
	}
	if len(missKeys) == 0 {
		return values, nil
	}

	fetched, err := s.next.MGet(ctx, missKeys)
	if err != nil {
		return nil, err
	}
	for j, v := range fetched {
		if v == nil {
			continue
		}
		s.cache.Add(missKeys[j], slices.Clone(v))
		values[missIdx[j]] = v
	}
	return values, nil
}

// MSet writes to the backing store first, then populates the LRU.
func (s *Store) MSet(ctx context.Context, entries []store.KeyValue) error {
	if err := s.next.MSet(ctx, entries); err != nil {
		return err
	}
	for _, e := range entries {
		s.cache.Add(e.Key, slices.Clone(e.Value))
	}
	return nil
}

// Len returns the number of entries held in memory.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Close purges the LRU and closes the backing store.
func (s *Store) Close() error {
	s.cache.Purge()
	return s.next.Close()
}
