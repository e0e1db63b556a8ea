package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidKey is returned for keys a backend cannot store, such as the
// empty string.
var ErrInvalidKey = errors.New("invalid key")

// KeyValue is one entry written by MSet.
type KeyValue struct {
	Key   string
	Value []byte
}

// ByteStore is a persisted mapping from string keys to opaque byte values.
//
// MGet returns one slot per requested key, in request order. A nil slot is a
// miss. Implementations must be safe for concurrent use; concurrent writers
// of the same key are last-writer-wins.
type ByteStore interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	MSet(ctx context.Context, entries []KeyValue) error
	Close() error
}

// ValidateKey rejects keys no backend accepts.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	return nil
}

// ValidateKeys calls ValidateKey for every key.
func ValidateKeys(keys []string) error {
	for _, key := range keys {
		if err := ValidateKey(key); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEntries calls ValidateKey for every entry.
func ValidateEntries(entries []KeyValue) error {
	for _, e := range entries {
		if err := ValidateKey(e.Key); err != nil {
			return err
		}
	}
	return nil
}

// LastWins collapses duplicate keys, keeping the last value for each key at
// the position of its first occurrence.
func LastWins(entries []KeyValue) []KeyValue {
	index := make(map[string]int, len(entries))
	out := make([]KeyValue, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Key]; ok {
			out[i].Value = e.Value
			continue
		}
		index[e.Key] = len(out)
		out = append(out, e)
	}
	return out
}
