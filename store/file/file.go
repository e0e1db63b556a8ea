package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/smallnest/crag/store"
)

// nameSpace seeds the name-based UUIDs used as file names.
var nameSpace = uuid.UUID{14: 0xf1, 15: 0x1e}

// Store keeps one file per key under a directory. File names are SHA-1
// UUIDs of the keys: fixed length, lower case and free of separators.
type Store struct {
	dir string
}

var _ store.ByteStore = (*Store)(nil)

// New creates a file store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, uuid.NewSHA1(nameSpace, []byte(key)).String()), nil
}

// MGet reads the files for keys. Missing files are misses.
func (s *Store) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	values := make([][]byte, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := s.path(key)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		values[i] = data
	}
	return values, nil
}

// MSet writes every entry. Each file is written to a temporary name and
// renamed into place so readers never observe a partial value.
func (s *Store) MSet(ctx context.Context, entries []store.KeyValue) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := s.path(e.Key)
		if err != nil {
			return err
		}

		tmp, err := os.CreateTemp(s.dir, ".tmp-*")
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", e.Key, err)
		}
		if _, err := tmp.Write(e.Value); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to write %s: %w", e.Key, err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to write %s: %w", e.Key, err)
		}
		if err := os.Rename(tmp.Name(), p); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("failed to write %s: %w", e.Key, err)
		}
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
