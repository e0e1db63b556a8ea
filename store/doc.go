// Package store defines ByteStore, the persisted key to bytes mapping behind
// the embedding cache, and its backends.
//
// Every backend lives in its own sub-package so that programs only link the
// drivers they use:
//   - file: one file per key under a directory (the default)
//   - memory: a map guarded by a mutex, for tests and short-lived processes
//   - redis: go-redis with pipelined MGET/SET
//   - sqlite: mattn/go-sqlite3, a single table of (key, value)
//   - postgres: pgx connection pool, a single table of (key, value)
//   - lru: an in-process LRU layer in front of any other ByteStore
//
// # Example
//
//	s, err := file.New("./.cache/embeddings")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	err = s.MSet(ctx, []store.KeyValue{{Key: "k", Value: []byte("v")}})
//	values, err := s.MGet(ctx, []string{"k", "missing"})
//	// values[0] == []byte("v"), values[1] == nil
//
// Entries never expire and are never deleted by the store.
package store
