// Package sqlite provides a SQLite-backed store.ByteStore using
// mattn/go-sqlite3.
//
// Values live in a single two-column table (key TEXT PRIMARY KEY, value
// BLOB). MGet issues one IN query per batch; MSet upserts every entry inside
// one transaction.
//
// # Basic Usage
//
//	s, err := sqlite.NewSqliteStore(sqlite.SqliteOptions{
//	    Path: "./.cache/embeddings.db",
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
package sqlite
