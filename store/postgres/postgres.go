package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/crag/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements store.ByteStore using PostgreSQL
type PostgresStore struct {
	pool      DBPool
	tableName string
}

var _ store.ByteStore = (*PostgresStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "embeddings"
}

// NewPostgresStore creates a new Postgres byte store
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return NewPostgresStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresStoreWithPool creates a new Postgres byte store with an existing pool
// Useful for testing with mocks
func NewPostgresStoreWithPool(pool DBPool, tableName string) *PostgresStore {
	if tableName == "" {
		tableName = "embeddings"
	}
	return &PostgresStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL
		)
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// MGet selects all keys with one ANY($1) query.
func (s *PostgresStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := store.ValidateKeys(keys); err != nil {
		return nil, err
	}
	values := make([][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	query := fmt.Sprintf("SELECT key, value FROM %s WHERE key = ANY($1)", s.tableName)
	rows, err := s.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	found := make(map[string][]byte, len(keys))
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		if value == nil {
			value = []byte{}
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read values: %w", err)
	}

	for i, k := range keys {
		values[i] = found[k]
	}
	return values, nil
}

// MSet upserts all entries in a single multi-row INSERT. Duplicate keys in
// one call collapse to their last value.
func (s *PostgresStore) MSet(ctx context.Context, entries []store.KeyValue) error {
	if err := store.ValidateEntries(entries); err != nil {
		return err
	}
	entries = store.LastWins(entries)
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, len(entries))
	args := make([]any, 0, 2*len(entries))
	for i, e := range entries {
		placeholders[i] = fmt.Sprintf("($%d, $%d)", 2*i+1, 2*i+2)
		value := e.Value
		if value == nil {
			value = []byte{}
		}
		args = append(args, e.Key, value)
	}

	query := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES %s ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		s.tableName, strings.Join(placeholders, ", "))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save values: %w", err)
	}
	return nil
}
