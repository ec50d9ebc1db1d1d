package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	expires   INTEGER NOT NULL,
	value     BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS entries_expires_idx ON entries (expires);
CREATE TABLE IF NOT EXISTS counters (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	value     INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// sqliteBatch bounds the bound parameters of one IN query.
const sqliteBatch = 500

// SQLiteStore is a KeyStore persisted in a SQLite database. Expiry is
// checked on read; Purge removes expired rows.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key, namespace string) ([]byte, error) {
	var expires int64
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT expires, value FROM entries WHERE namespace = ? AND key = ?",
		namespace, key).Scan(&expires, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	if expires != 0 && time.Now().UnixNano() > expires {
		return nil, ErrCacheMiss
	}
	return value, nil
}

// Get retrieves a cache entry by key.
func (s *SQLiteStore) Get(ctx context.Context, key, namespace string) (*Entry, error) {
	data, err := s.get(ctx, key, namespace)
	if err != nil {
		return nil, err
	}
	return decodeEntry(data)
}

// Set stores a cache entry.
func (s *SQLiteStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration, namespace string) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	return s.SetMulti(ctx, map[string]any{key: entry}, ttl, namespace)
}

// SetMulti writes all values in one transaction.
func (s *SQLiteStore) SetMulti(ctx context.Context, mapping map[string]any, ttl time.Duration, namespace string) error {
	encoded := make(map[string][]byte, len(mapping))
	for key, v := range mapping {
		data, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		encoded[key] = data
	}

	var expires int64
	if t := expiresAt(ttl); !t.IsZero() {
		expires = t.UnixNano()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	for key, data := range encoded {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO entries (namespace, key, expires, value) VALUES (?, ?, ?, ?)",
			namespace, key, expires, data); err != nil {
			return fmt.Errorf("sqlite set: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// Incr atomically adjusts a counter with a single upsert.
func (s *SQLiteStore) Incr(ctx context.Context, key string, delta int64, namespace string, initial int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO counters (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = value + ?
		RETURNING value`,
		namespace, key, initial+delta, delta).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite incr: %w", err)
	}
	return n, nil
}

// GetKey returns the string stored under key.
func (s *SQLiteStore) GetKey(ctx context.Context, key, namespace string) (string, error) {
	data, err := s.get(ctx, key, namespace)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetKeys resolves keys with one query per batch of sqliteBatch keys.
func (s *SQLiteStore) GetKeys(ctx context.Context, namespace string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	now := time.Now().UnixNano()
	for start := 0; start < len(keys); start += sqliteBatch {
		batch := keys[start:min(start+sqliteBatch, len(keys))]

		args := make([]any, 0, len(batch)+1)
		args = append(args, namespace)
		for _, key := range batch {
			args = append(args, key)
		}
		placeholders := strings.Repeat("?, ", len(batch)-1) + "?"

		rows, err := s.db.QueryContext(ctx,
			"SELECT key, expires, value FROM entries WHERE namespace = ? AND key IN ("+placeholders+")",
			args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite get keys: %w", err)
		}
		for rows.Next() {
			var key string
			var expires int64
			var value []byte
			if err := rows.Scan(&key, &expires, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("sqlite get keys: %w", err)
			}
			if expires != 0 && now > expires {
				continue
			}
			out[key] = string(value)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("sqlite get keys: %w", err)
		}
	}
	return out, nil
}

// Delete removes keys from entries and counters.
func (s *SQLiteStore) Delete(ctx context.Context, namespace string, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE namespace = ? AND key = ?", namespace, key); err != nil {
			return fmt.Errorf("sqlite delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM counters WHERE namespace = ? AND key = ?", namespace, key); err != nil {
			return fmt.Errorf("sqlite delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many rows were deleted.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE expires != 0 AND expires < ?", time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}
