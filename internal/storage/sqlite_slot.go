package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createKVTable = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	updated_at INTEGER
)`

const upsertKV = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// SQLiteSlot stores values in a single-table SQLite database.
// Each Put is one upsert statement, so a value is replaced atomically.
type SQLiteSlot struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteSlot opens (or creates) the database at path and ensures the kv table exists.
func OpenSQLiteSlot(path string) (*SQLiteSlot, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(createKVTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SQLiteSlot{db: db, now: time.Now}, nil
}

// Get returns the value stored under key.
func (s *SQLiteSlot) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return value, nil
}

// Put replaces the value stored under key.
func (s *SQLiteSlot) Put(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.Exec(upsertKV, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// UpdatedAt returns when key was last written.
func (s *SQLiteSlot) UpdatedAt(key string) (time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRow("SELECT updated_at FROM kv WHERE key = ?", key).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("query failed: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64), nil
}

// Close closes the database.
func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}
