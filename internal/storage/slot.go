// Package storage provides the durable key-value slots gemchat persists its
// session snapshot into. A slot stores one opaque value per key and replaces it
// wholesale on every Put.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Get when nothing has been stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Slot is a durable key-value store with whole-value overwrite semantics.
type Slot interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Put replaces the value stored under key. Readers never observe a partial value.
	Put(key string, value []byte) error
	// Close releases any underlying resources.
	Close() error
}

// Kinds of slots accepted by Open.
const (
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindMemory = "memory"
)

// DatabaseFileName is the SQLite database created inside the data directory.
const DatabaseFileName = "gemchat.db"

// SessionsDirName is the directory used by the file slot inside the data directory.
const SessionsDirName = "sessions"

// Open creates the slot of the given kind rooted at dataDir.
func Open(kind, dataDir string) (Slot, error) {
	switch kind {
	case KindSQLite:
		return OpenSQLiteSlot(filepath.Join(dataDir, DatabaseFileName))
	case KindFile:
		return NewFileSlot(filepath.Join(dataDir, SessionsDirName))
	case KindMemory:
		return NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
