package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned by point lookups and updates that match no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the sqlite database holding observations, summaries and
// alerts. All methods are safe for concurrent use; every call is an
// independent read or write, no cross-call locking is needed.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}
