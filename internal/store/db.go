// Package store persists resolution state for modsync in SQLite.
//
// It holds three kinds of data: the resolution cache (one row per mod name,
// written after every lookup, valid for a configurable number of days),
// manually pinned catalog URLs (overrides) and a small key/value table for
// process metadata such as the time of the last completed refresh.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultCacheTTL is how long a cache entry stays valid.
const DefaultCacheTTL = 7 * 24 * time.Hour

// ErrNotInitialized is returned when the schema has not been created.
var ErrNotInitialized = errors.New("database not initialized: run 'modsync scan' or 'modsync serve' first")

// Store provides SQLite database operations for modsync.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	// mu serializes read-modify-write sequences.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCacheTTL sets the cache validity window.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces the time source (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Store with the specified database path.
// Use ":memory:" for in-memory databases (useful for testing).
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool defaults
	db.SetMaxOpenConns(1) // SQLite only allows one writer at a time
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, ttl: DefaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSchema creates all tables and indexes.
func (s *Store) CreateSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CacheTTL returns the configured cache validity window.
func (s *Store) CacheTTL() time.Duration {
	return s.ttl
}

// wrapErr maps a missing-table error to ErrNotInitialized.
func wrapErr(err error, format string, args ...any) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf(format+": %w", append(args, ErrNotInitialized)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
