// Package storage implements the Ledger interface using SQLite.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"database/sql"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger implements the service.Ledger interface using SQLite.
type SQLiteLedger struct {
	db        *sql.DB
	dbPath    string
	itemLocks map[string]*sync.Mutex
	lockMutex sync.Mutex
}

// NewSQLiteLedger creates a new SQLite ledger instance.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteLedger{
		db:        db,
		dbPath:    dbPath,
		itemLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// lockItem serializes check-then-write sequences on a single item name.
// Reorder and sale transactions on the same catalog record must not
// interleave; everything else proceeds concurrently.
func (s *SQLiteLedger) lockItem(name string) func() {
	s.lockMutex.Lock()
	mu, ok := s.itemLocks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.itemLocks[name] = mu
	}
	s.lockMutex.Unlock()

	mu.Lock()
	return mu.Unlock
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteLedger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
