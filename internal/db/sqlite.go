// Package db records emitted events in a SQLite database for later
// inspection and replay.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Database is the recorder's SQLite handle. Writes are serialized so a
// transaction never interleaves with a single-row insert.
type Database struct {
	writeMu sync.Mutex
	conn    *sql.DB
	path    string
}

func isMemory(path string) bool {
	return path == MemoryPath || strings.HasPrefix(path, "file::memory:")
}

// pragmas returns the connection settings for a store at path. WAL only
// applies to files.
func pragmas(path string) []string {
	p := []string{"PRAGMA busy_timeout=5000"}
	if !isMemory(path) {
		p = append(p, "PRAGMA journal_mode=WAL")
	}
	return p
}

// NewDatabase opens the event store at path, creating parent directories
// for on-disk stores.
func NewDatabase(path string) (*Database, error) {
	if !isMemory(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event store %s: %w", path, err)
	}
	// A memory database lives inside one connection, and SQLite has a
	// single writer anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	for _, pragma := range pragmas(path) {
		if _, err := conn.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("event store pragma rejected")
		}
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("event store unreachable: %w", err)
	}

	log.Info().Str("path", path).Bool("memory", isMemory(path)).Msg("event store ready")
	return &Database{conn: conn, path: path}, nil
}

// Path returns the database location.
func (d *Database) Path() string { return d.path }

func (d *Database) Close() error { return d.conn.Close() }

// Exec runs a statement that returns no rows.
func (d *Database) Exec(query string, args ...any) (sql.Result, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.conn.Exec(query, args...)
}

// Query runs a read. Reads do not take the write lock.
func (d *Database) Query(query string, args ...any) (*sql.Rows, error) {
	return d.conn.Query(query, args...)
}

// Transaction runs fn inside BEGIN/COMMIT and rolls back when fn fails.
func (d *Database) Transaction(fn func(tx *sql.Tx) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit()
}
