package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tensors-cli/tensors/store"
)

// Filename is the registry database name inside the key path.
const Filename = "wallets.db"

// DB wraps the SQLite handle and associated metadata.
type DB struct {
	sql  *sql.DB
	path string
}

// Open initialises a SQLite database at the given path and returns a DB wrapper.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; the CLI never needs more.
	handle.SetMaxOpenConns(1)

	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := store.EnsurePerm0600(path); err != nil {
		handle.Close()
		return nil, fmt.Errorf("chmod database: %w", err)
	}

	return &DB{sql: handle, path: path}, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close releases the database resources.
func Close(d *DB) error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

const createWalletsTable = `
CREATE TABLE IF NOT EXISTS wallets (
	name            TEXT     PRIMARY KEY,
	ss58_address    TEXT     NOT NULL,
	public_key      TEXT     NOT NULL,
	scheme          TEXT     NOT NULL DEFAULT 'sr25519',
	encryption_type TEXT     NOT NULL DEFAULT 'nacl',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_wallets_ss58 ON wallets(ss58_address);
`

// Migrate ensures the wallets table (and index) exist.
func Migrate(d *DB) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}
	if _, err := d.sql.Exec(createWalletsTable); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
