//go:build !(rp2040 || rp2350)

package retention

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS retention (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

const sequenceKey = "sequence_id"

// SQLite keeps the counter in a database file. Placing the file on tmpfs
// (/run) gives the retention semantics: it outlives the process image that
// goes to sleep and re-executes, and is gone after a power cycle.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create retention dir: %w", err)
	}
	return newSQLite(path)
}

// NewMemorySQLite creates an in-memory store.
func NewMemorySQLite() (*SQLite, error) {
	return newSQLite(":memory:")
}

func newSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load() (uint32, error) {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM retention WHERE key = ?`, sequenceKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if v < 0 || v > int64(^uint32(0)) {
		return 0, fmt.Errorf("retained sequence out of range: %d", v)
	}
	return uint32(v), nil
}

func (s *SQLite) Save(v uint32) error {
	_, err := s.db.Exec(`
		INSERT INTO retention (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sequenceKey, int64(v))
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
