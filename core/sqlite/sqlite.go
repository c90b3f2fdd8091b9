// Package sqlite provides a unified SQLite interface supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// The driver name is "sqlite" or "sqlite3" depending on the implementation.
// Use Open() instead of sql.Open() to ensure the correct driver is used.
//
// Readers and writers work on byte slices, not files, so OpenBytes and
// Build stage databases in a private temporary directory.
package sqlite

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Magic is the header every SQLite 3 database file starts with.
var Magic = []byte("SQLite format 3\x00")

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database using the appropriate driver.
// This is the preferred way to open SQLite databases.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?mode=ro"
	return Open(dsn)
}

// MustOpen opens a SQLite database and panics on error.
// This is intended for use in tests or initialization code where
// database access failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// IsDatabase reports whether data starts with the SQLite 3 header.
func IsDatabase(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// DB is a database opened from memory. Close releases the connection and
// removes the staging directory.
type DB struct {
	*sql.DB
	dir string
}

// Close closes the database and removes its staging files.
func (d *DB) Close() error {
	err := d.DB.Close()
	if rmErr := os.RemoveAll(d.dir); err == nil {
		err = rmErr
	}
	return err
}

// OpenBytes opens a read-only copy of the database image in data.
func OpenBytes(data []byte) (*DB, error) {
	if !IsDatabase(data) {
		return nil, fmt.Errorf("sqlite: not a SQLite 3 database")
	}
	dir, err := os.MkdirTemp("", "rescribe-sqlite-*")
	if err != nil {
		return nil, fmt.Errorf("sqlite: staging directory: %w", err)
	}
	path := filepath.Join(dir, "input.db")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("sqlite: staging database: %w", err)
	}
	db, err := OpenReadOnly(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	return &DB{DB: db, dir: dir}, nil
}

// Build creates an empty database, runs fill against it and returns the
// resulting database image.
func Build(fill func(*sql.DB) error) ([]byte, error) {
	dir, err := os.MkdirTemp("", "rescribe-sqlite-*")
	if err != nil {
		return nil, fmt.Errorf("sqlite: staging directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "output.db")
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps the transaction and schema on one handle.
	db.SetMaxOpenConns(1)
	if err := fill(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("sqlite: close: %w", err)
	}
	return os.ReadFile(path)
}

// QuoteIdent quotes name for use as an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
