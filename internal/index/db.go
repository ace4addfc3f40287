// Package index persists per-file symbols and diagnostics in SQLite so
// scans can be searched without re-reading the source tree.
package index

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/clarionscope/internal/log"
)

// Schema is the index DDL. Statements are idempotent.
//
//go:embed schema.sql
var Schema string

// SchemaVersion is stored in PRAGMA user_version.
const SchemaVersion = 1

// Open opens (creating if needed) the index database at path and applies
// the schema. The parent directory is created with 0700 permissions.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug(log.CatIndex, "index opened", "path", path)
	return db, nil
}

// Migrate applies the schema to db and records the schema version.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("index schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("applying index schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}
