package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the per-profile cache.db connection.
type DB struct {
	*sql.DB
}

func dsn(path string, readOnly bool) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Set("_journal_mode", "WAL")
	}
	return "file:" + path + "?" + q.Encode()
}

func open(path string, readOnly bool) (*DB, error) {
	db, err := sql.Open("sqlite3", dsn(path, readOnly))
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache %s: %w", path, err)
	}
	return &DB{db}, nil
}

// Open opens or creates the cache at path in WAL mode. The schema is not
// touched; call Migrate or use OpenMigrated.
func Open(path string) (*DB, error) { return open(path, false) }

// OpenReadOnly opens an existing cache for inspection while another process
// owns it.
func OpenReadOnly(path string) (*DB, error) { return open(path, true) }

// OpenMigrated opens path and brings the schema up to date.
func OpenMigrated(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
