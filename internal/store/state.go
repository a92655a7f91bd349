package store

import (
	"database/sql"
	"time"
)

// State keys.
const (
	StateUserID        = "user_id"
	StateLastBootstrap = "last_bootstrap"
)

// SetState stores a sync checkpoint value.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// GetState returns a sync checkpoint value, or "" if unset.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Reset clears every cached row. Used when the logged-in user changes.
func (db *DB) Reset() error {
	for _, table := range []string{"presence", "contacts", "conversations", "messages", "sync_state"} {
		if _, err := db.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}
