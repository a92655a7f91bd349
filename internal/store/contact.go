package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

const upsertContact = `
	INSERT INTO contacts (id, username, display_name, avatar_url, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		username = CASE WHEN excluded.username != '' THEN excluded.username ELSE contacts.username END,
		display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE contacts.display_name END,
		avatar_url = CASE WHEN excluded.avatar_url != '' THEN excluded.avatar_url ELSE contacts.avatar_url END,
		updated_at = excluded.updated_at`

// UpsertContact inserts or updates a contact. Empty fields keep stored values.
func (db *DB) UpsertContact(c chat.Contact) error {
	_, err := db.Exec(upsertContact, c.ID, c.Username, c.DisplayName, c.AvatarURL, time.Now().UnixMilli())
	return err
}

// SaveContacts upserts multiple contacts in a single transaction.
func (db *DB) SaveContacts(contacts []chat.Contact) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range contacts {
		if _, err := tx.Exec(upsertContact, c.ID, c.Username, c.DisplayName, c.AvatarURL, now); err != nil {
			return fmt.Errorf("upsert contact %q: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetContact returns a contact by id, or nil if unknown. Presence is joined
// from the presence table.
func (db *DB) GetContact(id string) (*chat.Contact, error) {
	var (
		c     chat.Contact
		state string
	)
	err := db.QueryRow(`
		SELECT c.id, c.username, c.display_name, c.avatar_url, COALESCE(p.state, '')
		FROM contacts c
		LEFT JOIN presence p ON p.subject_id = c.id
		WHERE c.id = ?`, id).
		Scan(&c.ID, &c.Username, &c.DisplayName, &c.AvatarURL, &state)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Presence = chat.Presence(state)
	return &c, nil
}

// LoadContacts returns every cached contact with its last known presence.
func (db *DB) LoadContacts() ([]chat.Contact, error) {
	rows, err := db.Query(`
		SELECT c.id, c.username, c.display_name, c.avatar_url, COALESCE(p.state, '')
		FROM contacts c
		LEFT JOIN presence p ON p.subject_id = c.id
		ORDER BY COALESCE(NULLIF(c.display_name, ''), NULLIF(c.username, ''), c.id)`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Contact
	for rows.Next() {
		var (
			c     chat.Contact
			state string
		)
		if err := rows.Scan(&c.ID, &c.Username, &c.DisplayName, &c.AvatarURL, &state); err != nil {
			return nil, err
		}
		c.Presence = chat.Presence(state)
		out = append(out, c)
	}
	return out, rows.Err()
}
