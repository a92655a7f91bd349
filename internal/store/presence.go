package store

import (
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// SavePresence upserts one presence record. Last write wins.
func (db *DB) SavePresence(r chat.PresenceRecord) error {
	_, err := db.Exec(`
		INSERT INTO presence (subject_id, state, changed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			state = excluded.state,
			changed_at = excluded.changed_at`,
		r.SubjectID, string(r.State), r.ChangedAt.UnixMilli())
	return err
}

// LoadPresence returns every cached presence record.
func (db *DB) LoadPresence() ([]chat.PresenceRecord, error) {
	rows, err := db.Query(`SELECT subject_id, state, changed_at FROM presence ORDER BY subject_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.PresenceRecord
	for rows.Next() {
		var (
			r       chat.PresenceRecord
			state   string
			changed int64
		)
		if err := rows.Scan(&r.SubjectID, &state, &changed); err != nil {
			return nil, err
		}
		r.State = chat.Presence(state)
		r.ChangedAt = time.UnixMilli(changed)
		out = append(out, r)
	}
	return out, rows.Err()
}
