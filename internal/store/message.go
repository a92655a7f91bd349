package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// CacheMessages stores confirmed messages of one conversation. Unconfirmed and
// system entries are skipped. Upserts are idempotent on (conversation, id).
func (db *DB) CacheMessages(key chat.Key, msgs []chat.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		if m.ServerID == "" || m.Kind == chat.ContentSystem {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conv_key, msg_id, sender_id, kind, payload, status, reply_to_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conv_key, msg_id) DO UPDATE SET
				payload = excluded.payload,
				status = excluded.status`,
			key.String(), m.ServerID, m.SenderID, string(m.Kind), m.Payload, string(m.Status), m.ReplyToID, m.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("cache message %q: %w", m.ServerID, err)
		}
	}
	return tx.Commit()
}

// CachedMessages returns up to limit most recent cached messages of key in
// ascending timestamp order.
func (db *DB) CachedMessages(key chat.Key, self string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT msg_id, sender_id, kind, payload, status, reply_to_id, timestamp FROM (
			SELECT * FROM messages
			WHERE conv_key = ?
			ORDER BY timestamp DESC
			LIMIT ?
		) ORDER BY timestamp ASC`, key.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Message
	for rows.Next() {
		var (
			m            chat.Message
			kind, status string
			ts           int64
		)
		if err := rows.Scan(&m.ServerID, &m.SenderID, &kind, &m.Payload, &status, &m.ReplyToID, &ts); err != nil {
			return nil, err
		}
		m.ID = m.ServerID
		m.Kind = chat.ContentKind(kind)
		m.Status = chat.Status(status)
		m.Timestamp = time.UnixMilli(ts)
		m.Conversation = key
		fillParticipants(&m, key, self)
		out = append(out, m)
	}
	return out, rows.Err()
}

func fillParticipants(m *chat.Message, key chat.Key, self string) {
	if key.Kind == chat.KindGroup {
		m.GroupID = key.ID
		return
	}
	if m.SenderID == self {
		m.ReceiverID = key.ID
	} else {
		m.ReceiverID = self
	}
}
