package store

import (
	"fmt"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// SaveConversations replaces the cached conversation list.
func (db *DB) SaveConversations(entries []chat.ConversationEntry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, e := range entries {
		var ts int64
		if !e.LastTimestamp.IsZero() {
			ts = e.LastTimestamp.UnixMilli()
		}
		if _, err := tx.Exec(`
			INSERT INTO conversations (conv_key, kind, peer_id, display_name, preview, last_ts, last_message_id, unread, avatar_url, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Key.String(), string(e.Key.Kind), e.Key.ID, e.DisplayName, e.Preview, ts, e.LastMessageID, e.Unread, e.AvatarURL, now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

// LoadConversations returns the cached list, most recent first. Display names
// fall back to the cached contact.
func (db *DB) LoadConversations() ([]chat.ConversationEntry, error) {
	rows, err := db.Query(`
		SELECT c.kind, c.peer_id,
			COALESCE(NULLIF(c.display_name, ''), NULLIF(ct.display_name, ''), NULLIF(ct.username, ''), '') AS name,
			c.preview, c.last_ts, c.last_message_id, c.unread, c.avatar_url, COALESCE(p.state, '')
		FROM conversations c
		LEFT JOIN contacts ct ON c.kind = 'direct' AND ct.id = c.peer_id
		LEFT JOIN presence p ON c.kind = 'direct' AND p.subject_id = c.peer_id
		ORDER BY c.last_ts DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chat.ConversationEntry
	for rows.Next() {
		var (
			e     chat.ConversationEntry
			kind  string
			ts    int64
			state string
		)
		if err := rows.Scan(&kind, &e.Key.ID, &e.DisplayName, &e.Preview, &ts, &e.LastMessageID, &e.Unread, &e.AvatarURL, &state); err != nil {
			return nil, err
		}
		e.Key.Kind = chat.ConversationKind(kind)
		if ts > 0 {
			e.LastTimestamp = time.UnixMilli(ts)
		}
		e.Presence = chat.Presence(state)
		out = append(out, e)
	}
	return out, rows.Err()
}
