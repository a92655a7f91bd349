package store

import (
	"strings"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// SearchResult holds a cached message matching a query.
type SearchResult struct {
	Conversation chat.Key
	MessageID    string
	SenderID     string
	Payload      string
	Timestamp    time.Time
}

// SearchMessages finds cached text messages containing query, newest first.
// If key is non-zero, results are limited to that conversation.
func (db *DB) SearchMessages(query string, key chat.Key, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := db.Query(`
		SELECT conv_key, msg_id, sender_id, payload, timestamp
		FROM messages
		WHERE kind = 'text' AND payload LIKE ? ESCAPE '\'
			AND (? = '' OR conv_key = ?)
		ORDER BY timestamp DESC
		LIMIT ?`, pattern, key.String(), key.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SearchResult
	for rows.Next() {
		var (
			r  SearchResult
			k  string
			ts int64
		)
		if err := rows.Scan(&k, &r.MessageID, &r.SenderID, &r.Payload, &ts); err != nil {
			return nil, err
		}
		r.Conversation, _ = chat.ParseKey(k)
		r.Timestamp = time.UnixMilli(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
