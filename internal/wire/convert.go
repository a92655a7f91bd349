package wire

import (
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// ToChat converts a server message to the domain model. self resolves the
// conversation key; loc is the display zone for the timestamp. An unparseable
// timestamp falls back to now.
func (m Message) ToChat(self string, loc *time.Location) chat.Message {
	kind, payload := m.content()
	ts, err := chat.ParseTimestamp(m.Timestamp, loc)
	if err != nil {
		ts = time.Now()
		if loc != nil {
			ts = ts.In(loc)
		}
	}
	out := chat.Message{
		ID:         string(m.ID),
		ClientID:   m.ClientMessageID,
		ServerID:   string(m.ID),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		GroupID:    string(m.GroupID),
		Kind:       kind,
		Payload:    payload,
		Timestamp:  ts,
		Status:     chat.ParseStatus(m.Status),
		ReplyToID:  string(m.ReplyToID),
	}
	if out.ID == "" {
		out.ID = m.ClientMessageID
	}
	if len(m.Reactions) > 0 {
		out.Reactions = make(map[string]string, len(m.Reactions))
		for k, v := range m.Reactions {
			out.Reactions[k] = v
		}
	}
	out.Conversation = chat.KeyFor(out, self)
	return out
}

func (m Message) content() (chat.ContentKind, string) {
	switch m.MessageType {
	case "sticker":
		if m.StickerURL != "" {
			return chat.ContentSticker, m.StickerURL
		}
		return chat.ContentSticker, m.Content
	case "file", "image":
		url := m.FileURL
		if url == "" {
			url = m.Content
		}
		return chat.ClassifyFile(url), url
	case "system":
		return chat.ContentSystem, m.Content
	}
	if m.FileURL != "" {
		return chat.ClassifyFile(m.FileURL), m.FileURL
	}
	return chat.ContentText, m.Content
}

// FromChat builds the outbound send_message payload for an optimistic message.
func FromChat(m chat.Message) SendMessage {
	out := SendMessage{
		ClientMessageID: m.ClientID,
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		GroupID:         m.GroupID,
		Content:         m.Payload,
		MessageType:     "text",
		ReplyToID:       m.ReplyToID,
	}
	switch m.Kind {
	case chat.ContentSticker:
		out.MessageType = "sticker"
		out.StickerURL = m.Payload
	case chat.ContentFile, chat.ContentImage:
		out.MessageType = "file"
		out.FileURL = m.Payload
	}
	return out
}

// ToContact converts a user profile.
func (u User) ToContact() chat.Contact {
	return chat.Contact{
		ID:          string(u.ID),
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Presence:    chat.ParsePresence(u.Status),
	}
}

// ToEntry converts a conversation summary. Summaries without an id yield ok=false.
func (s ConversationSummary) ToEntry(loc *time.Location) (chat.ConversationEntry, bool) {
	if s.ID == "" {
		return chat.ConversationEntry{}, false
	}
	e := chat.ConversationEntry{Preview: s.LastMessage, AvatarURL: s.AvatarURL}
	if s.Type == "group" {
		e.Key = chat.Group(string(s.ID))
		e.DisplayName = s.GroupName
	} else {
		e.Key = chat.Direct(string(s.ID))
		e.DisplayName = s.DisplayName
		if e.DisplayName == "" {
			e.DisplayName = s.Username
		}
	}
	if ts, err := chat.ParseTimestamp(s.LastTS, loc); err == nil {
		e.LastTimestamp = ts
	}
	return e, true
}
