package chat

import (
	"maps"
	"strings"
	"time"
)

// ConversationKind distinguishes direct and group conversations.
type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

// Key identifies a conversation: the peer user id for direct chats, the group id for groups.
type Key struct {
	Kind ConversationKind
	ID   string
}

// Direct returns the key of the direct conversation with peerID.
func Direct(peerID string) Key { return Key{Kind: KindDirect, ID: peerID} }

// Group returns the key of a group conversation.
func Group(groupID string) Key { return Key{Kind: KindGroup, ID: groupID} }

// IsZero reports whether k identifies no conversation.
func (k Key) IsZero() bool { return k.ID == "" }

func (k Key) String() string {
	if k.IsZero() {
		return ""
	}
	return string(k.Kind) + ":" + k.ID
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, bool) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return Key{}, false
	}
	switch ConversationKind(kind) {
	case KindDirect, KindGroup:
		return Key{Kind: ConversationKind(kind), ID: id}, true
	}
	return Key{}, false
}

// ContentKind is the payload type of a message.
type ContentKind string

const (
	ContentText    ContentKind = "text"
	ContentSticker ContentKind = "sticker"
	ContentFile    ContentKind = "file"
	ContentImage   ContentKind = "image"
	ContentSystem  ContentKind = "system"
)

// Visual reports whether the payload is an image-like attachment.
func (k ContentKind) Visual() bool {
	return k == ContentSticker || k == ContentImage
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// ClassifyFile returns ContentImage for URLs with an image extension, ContentFile otherwise.
func ClassifyFile(url string) ContentKind {
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	for _, ext := range imageExts {
		if strings.HasSuffix(u, ext) {
			return ContentImage
		}
	}
	return ContentFile
}

// Message is one entry in a conversation's message set.
//
// ID is the resolved identity: the server id once known, the client id before that.
type Message struct {
	ID           string
	ClientID     string
	ServerID     string
	Conversation Key
	SenderID     string
	ReceiverID   string
	GroupID      string
	Kind         ContentKind
	Payload      string
	Timestamp    time.Time
	Status       Status
	ReplyToID    string
	// Reactions maps user id to emoji.
	Reactions map[string]string
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	m.Reactions = maps.Clone(m.Reactions)
	return m
}

// Target returns the receiving side: the group id for group messages, the receiver otherwise.
func (m Message) Target() string {
	if m.GroupID != "" {
		return m.GroupID
	}
	return m.ReceiverID
}

// SameContent reports whether a and b carry the same sender, target, kind and payload.
func SameContent(a, b Message) bool {
	return a.SenderID == b.SenderID &&
		a.Target() == b.Target() &&
		a.Kind == b.Kind &&
		a.Payload == b.Payload
}

// KeyFor returns the conversation a message belongs to from self's point of view.
// The zero Key is returned when the peer cannot be resolved.
func KeyFor(m Message, self string) Key {
	if m.GroupID != "" {
		return Group(m.GroupID)
	}
	switch {
	case m.SenderID != "" && m.SenderID != self:
		return Direct(m.SenderID)
	case m.SenderID == self && m.ReceiverID != "" && m.ReceiverID != self:
		return Direct(m.ReceiverID)
	}
	return Key{}
}

// PreviewText is the one-line summary shown in the conversation list.
func (m Message) PreviewText() string {
	switch m.Kind {
	case ContentSticker:
		return "[sticker]"
	case ContentImage:
		return "[image]"
	case ContentFile:
		return "[file]"
	}
	line, _, _ := strings.Cut(m.Payload, "\n")
	return line
}

// Presence is the binary online state of a contact.
type Presence string

const (
	PresenceUnknown Presence = ""
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

// ParsePresence maps server status strings to Presence.
func ParsePresence(s string) Presence {
	switch strings.ToLower(s) {
	case "online", "active":
		return PresenceOnline
	case "offline", "away", "inactive":
		return PresenceOffline
	}
	return PresenceUnknown
}

// PresenceRecord is the last known presence of one contact.
type PresenceRecord struct {
	SubjectID string
	State     Presence
	ChangedAt time.Time
}

// Contact is a friend of the current user.
type Contact struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	Presence    Presence
}

// Name returns the best human-readable name for the contact.
func (c Contact) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.Username != "" {
		return c.Username
	}
	return "User " + c.ID
}

// ConversationEntry is one row of the conversation list.
type ConversationEntry struct {
	Key           Key
	DisplayName   string
	Preview       string
	LastTimestamp time.Time
	LastMessageID string
	Presence      Presence
	Unread        int
	AvatarURL     string
}

// FriendRequest is a pending incoming friend request.
type FriendRequest struct {
	FromID   string
	Username string
	SentAt   time.Time
}
