package wire

// Message is the server representation of a chat message, used by both
// receive_message and REST history responses.
type Message struct {
	ID              ID     `json:"id"`
	ClientMessageID string `json:"client_message_id,omitempty"`
	SenderID        ID     `json:"sender_id"`
	ReceiverID      ID     `json:"receiver_id"`
	GroupID         ID     `json:"group_id,omitempty"`
	Content         string `json:"content"`
	MessageType     string `json:"message_type,omitempty"`
	StickerURL      string `json:"sticker_url,omitempty"`
	FileURL         string `json:"file_url,omitempty"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status,omitempty"`
	ReplyToID       ID     `json:"reply_to_id,omitempty"`
	ForwardFromID   ID     `json:"forward_from_id,omitempty"`
	// Reactions maps user id to emoji.
	Reactions map[string]string `json:"reactions,omitempty"`
}

// Ack confirms or rejects an outbound send.
type Ack struct {
	ClientMessageID string `json:"client_message_id"`
	MessageID       ID     `json:"message_id,omitempty"`
	Status          string `json:"status,omitempty"`
	BlockedMessage  string `json:"blocked_message,omitempty"`
}

// Reaction is a reaction broadcast.
type Reaction struct {
	MessageID       ID     `json:"message_id"`
	UserID          ID     `json:"user_id"`
	Reaction        string `json:"reaction"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// Typing is a remote typing indicator.
type Typing struct {
	SenderID   ID   `json:"sender_id"`
	ReceiverID ID   `json:"receiver_id,omitempty"`
	IsTyping   bool `json:"is_typing"`
}

// UserJoined signals that a user came online.
type UserJoined struct {
	UserID ID     `json:"user_id"`
	Room   string `json:"room,omitempty"`
}

// UserOffline signals that a user went offline. Older servers send only the socket id.
type UserOffline struct {
	UserID ID     `json:"user_id,omitempty"`
	SID    string `json:"sid,omitempty"`
}

// Friend carries a friend-relationship event.
type Friend struct {
	FromID      ID     `json:"from_id"`
	ToID        ID     `json:"to_id,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// User is the profile shape used by REST and contact events.
type User struct {
	ID          ID     `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ContactUpdated wraps a nested profile change.
type ContactUpdated struct {
	Event string `json:"event"`
	Data  User   `json:"data"`
}

// Group is a group summary.
type Group struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ConversationSummary is one row of GET /messages/conversations.
type ConversationSummary struct {
	Type        string `json:"type"`
	ID          ID     `json:"id"`
	LastMessage string `json:"last_message"`
	LastTS      string `json:"last_ts"`
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// FriendRequest is one row of GET /users/friend-requests.
type FriendRequest struct {
	ID        ID     `json:"id"`
	FromID    ID     `json:"from_id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SendMessage is the outbound send_message payload.
type SendMessage struct {
	ClientMessageID string `json:"client_message_id"`
	SenderID        string `json:"sender_id"`
	ReceiverID      string `json:"receiver_id,omitempty"`
	GroupID         string `json:"group_id,omitempty"`
	Content         string `json:"content"`
	MessageType     string `json:"message_type"`
	StickerURL      string `json:"sticker_url,omitempty"`
	FileURL         string `json:"file_url,omitempty"`
	ReplyToID       string `json:"reply_to_id,omitempty"`
}

// SendReaction is the outbound send_reaction payload.
type SendReaction struct {
	ClientMessageID string `json:"client_message_id"`
	MessageID       string `json:"message_id"`
	UserID          string `json:"user_id"`
	Reaction        string `json:"reaction"`
}

// SendTyping is the outbound send_typing payload.
type SendTyping struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	IsTyping   bool   `json:"is_typing"`
}

// UserRef addresses another user in friend and block commands.
type UserRef struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
}

// JoinRoom is the outbound join_user_room payload.
type JoinRoom struct {
	UserID string `json:"user_id"`
}
