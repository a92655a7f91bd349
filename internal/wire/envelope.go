package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope is one frame on the live channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventReceiveMessage  = "receive_message"
	EventMessageSentAck  = "message_sent_ack"
	EventReaction        = "reaction"
	EventTyping          = "typing"
	EventFriendRequest   = "friend_request_received"
	EventFriendAccepted  = "friend_accepted"
	EventFriendRejected  = "friend_rejected"
	EventUserJoined      = "user_joined"
	EventUserOffline     = "user_offline"
	EventContactUpdated  = "contact_updated"
	EventGroupCreated    = "group_created"
	EventGroupUpdated    = "group_updated"
	EventPong            = "pong"
	EventConnected       = "connected"
	EventContactsList    = "contacts_list"
	EventReactionAck     = "reaction_ack"
	aliasMessageReaction = "message_reaction"
	aliasUserTyping      = "user_typing"
)

// Outbound event names.
const (
	EventSendMessage    = "send_message"
	EventSendReaction   = "send_reaction"
	EventSendTyping     = "send_typing"
	EventSendFriendReq  = "send_friend_request"
	EventSendFriendOK   = "send_friend_accept"
	EventSendFriendNo   = "send_friend_reject"
	EventSendBlock      = "send_block_user"
	EventSendUnblock    = "send_unblock_user"
	EventJoinUserRoom   = "join_user_room"
	EventRequestContact = "request_contacts_list"
	EventPing           = "ping"
)

// Canonical maps legacy event names to their current equivalents.
func Canonical(event string) string {
	switch event {
	case aliasMessageReaction:
		return EventReaction
	case aliasUserTyping:
		return EventTyping
	}
	return event
}

// Encode builds a frame for event carrying data.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// Decode parses a frame, canonicalizing the event name.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event name")
	}
	env.Event = Canonical(env.Event)
	return env, nil
}

// Bind unmarshals the envelope data into v.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
