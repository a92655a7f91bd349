// Package typing emits local typing signals and tracks the remote peer's.
package typing

import (
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/wire"
)

// Emitter sends an event on the live channel.
type Emitter interface {
	Emit(event string, payload any)
}

// Signaler is not safe for concurrent use.
type Signaler struct {
	self string
	out  Emitter

	open chat.Key
	// last is the most recent local signal per conversation; absent means none sent.
	last map[chat.Key]bool

	remote bool
}

// New creates a Signaler for user self.
func New(self string, out Emitter) *Signaler {
	return &Signaler{self: self, out: out, last: make(map[chat.Key]bool)}
}

// SetSelf updates the current user id.
func (s *Signaler) SetSelf(self string) { s.self = self }

// SetOpen changes the open conversation, clearing the remote flag.
// It reports whether the remote flag changed.
func (s *Signaler) SetOpen(key chat.Key) bool {
	s.open = key
	return s.set(false)
}

// Input signals that the user is composing in key.
func (s *Signaler) Input(key chat.Key) {
	if on, sent := s.last[key]; sent && on {
		return
	}
	s.emit(key, true)
}

// Submit emits typing=true then typing=false for key.
func (s *Signaler) Submit(key chat.Key) {
	s.emit(key, true)
	s.emit(key, false)
}

// Blur emits typing=false unless a send is pending or false was the last
// signal for key.
func (s *Signaler) Blur(key chat.Key, pendingSend bool) {
	if pendingSend {
		return
	}
	if on, sent := s.last[key]; sent && !on {
		return
	}
	s.emit(key, false)
}

func (s *Signaler) emit(key chat.Key, on bool) {
	if key.IsZero() {
		return
	}
	p := wire.SendTyping{SenderID: s.self, IsTyping: on}
	if key.Kind == chat.KindGroup {
		p.GroupID = key.ID
	} else {
		p.ReceiverID = key.ID
	}
	s.out.Emit(wire.EventSendTyping, p)
	s.last[key] = on
}

// Remote applies a peer typing signal. Only the peer of the open direct
// conversation is tracked. It reports whether the flag changed.
func (s *Signaler) Remote(senderID string, on bool) bool {
	if s.open.Kind != chat.KindDirect || s.open.ID == "" || s.open.ID != senderID {
		return false
	}
	return s.set(on)
}

// MessageFrom clears the flag when the typing peer's message arrives.
func (s *Signaler) MessageFrom(senderID string) bool {
	if s.open.Kind != chat.KindDirect || s.open.ID != senderID {
		return false
	}
	return s.set(false)
}

// PeerTyping reports whether the open conversation's peer is typing.
func (s *Signaler) PeerTyping() bool { return s.remote }

func (s *Signaler) set(on bool) bool {
	if s.remote == on {
		return false
	}
	s.remote = on
	return true
}
