package sync

import (
	"context"
	"slices"
	"strings"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/notify"
)

// ThreadView is the payload of view.thread events.
type ThreadView struct {
	Conversation chat.Key
	Title        string
	Messages     []chat.Message
	PeerTyping   bool
}

// TypingView is the payload of view.typing events.
type TypingView struct {
	Conversation chat.Key
	Typing       bool
}

// Snapshot is a consistent copy of everything a surface renders.
type Snapshot struct {
	Self           string
	Thread         ThreadView
	Conversations  []chat.ConversationEntry
	Toasts         []notify.Toast
	FriendRequests []chat.FriendRequest
	Contacts       []chat.Contact
	Presence       []chat.PresenceRecord
	PendingAcks    int
	Unread         int
}

func (e *Engine) threadView() ThreadView {
	key := e.thread.Open()
	v := ThreadView{Conversation: key, PeerTyping: e.typing.PeerTyping()}
	if key.IsZero() {
		return v
	}
	v.Title, _ = e.name(key)
	if v.Title == "" {
		if entry, ok := e.previews.Get(key); ok {
			v.Title = entry.DisplayName
		}
	}
	v.Messages = e.thread.Snapshot()
	return v
}

func (e *Engine) publishThread() {
	e.bus.Emit(bus.KindThreadChanged, e.threadView())
}

func (e *Engine) publishPreviews() {
	e.metrics.SetUnread(e.previews.Unread())
	e.bus.Emit(bus.KindPreviewsChanged, e.previews.Snapshot())
}

func (e *Engine) publishTyping() {
	e.bus.Emit(bus.KindTypingChanged, TypingView{
		Conversation: e.thread.Open(),
		Typing:       e.typing.PeerTyping(),
	})
}

func (e *Engine) publishFriends() {
	e.bus.Emit(bus.KindFriendsChanged, append([]chat.FriendRequest(nil), e.requests...))
}

func (e *Engine) onToasts(toasts []notify.Toast) {
	e.bus.Emit(bus.KindToastsChanged, toasts)
}

// Snapshot returns the current state as seen by the loop.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := e.do(ctx, func() {
		s = Snapshot{
			Self:           e.self,
			Thread:         e.threadView(),
			Conversations:  e.previews.Snapshot(),
			Toasts:         e.toasts.Visible(),
			FriendRequests: append([]chat.FriendRequest(nil), e.requests...),
			Presence:       e.presence.Snapshot(),
			PendingAcks:    e.ids.Pending(),
			Unread:         e.previews.Unread(),
		}
		for _, c := range e.contacts {
			c.Presence = e.presence.Get(c.ID)
			s.Contacts = append(s.Contacts, c)
		}
		slices.SortFunc(s.Contacts, func(a, b chat.Contact) int {
			return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
		})
	})
	return s, err
}

// Thread returns the open conversation and its messages.
func (e *Engine) Thread(ctx context.Context) (ThreadView, error) {
	var v ThreadView
	err := e.do(ctx, func() { v = e.threadView() })
	return v, err
}

// Conversations returns the conversation list, most recent first.
func (e *Engine) Conversations(ctx context.Context) ([]chat.ConversationEntry, error) {
	var out []chat.ConversationEntry
	err := e.do(ctx, func() { out = e.previews.Snapshot() })
	return out, err
}

// Toasts returns the visible toasts, newest first.
func (e *Engine) Toasts(ctx context.Context) ([]notify.Toast, error) {
	var out []notify.Toast
	err := e.do(ctx, func() { out = e.toasts.Visible() })
	return out, err
}

// Self returns the current user id.
func (e *Engine) Self(ctx context.Context) (string, error) {
	var id string
	err := e.do(ctx, func() { id = e.self })
	return id, err
}
