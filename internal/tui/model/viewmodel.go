package model

import (
	"context"
	"slices"
	"sync"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/status"
	intsync "github.com/matheus3301/chatsync/internal/sync"
)

// ViewModel caches the engine's published views and signals UI refreshes.
type ViewModel struct {
	mu sync.RWMutex

	self          string
	status        status.State
	thread        intsync.ThreadView
	conversations []chat.ConversationEntry
	toasts        []notify.Toast
	requests      []chat.FriendRequest
	contacts      map[string]chat.Contact
	pending       int

	refreshCh chan struct{}
}

// NewViewModel creates an empty view model.
func NewViewModel() *ViewModel {
	return &ViewModel{
		status:    status.Offline,
		contacts:  make(map[string]chat.Contact),
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Seed replaces the cached state with a full engine snapshot.
func (vm *ViewModel) Seed(s intsync.Snapshot) {
	vm.mu.Lock()
	vm.self = s.Self
	vm.thread = s.Thread
	vm.conversations = s.Conversations
	vm.toasts = s.Toasts
	vm.requests = s.FriendRequests
	vm.pending = s.PendingAcks
	clear(vm.contacts)
	for _, c := range s.Contacts {
		vm.contacts[c.ID] = c
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SetStatus records the connection state.
func (vm *ViewModel) SetStatus(st status.State) {
	vm.mu.Lock()
	vm.status = st
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Apply folds one bus event into the cache. It reports whether the event
// changed anything a view renders.
func (vm *ViewModel) Apply(evt bus.Event) bool {
	vm.mu.Lock()
	changed := true
	switch evt.Kind {
	case bus.KindThreadChanged:
		v, ok := evt.Payload.(intsync.ThreadView)
		if ok {
			vm.thread = v
		}
		changed = ok
	case bus.KindTypingChanged:
		v, ok := evt.Payload.(intsync.TypingView)
		if ok && v.Conversation == vm.thread.Conversation {
			vm.thread.PeerTyping = v.Typing
		}
		changed = ok
	case bus.KindPreviewsChanged:
		v, ok := evt.Payload.([]chat.ConversationEntry)
		if ok {
			vm.conversations = v
		}
		changed = ok
	case bus.KindToastsChanged:
		v, ok := evt.Payload.([]notify.Toast)
		if ok {
			vm.toasts = v
		}
		changed = ok
	case bus.KindFriendsChanged:
		v, ok := evt.Payload.([]chat.FriendRequest)
		if ok {
			vm.requests = v
		}
		changed = ok
	case bus.KindStatusChanged:
		sc, ok := evt.Payload.(status.StatusChange)
		if ok {
			vm.status = sc.To
		}
		changed = ok
	default:
		changed = false
	}
	vm.mu.Unlock()
	if changed {
		vm.signalRefresh()
	}
	return changed
}

// Watch applies view and status events until ctx is cancelled.
func (vm *ViewModel) Watch(ctx context.Context, b *bus.Bus) {
	views, unsubViews := b.Subscribe(bus.NamespaceView, 256)
	sessions, unsubSessions := b.Subscribe(bus.NamespaceSession, 16)
	go func() {
		defer unsubViews()
		defer unsubSessions()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-views:
				vm.Apply(evt)
			case evt := <-sessions:
				vm.Apply(evt)
			}
		}
	}()
}

// Self returns the current user id.
func (vm *ViewModel) Self() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.self
}

// Status returns the connection state.
func (vm *ViewModel) Status() status.State {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Thread returns the open conversation.
func (vm *ViewModel) Thread() intsync.ThreadView {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.thread
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []chat.ConversationEntry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.conversations
}

// Conversation looks up one conversation entry.
func (vm *ViewModel) Conversation(key chat.Key) (chat.ConversationEntry, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	i := slices.IndexFunc(vm.conversations, func(e chat.ConversationEntry) bool { return e.Key == key })
	if i < 0 {
		return chat.ConversationEntry{}, false
	}
	return vm.conversations[i], true
}

// Toasts returns the visible toasts, newest first.
func (vm *ViewModel) Toasts() []notify.Toast {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.toasts
}

// FriendRequests returns pending incoming requests.
func (vm *ViewModel) FriendRequests() []chat.FriendRequest {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.requests
}

// Contact returns a cached contact.
func (vm *ViewModel) Contact(id string) (chat.Contact, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	c, ok := vm.contacts[id]
	return c, ok
}

// SenderName resolves a sender id for display.
func (vm *ViewModel) SenderName(id string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if id == vm.self {
		return "You"
	}
	if c, ok := vm.contacts[id]; ok {
		return c.Name()
	}
	return "User " + id
}

// Unread sums unread counts across conversations.
func (vm *ViewModel) Unread() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	n := 0
	for _, e := range vm.conversations {
		n += e.Unread
	}
	return n
}

// Pending returns the unacknowledged send count from the last snapshot.
func (vm *ViewModel) Pending() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.pending
}

// LastFailed returns the newest failed message in the open thread.
func (vm *ViewModel) LastFailed() (chat.Message, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	msgs := vm.thread.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == chat.StatusFailed {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}

// LastIncoming returns the newest confirmed message from someone else in
// the open thread, the default target for reactions.
func (vm *ViewModel) LastIncoming() (chat.Message, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	msgs := vm.thread.Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.SenderID != vm.self && m.ServerID != "" && m.Kind != chat.ContentSystem {
			return m, true
		}
	}
	return chat.Message{}, false
}
