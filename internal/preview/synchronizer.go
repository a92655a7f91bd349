// Package preview maintains the conversation list: one entry per conversation,
// most recent activity first.
package preview

import (
	"slices"

	"github.com/elliotchance/orderedmap/v3"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/logging"
)

// appliedWindow bounds the set of message ids remembered for idempotency.
const appliedWindow = 1024

// Namer resolves a display name for a conversation. ok is false when unknown.
type Namer func(key chat.Key) (name string, ok bool)

// Synchronizer keeps conversation entries ordered by last activity. The back
// of the underlying map is the most recent entry. It is not safe for
// concurrent use.
type Synchronizer struct {
	self    string
	namer   Namer
	logger  *zap.Logger
	entries *orderedmap.OrderedMap[chat.Key, *chat.ConversationEntry]
	applied *ring
}

// New creates an empty Synchronizer for user self.
func New(self string, namer Namer, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		self:    self,
		namer:   namer,
		logger:  logging.OrNop(logger),
		entries: orderedmap.NewOrderedMap[chat.Key, *chat.ConversationEntry](),
		applied: newRing(appliedWindow),
	}
}

// SetSelf updates the current user id.
func (s *Synchronizer) SetSelf(self string) { s.self = self }

// Load replaces the list with entries, ordering them by last activity.
// Unread counts of conversations already present are kept.
func (s *Synchronizer) Load(entries []chat.ConversationEntry) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b chat.ConversationEntry) int {
		return a.LastTimestamp.Compare(b.LastTimestamp)
	})

	next := orderedmap.NewOrderedMap[chat.Key, *chat.ConversationEntry]()
	for _, e := range sorted {
		if e.Key.IsZero() {
			continue
		}
		entry := e
		if prev, ok := s.entries.Get(e.Key); ok {
			entry.Unread = max(entry.Unread, prev.Unread)
			if entry.Presence == chat.PresenceUnknown {
				entry.Presence = prev.Presence
			}
			if prev.LastTimestamp.After(entry.LastTimestamp) {
				entry.Preview = prev.Preview
				entry.LastTimestamp = prev.LastTimestamp
				entry.LastMessageID = prev.LastMessageID
			}
		}
		if entry.DisplayName == "" {
			entry.DisplayName = s.name(e.Key)
		}
		next.Delete(e.Key)
		next.Set(e.Key, &entry)
	}
	s.entries = next
}

// OnMessage folds a message into the list. open is the conversation currently
// shown. It reports whether the list changed.
func (s *Synchronizer) OnMessage(msg chat.Message, open chat.Key) bool {
	key := msg.Conversation
	if key.IsZero() {
		key = chat.KeyFor(msg, s.self)
	}
	if key.IsZero() && msg.GroupID == "" {
		key = open
	}
	if key.IsZero() {
		s.logger.Warn("dropping message with unresolved peer",
			zap.String("message_id", msg.ID),
			zap.String("sender_id", msg.SenderID),
		)
		return false
	}

	if msg.ID != "" && s.applied.Has(msg.ID) {
		return false
	}
	if msg.ID != "" {
		s.applied.Add(msg.ID)
	}

	entry, ok := s.entries.Get(key)
	if !ok {
		entry = &chat.ConversationEntry{
			Key:         key,
			DisplayName: s.name(key),
		}
	}
	if entry.LastMessageID != "" && entry.LastMessageID == msg.ID {
		return false
	}

	inbound := msg.SenderID != s.self && msg.Kind != chat.ContentSystem
	if inbound && key != open {
		entry.Unread++
	}

	if ok && msg.Timestamp.Before(entry.LastTimestamp) {
		// Older than what is shown; only the unread badge moves.
		return inbound && key != open
	}

	entry.Preview = msg.PreviewText()
	entry.LastTimestamp = msg.Timestamp
	entry.LastMessageID = msg.ID
	s.moveToFront(key, entry)
	return true
}

// Rebind moves the last-message pointer of key from oldID to newID, used when
// an optimistic send is confirmed under its server id.
func (s *Synchronizer) Rebind(key chat.Key, oldID, newID string) {
	entry, ok := s.entries.Get(key)
	if !ok || entry.LastMessageID != oldID {
		return
	}
	entry.LastMessageID = newID
	s.applied.Add(newID)
}

// Upsert inserts an entry without a message, or renames an existing one.
// New entries go to the front.
func (s *Synchronizer) Upsert(e chat.ConversationEntry) bool {
	if e.Key.IsZero() {
		return false
	}
	if cur, ok := s.entries.Get(e.Key); ok {
		return s.rename(cur, e.DisplayName, e.AvatarURL)
	}
	if e.DisplayName == "" {
		e.DisplayName = s.name(e.Key)
	}
	s.moveToFront(e.Key, &e)
	return true
}

// Rename updates the display name and avatar of key. Empty values are ignored.
func (s *Synchronizer) Rename(key chat.Key, name, avatar string) bool {
	cur, ok := s.entries.Get(key)
	if !ok {
		return false
	}
	return s.rename(cur, name, avatar)
}

func (s *Synchronizer) rename(cur *chat.ConversationEntry, name, avatar string) bool {
	changed := false
	if name != "" && name != cur.DisplayName {
		cur.DisplayName = name
		changed = true
	}
	if avatar != "" && avatar != cur.AvatarURL {
		cur.AvatarURL = avatar
		changed = true
	}
	return changed
}

// SetPresence annotates the direct conversation with peerID.
func (s *Synchronizer) SetPresence(peerID string, p chat.Presence) bool {
	cur, ok := s.entries.Get(chat.Direct(peerID))
	if !ok || cur.Presence == p {
		return false
	}
	cur.Presence = p
	return true
}

// MarkRead clears the unread counter of key.
func (s *Synchronizer) MarkRead(key chat.Key) bool {
	cur, ok := s.entries.Get(key)
	if !ok || cur.Unread == 0 {
		return false
	}
	cur.Unread = 0
	return true
}

// Remove drops key from the list.
func (s *Synchronizer) Remove(key chat.Key) bool {
	return s.entries.Delete(key)
}

// Get returns the entry for key.
func (s *Synchronizer) Get(key chat.Key) (chat.ConversationEntry, bool) {
	cur, ok := s.entries.Get(key)
	if !ok {
		return chat.ConversationEntry{}, false
	}
	return *cur, true
}

// Unread returns the total unread count.
func (s *Synchronizer) Unread() int {
	n := 0
	for el := s.entries.Front(); el != nil; el = el.Next() {
		n += el.Value.Unread
	}
	return n
}

// Len returns the number of entries.
func (s *Synchronizer) Len() int { return s.entries.Len() }

// Snapshot returns the entries, most recent first.
func (s *Synchronizer) Snapshot() []chat.ConversationEntry {
	out := make([]chat.ConversationEntry, 0, s.entries.Len())
	for el := s.entries.Back(); el != nil; el = el.Prev() {
		out = append(out, *el.Value)
	}
	return out
}

func (s *Synchronizer) moveToFront(key chat.Key, entry *chat.ConversationEntry) {
	s.entries.Delete(key)
	s.entries.Set(key, entry)
}

func (s *Synchronizer) name(key chat.Key) string {
	if s.namer != nil {
		if n, ok := s.namer(key); ok && n != "" {
			return n
		}
	}
	if key.Kind == chat.KindGroup {
		return "Group " + key.ID
	}
	return "User " + key.ID
}

// ring is a fixed-size set that forgets the oldest ids first.
type ring struct {
	ids  []string
	set  map[string]struct{}
	next int
}

func newRing(size int) *ring {
	return &ring{ids: make([]string, size), set: make(map[string]struct{}, size)}
}

func (r *ring) Has(id string) bool {
	_, ok := r.set[id]
	return ok
}

func (r *ring) Add(id string) {
	if r.Has(id) {
		return
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ids[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
}
