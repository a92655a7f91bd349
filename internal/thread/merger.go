// Package thread keeps the message set of the open conversation, merging
// history pages, live pushes and optimistic sends into one ordered list in
// which every message identity appears at most once.
package thread

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/logging"
)

// Outcome describes what ApplyLive did with a message.
type Outcome int

const (
	// OutOfScope: the message belongs to a conversation that is not open.
	OutOfScope Outcome = iota
	// Duplicate: the message was already present with identical state.
	Duplicate
	// Updated: an existing entry was updated in place.
	Updated
	// Resolved: a pending optimistic entry was confirmed by the message.
	Resolved
	// Appended: the message was new and appended.
	Appended
	// Dropped: the message carried no identity.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case OutOfScope:
		return "out_of_scope"
	case Duplicate:
		return "duplicate"
	case Updated:
		return "updated"
	case Resolved:
		return "resolved"
	case Appended:
		return "appended"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// historySkew bounds how far a stored copy of a pending send may predate it
// and still be claimed by content.
const historySkew = time.Minute

// Merger owns the visible message set of one open conversation. It is not
// safe for concurrent use.
type Merger struct {
	self   string
	loc    *time.Location
	logger *zap.Logger

	open  chat.Key
	token uint64
	msgs  []chat.Message
	// index maps every known identity (server id and client id) to a position in msgs.
	index map[string]int
}

// New creates a Merger for the user self. Timestamps are presented in loc.
func New(self string, loc *time.Location, logger *zap.Logger) *Merger {
	if loc == nil {
		loc = time.Local
	}
	return &Merger{
		self:   self,
		loc:    loc,
		logger: logging.OrNop(logger),
		index:  make(map[string]int),
	}
}

// SetSelf updates the current user id.
func (m *Merger) SetSelf(self string) { m.self = self }

// Open returns the currently open conversation.
func (m *Merger) Open() chat.Key { return m.open }

// Select opens key, clears the visible set and returns the token that a
// history response must carry to be applied.
func (m *Merger) Select(key chat.Key) uint64 {
	m.token++
	m.open = key
	m.msgs = nil
	clear(m.index)
	return m.token
}

// Reload returns a fresh token for the open conversation without clearing
// it, so a refetched page merges into what is shown.
func (m *Merger) Reload() uint64 {
	m.token++
	return m.token
}

// Close clears the open conversation and invalidates in-flight history requests.
func (m *Merger) Close() {
	m.Select(chat.Key{})
}

// Current reports whether token belongs to the latest Select.
func (m *Merger) Current(token uint64) bool { return token == m.token }

// ApplyHistory merges a history page. Stale tokens are discarded. History
// entries keep server order, deduplicated with the first occurrence winning.
// Visible entries the page does not contain keep their relative order: those
// shown before the first entry the page overlaps stay in front of it, the
// rest follow it.
func (m *Merger) ApplyHistory(token uint64, page []chat.Message) bool {
	if !m.Current(token) {
		m.logger.Debug("discarding stale history",
			zap.Uint64("token", token),
			zap.Uint64("current", m.token),
		)
		return false
	}

	merged := make([]chat.Message, 0, len(page)+len(m.msgs))
	pos := make(map[string]int, len(page))
	for _, msg := range page {
		msg = m.normalize(msg)
		if msg.ID == "" {
			continue
		}
		if _, dup := pos[msg.ID]; dup {
			continue
		}
		pos[msg.ID] = len(merged)
		merged = append(merged, msg)
	}

	claimed := make(map[int]bool)
	first := -1
	var rest []int
	for vi, cur := range m.msgs {
		i, ok := lookup(pos, cur)
		if !ok && cur.Status.Pending() && cur.ServerID == "" {
			if i, ok = m.claim(merged, claimed, cur); ok {
				claimed[i] = true
			}
		}
		if ok {
			merged[i] = mergeInto(merged[i], cur)
			if first < 0 {
				first = vi
			}
			continue
		}
		rest = append(rest, vi)
	}

	cut := first
	if cut < 0 {
		cut = olderPrefix(m.msgs, merged)
	}
	var lead, tail []chat.Message
	for _, vi := range rest {
		if vi < cut {
			lead = append(lead, m.msgs[vi])
		} else {
			tail = append(tail, m.msgs[vi])
		}
	}

	out := make([]chat.Message, 0, len(lead)+len(merged)+len(tail))
	out = append(out, lead...)
	out = append(out, merged...)
	out = append(out, tail...)
	m.msgs = out
	m.reindex()
	return true
}

// olderPrefix counts the leading visible entries older than the page head.
func olderPrefix(visible, page []chat.Message) int {
	if len(page) == 0 {
		return 0
	}
	n := 0
	for n < len(visible) && visible[n].Timestamp.Before(page[0].Timestamp) {
		n++
	}
	return n
}

// claim finds a stored copy of a pending send, searching newest first.
func (m *Merger) claim(merged []chat.Message, claimed map[int]bool, pending chat.Message) (int, bool) {
	for i := len(merged) - 1; i >= 0; i-- {
		h := merged[i]
		if claimed[i] || h.ClientID != "" || h.SenderID != m.self {
			continue
		}
		if h.Timestamp.Before(pending.Timestamp.Add(-historySkew)) {
			break
		}
		if chat.SameContent(h, pending) {
			return i, true
		}
	}
	return 0, false
}

// ApplyLive merges one pushed message. The returned message is the entry as
// stored after the merge.
func (m *Merger) ApplyLive(msg chat.Message) (Outcome, chat.Message) {
	msg = m.normalize(msg)
	if m.open.IsZero() || msg.Conversation != m.open {
		if msg.ID == "" {
			m.logger.Warn("dropping live message without identity", zap.String("conversation", msg.Conversation.String()))
			return Dropped, msg
		}
		return OutOfScope, msg
	}

	if i, ok := m.find(msg.ServerID, msg.ClientID); ok {
		cur := m.msgs[i]
		next := mergeInto(cur, msg)
		if equal(cur, next) {
			return Duplicate, cur
		}
		m.set(i, next)
		if cur.Status.Pending() && cur.ServerID == "" && next.ServerID != "" {
			return Resolved, next
		}
		return Updated, next
	}

	if msg.SenderID == m.self {
		for i, cur := range m.msgs {
			if cur.Status.Pending() && cur.ServerID == "" && chat.SameContent(cur, msg) {
				next := mergeInto(msg, cur)
				m.set(i, next)
				return Resolved, next
			}
		}
	}

	if msg.ID == "" {
		m.logger.Warn("dropping live message without identity", zap.String("conversation", msg.Conversation.String()))
		return Dropped, msg
	}
	m.append(msg)
	return Appended, msg
}

// Insert appends an optimistic entry.
func (m *Merger) Insert(msg chat.Message) {
	if _, ok := m.find(msg.ServerID, msg.ClientID); ok {
		return
	}
	m.append(msg.Clone())
}

// Append adds a local-only entry such as a system notice.
func (m *Merger) Append(msg chat.Message) {
	m.append(msg.Clone())
}

// Get returns the entry with identity id.
func (m *Merger) Get(id string) (chat.Message, bool) {
	i, ok := m.index[id]
	if !ok {
		return chat.Message{}, false
	}
	return m.msgs[i].Clone(), true
}

// Resolve confirms a pending entry by its client id. serverID may be empty.
func (m *Merger) Resolve(clientID, serverID string, status chat.Status) (chat.Message, bool) {
	i, ok := m.index[clientID]
	if !ok {
		return chat.Message{}, false
	}
	next := m.msgs[i].Clone()
	if serverID != "" {
		if j, dup := m.index[serverID]; dup && j != i {
			// The broadcast won the race and was stored separately; fold it in.
			next = mergeInto(m.msgs[j], next)
			m.removeAt(j)
			if j < i {
				i--
			}
		}
		next.ServerID = serverID
		next.ID = serverID
	}
	next.Status = next.Status.Advance(status)
	m.set(i, next)
	return next.Clone(), true
}

// SetStatus advances the status of entry id. It reports whether the status changed.
func (m *Merger) SetStatus(id string, status chat.Status) bool {
	i, ok := m.index[id]
	if !ok || !m.msgs[i].Status.CanAdvanceTo(status) {
		return false
	}
	m.msgs[i].Status = status
	return true
}

// Replace swaps the entry with identity oldID for msg, keeping its position.
func (m *Merger) Replace(oldID string, msg chat.Message) bool {
	i, ok := m.index[oldID]
	if !ok {
		return false
	}
	m.set(i, msg.Clone())
	return true
}

// SetReaction sets userID's reaction on a message; an empty emoji removes it.
// It returns the previous reaction and whether the message exists.
func (m *Merger) SetReaction(messageID, userID, emoji string) (string, bool) {
	i, ok := m.index[messageID]
	if !ok {
		return "", false
	}
	prev := m.msgs[i].Reactions[userID]
	if emoji == "" {
		delete(m.msgs[i].Reactions, userID)
		return prev, true
	}
	if m.msgs[i].Reactions == nil {
		m.msgs[i].Reactions = make(map[string]string)
	}
	m.msgs[i].Reactions[userID] = emoji
	return prev, true
}

// Snapshot returns a copy of the visible set in display order.
func (m *Merger) Snapshot() []chat.Message {
	out := make([]chat.Message, len(m.msgs))
	for i, msg := range m.msgs {
		out[i] = msg.Clone()
	}
	return out
}

// Len returns the number of visible entries.
func (m *Merger) Len() int { return len(m.msgs) }

func (m *Merger) normalize(msg chat.Message) chat.Message {
	msg = msg.Clone()
	if msg.Conversation.IsZero() {
		msg.Conversation = chat.KeyFor(msg, m.self)
	}
	if !msg.Timestamp.IsZero() {
		msg.Timestamp = msg.Timestamp.In(m.loc)
	}
	if msg.ID == "" {
		msg.ID = msg.ServerID
	}
	if msg.ID == "" {
		msg.ID = msg.ClientID
	}
	if msg.Status == "" {
		msg.Status = chat.StatusSent
	}
	return msg
}

func (m *Merger) find(serverID, clientID string) (int, bool) {
	if serverID != "" {
		if i, ok := m.index[serverID]; ok {
			return i, true
		}
	}
	if clientID != "" {
		if i, ok := m.index[clientID]; ok {
			return i, true
		}
	}
	return 0, false
}

func (m *Merger) append(msg chat.Message) {
	m.msgs = append(m.msgs, msg)
	m.indexAt(len(m.msgs) - 1)
}

func (m *Merger) set(i int, msg chat.Message) {
	m.unindex(m.msgs[i])
	m.msgs[i] = msg
	m.indexAt(i)
}

func (m *Merger) removeAt(i int) {
	m.msgs = append(m.msgs[:i], m.msgs[i+1:]...)
	m.reindex()
}

func (m *Merger) indexAt(i int) {
	msg := m.msgs[i]
	for _, id := range []string{msg.ID, msg.ServerID, msg.ClientID} {
		if id != "" {
			m.index[id] = i
		}
	}
}

func (m *Merger) unindex(msg chat.Message) {
	for _, id := range []string{msg.ID, msg.ServerID, msg.ClientID} {
		delete(m.index, id)
	}
}

func (m *Merger) reindex() {
	clear(m.index)
	for i := range m.msgs {
		m.indexAt(i)
	}
}

func lookup(pos map[string]int, msg chat.Message) (int, bool) {
	for _, id := range []string{msg.ServerID, msg.ID, msg.ClientID} {
		if id == "" {
			continue
		}
		if i, ok := pos[id]; ok {
			return i, true
		}
	}
	return 0, false
}

// mergeInto combines two copies of the same message. base supplies content;
// identities, status and reactions never move backwards.
func mergeInto(base, other chat.Message) chat.Message {
	out := base.Clone()
	if out.ServerID == "" {
		out.ServerID = other.ServerID
	}
	if out.ClientID == "" {
		out.ClientID = other.ClientID
	}
	if out.ServerID != "" {
		out.ID = out.ServerID
	}
	switch {
	case other.Status.CanAdvanceTo(out.Status):
	case out.Status.CanAdvanceTo(other.Status):
		out.Status = other.Status
	case out.Status.Pending() || out.Status == "":
		out.Status = other.Status
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = other.Timestamp
	}
	if out.ReplyToID == "" {
		out.ReplyToID = other.ReplyToID
	}
	if len(other.Reactions) > 0 {
		if out.Reactions == nil {
			out.Reactions = make(map[string]string, len(other.Reactions))
		}
		for u, e := range other.Reactions {
			if _, ok := out.Reactions[u]; !ok {
				out.Reactions[u] = e
			}
		}
	}
	return out
}

func equal(a, b chat.Message) bool {
	if a.ID != b.ID || a.ServerID != b.ServerID || a.ClientID != b.ClientID ||
		a.Status != b.Status || a.Payload != b.Payload || len(a.Reactions) != len(b.Reactions) {
		return false
	}
	for u, e := range a.Reactions {
		if b.Reactions[u] != e {
			return false
		}
	}
	return true
}
