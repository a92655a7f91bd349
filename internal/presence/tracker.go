// Package presence tracks the online state of contacts.
package presence

import (
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/logging"
)

// Cache persists presence records across restarts.
type Cache interface {
	LoadPresence() ([]chat.PresenceRecord, error)
	SavePresence(rec chat.PresenceRecord) error
}

// Refresher fetches the contact list in the background. Results come back
// through ApplyContacts.
type Refresher interface {
	RefreshContacts()
}

// Tracker holds the last known presence of every contact. It is not safe for
// concurrent use.
type Tracker struct {
	self      string
	cache     Cache
	bus       *bus.Bus
	refresher Refresher
	now       func() time.Time
	logger    *zap.Logger

	records    map[string]chat.PresenceRecord
	known      map[string]bool
	refreshing bool
}

// New creates a Tracker. cache, b and refresher may be nil.
func New(self string, cache Cache, b *bus.Bus, refresher Refresher, logger *zap.Logger) *Tracker {
	return &Tracker{
		self:      self,
		cache:     cache,
		bus:       b,
		refresher: refresher,
		now:       time.Now,
		logger:    logging.OrNop(logger),
		records:   make(map[string]chat.PresenceRecord),
		known:     make(map[string]bool),
	}
}

// SetSelf updates the current user id.
func (t *Tracker) SetSelf(self string) { t.self = self }

// Hydrate loads cached records. Cached subjects count as known contacts.
func (t *Tracker) Hydrate() error {
	if t.cache == nil {
		return nil
	}
	recs, err := t.cache.LoadPresence()
	if err != nil {
		return err
	}
	for _, r := range recs {
		t.records[r.SubjectID] = r
		t.known[r.SubjectID] = true
	}
	t.logger.Debug("presence hydrated", zap.Int("records", len(recs)))
	return nil
}

// OnJoined handles a user coming online.
func (t *Tracker) OnJoined(userID string) bool {
	return t.report(userID, chat.PresenceOnline)
}

// OnOffline handles a user going offline. Servers that only report the
// socket id leave userID empty; the contact list is refreshed instead.
func (t *Tracker) OnOffline(userID string) bool {
	if userID == "" {
		t.refresh("offline event without subject")
		return false
	}
	return t.report(userID, chat.PresenceOffline)
}

// MarkSelfOnline echoes the current user's own presence locally.
func (t *Tracker) MarkSelfOnline() bool {
	if t.self == "" {
		return false
	}
	t.known[t.self] = true
	return t.Set(t.self, chat.PresenceOnline)
}

func (t *Tracker) report(userID string, p chat.Presence) bool {
	if userID == "" {
		return false
	}
	if !t.known[userID] {
		t.refresh("presence for unknown subject " + userID)
	}
	return t.Set(userID, p)
}

func (t *Tracker) refresh(reason string) {
	if t.refresher == nil || t.refreshing {
		return
	}
	t.refreshing = true
	t.logger.Info("refreshing contacts", zap.String("reason", reason))
	t.refresher.RefreshContacts()
}

// Set records a presence state. Every change is persisted and published as
// presence.changed. It reports whether the state changed.
func (t *Tracker) Set(userID string, p chat.Presence) bool {
	if userID == "" || p == chat.PresenceUnknown {
		return false
	}
	if cur, ok := t.records[userID]; ok && cur.State == p {
		return false
	}
	rec := chat.PresenceRecord{SubjectID: userID, State: p, ChangedAt: t.now()}
	t.records[userID] = rec

	if t.cache != nil {
		if err := t.cache.SavePresence(rec); err != nil {
			t.logger.Warn("failed to persist presence", zap.String("subject", userID), zap.Error(err))
		}
	}
	if t.bus != nil {
		t.bus.Emit(bus.KindPresenceChanged, rec)
	}
	return true
}

// ApplyContacts installs a refreshed contact list. States reported in the
// list win; contacts without a state keep what was last recorded.
// It returns the subjects whose presence changed.
func (t *Tracker) ApplyContacts(contacts []chat.Contact) []string {
	t.refreshing = false
	var changed []string
	for _, c := range contacts {
		if c.ID == "" {
			continue
		}
		t.known[c.ID] = true
		if t.Set(c.ID, c.Presence) {
			changed = append(changed, c.ID)
		}
	}
	return changed
}

// RefreshFailed clears the in-flight flag so a later event can retry.
func (t *Tracker) RefreshFailed() { t.refreshing = false }

// Known reports whether userID is a known contact.
func (t *Tracker) Known(userID string) bool { return t.known[userID] }

// Get returns the presence of userID.
func (t *Tracker) Get(userID string) chat.Presence {
	return t.records[userID].State
}

// Snapshot returns every record ordered by subject id.
func (t *Tracker) Snapshot() []chat.PresenceRecord {
	out := make([]chat.PresenceRecord, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b chat.PresenceRecord) int { return strings.Compare(a.SubjectID, b.SubjectID) })
	return out
}
