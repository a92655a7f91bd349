package presence

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
)

type memCache struct {
	recs    map[string]chat.PresenceRecord
	saves   int
	failErr error
}

func newMemCache() *memCache { return &memCache{recs: map[string]chat.PresenceRecord{}} }

func (m *memCache) LoadPresence() ([]chat.PresenceRecord, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []chat.PresenceRecord
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memCache) SavePresence(r chat.PresenceRecord) error {
	m.saves++
	m.recs[r.SubjectID] = r
	return nil
}

type countingRefresher struct{ calls int }

func (c *countingRefresher) RefreshContacts() { c.calls++ }

func TestJoinedPersistsAndPublishes(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.NamespacePresence, 10)
	defer unsub()
	cache := newMemCache()
	tr := New("1", cache, b, nil, nil)
	tr.ApplyContacts([]chat.Contact{{ID: "2"}})

	if !tr.OnJoined("2") {
		t.Fatal("OnJoined reported no change")
	}
	if tr.Get("2") != chat.PresenceOnline {
		t.Errorf("Get = %q, want online", tr.Get("2"))
	}
	if cache.recs["2"].State != chat.PresenceOnline {
		t.Error("presence not persisted")
	}

	select {
	case evt := <-ch:
		rec := evt.Payload.(chat.PresenceRecord)
		if evt.Kind != bus.KindPresenceChanged || rec.SubjectID != "2" || rec.State != chat.PresenceOnline {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for presence.changed")
	}

	if tr.OnJoined("2") {
		t.Error("repeated join reported change")
	}
	if cache.saves != 1 {
		t.Errorf("saves = %d, want 1", cache.saves)
	}
}

func TestUnknownSubjectTriggersRefresh(t *testing.T) {
	ref := &countingRefresher{}
	tr := New("1", nil, nil, ref, nil)

	tr.OnJoined("9")
	tr.OnJoined("8")
	if ref.calls != 1 {
		t.Fatalf("refresh calls = %d, want 1 while in flight", ref.calls)
	}

	tr.ApplyContacts([]chat.Contact{{ID: "9", Presence: chat.PresenceOffline}, {ID: "8"}})
	if tr.Get("9") != chat.PresenceOffline {
		t.Errorf("presence after refresh = %q, want offline from contact list", tr.Get("9"))
	}
	if tr.Get("8") != chat.PresenceOnline {
		t.Errorf("presence after refresh = %q, want online kept", tr.Get("8"))
	}
	if !tr.Known("9") {
		t.Error("subject not known after refresh")
	}

	tr.OnJoined("7")
	if ref.calls != 2 {
		t.Errorf("refresh calls = %d, want 2", ref.calls)
	}
}

func TestOfflineWithoutSubjectRefreshes(t *testing.T) {
	ref := &countingRefresher{}
	tr := New("1", nil, nil, ref, nil)
	if tr.OnOffline("") {
		t.Error("subjectless offline reported change")
	}
	if ref.calls != 1 {
		t.Errorf("refresh calls = %d, want 1", ref.calls)
	}
	tr.RefreshFailed()
	tr.OnOffline("")
	if ref.calls != 2 {
		t.Errorf("refresh calls after failure = %d, want 2", ref.calls)
	}
}

func TestHydrate(t *testing.T) {
	cache := newMemCache()
	cache.recs["2"] = chat.PresenceRecord{SubjectID: "2", State: chat.PresenceOnline}
	ref := &countingRefresher{}
	tr := New("1", cache, nil, ref, nil)

	if err := tr.Hydrate(); err != nil {
		t.Fatal(err)
	}
	if tr.Get("2") != chat.PresenceOnline {
		t.Error("hydrated presence missing")
	}
	tr.OnOffline("2")
	if ref.calls != 0 {
		t.Error("hydrated subject treated as unknown")
	}

	cache.failErr = errors.New("disk gone")
	if err := tr.Hydrate(); err == nil {
		t.Error("Hydrate() swallowed cache error")
	}
}

func TestMarkSelfOnline(t *testing.T) {
	tr := New("1", nil, nil, &countingRefresher{}, nil)
	if !tr.MarkSelfOnline() || tr.Get("1") != chat.PresenceOnline {
		t.Error("self not marked online")
	}
	if New("", nil, nil, nil, nil).MarkSelfOnline() {
		t.Error("MarkSelfOnline without self id succeeded")
	}
}

func TestSnapshotSorted(t *testing.T) {
	tr := New("1", nil, nil, nil, nil)
	tr.Set("3", chat.PresenceOnline)
	tr.Set("2", chat.PresenceOffline)
	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].SubjectID != "2" || snap[1].SubjectID != "3" {
		t.Errorf("snapshot = %+v", snap)
	}
	if tr.Set("4", chat.PresenceUnknown) {
		t.Error("unknown state recorded")
	}
}
