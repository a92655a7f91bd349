package preview

import (
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

const self = "1"

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func msg(id, from, to string, at time.Duration, text string) chat.Message {
	return chat.Message{ID: id, SenderID: from, ReceiverID: to, Kind: chat.ContentText, Payload: text, Timestamp: t0.Add(at)}
}

func order(s *Synchronizer) string {
	var keys []string
	for _, e := range s.Snapshot() {
		keys = append(keys, e.Key.String())
	}
	return fmt.Sprint(keys)
}

func TestLoadOrdersByRecency(t *testing.T) {
	s := New(self, nil, nil)
	s.Load([]chat.ConversationEntry{
		{Key: chat.Direct("2"), LastTimestamp: t0},
		{Key: chat.Group("9"), DisplayName: "Team", LastTimestamp: t0.Add(time.Hour)},
		{Key: chat.Direct("3"), LastTimestamp: t0.Add(time.Minute)},
		{Key: chat.Key{}, LastTimestamp: t0.Add(2 * time.Hour)},
	})
	if got := order(s); got != "[group:9 direct:3 direct:2]" {
		t.Errorf("order = %s", got)
	}
	if e, _ := s.Get(chat.Direct("2")); e.DisplayName != "User 2" {
		t.Errorf("placeholder name = %q", e.DisplayName)
	}
}

func TestLoadKeepsUnreadAndNewerPreview(t *testing.T) {
	s := New(self, nil, nil)
	s.OnMessage(msg("50", "2", self, time.Hour, "live"), chat.Key{})

	s.Load([]chat.ConversationEntry{{Key: chat.Direct("2"), Preview: "old", LastTimestamp: t0}})
	e, _ := s.Get(chat.Direct("2"))
	if e.Unread != 1 || e.Preview != "live" {
		t.Errorf("entry = %+v, want unread 1 and live preview", e)
	}
}

func TestMessageMovesEntryToFront(t *testing.T) {
	s := New(self, nil, nil)
	s.Load([]chat.ConversationEntry{
		{Key: chat.Direct("2"), LastTimestamp: t0},
		{Key: chat.Direct("3"), LastTimestamp: t0.Add(time.Minute)},
	})

	if !s.OnMessage(msg("50", "2", self, time.Hour, "hi"), chat.Key{}) {
		t.Fatal("OnMessage reported no change")
	}
	if got := order(s); got != "[direct:2 direct:3]" {
		t.Errorf("order = %s", got)
	}
	e, _ := s.Get(chat.Direct("2"))
	if e.Preview != "hi" || e.LastMessageID != "50" || e.Unread != 1 {
		t.Errorf("entry = %+v", e)
	}
}

func TestMissingEntrySynthesized(t *testing.T) {
	names := map[chat.Key]string{chat.Direct("4"): "Dana"}
	s := New(self, func(k chat.Key) (string, bool) { n, ok := names[k]; return n, ok }, nil)
	s.Load([]chat.ConversationEntry{{Key: chat.Direct("2"), LastTimestamp: t0}})

	s.OnMessage(msg("60", "4", self, time.Minute, "new friend"), chat.Key{})
	s.OnMessage(msg("61", "5", self, 2*time.Minute, "stranger"), chat.Key{})

	if got := order(s); got != "[direct:5 direct:4 direct:2]" {
		t.Errorf("order = %s", got)
	}
	if e, _ := s.Get(chat.Direct("4")); e.DisplayName != "Dana" {
		t.Errorf("name = %q, want Dana", e.DisplayName)
	}
	if e, _ := s.Get(chat.Direct("5")); e.DisplayName != "User 5" {
		t.Errorf("name = %q, want placeholder", e.DisplayName)
	}
}

func TestOutboundUsesReceiver(t *testing.T) {
	s := New(self, nil, nil)
	s.OnMessage(msg("70", self, "2", 0, "from me"), chat.Key{})

	e, ok := s.Get(chat.Direct("2"))
	if !ok {
		t.Fatal("outbound message did not create peer entry")
	}
	if e.Unread != 0 {
		t.Errorf("own message counted unread")
	}
	if _, ok := s.Get(chat.Direct(self)); ok {
		t.Error("entry created for self")
	}
}

func TestUnresolvedPeerDropped(t *testing.T) {
	s := New(self, nil, nil)
	if s.OnMessage(chat.Message{ID: "80", SenderID: self, Payload: "?"}, chat.Key{}) {
		t.Error("unresolved message changed the list")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}

	// Falls back to the open conversation.
	if !s.OnMessage(chat.Message{ID: "81", SenderID: self, Payload: "ok", Timestamp: t0}, chat.Direct("2")) {
		t.Fatal("fallback to open conversation failed")
	}
	if _, ok := s.Get(chat.Direct("2")); !ok {
		t.Error("fallback entry missing")
	}
}

func TestGroupMessages(t *testing.T) {
	s := New(self, nil, nil)
	m := msg("90", "2", self, 0, "hey team")
	m.GroupID = "9"
	s.OnMessage(m, chat.Key{})

	e, ok := s.Get(chat.Group("9"))
	if !ok || e.Key.Kind != chat.KindGroup || e.DisplayName != "Group 9" {
		t.Fatalf("group entry = %+v, %v", e, ok)
	}
	if _, ok := s.Get(chat.Direct("2")); ok {
		t.Error("group message created a direct entry")
	}
}

func TestRepeatedDeliveryIsIdempotent(t *testing.T) {
	s := New(self, nil, nil)
	m := msg("50", "2", self, 0, "hi")
	s.OnMessage(m, chat.Key{})
	s.OnMessage(msg("51", "3", self, time.Second, "yo"), chat.Key{})
	before := s.Snapshot()

	if s.OnMessage(m, chat.Key{}) {
		t.Error("replayed message reported a change")
	}
	after := s.Snapshot()
	if fmt.Sprint(before) != fmt.Sprint(after) {
		t.Errorf("replay changed list:\n%v\n%v", before, after)
	}
}

func TestOpenConversationNotUnread(t *testing.T) {
	s := New(self, nil, nil)
	s.OnMessage(msg("50", "2", self, 0, "hi"), chat.Direct("2"))
	if e, _ := s.Get(chat.Direct("2")); e.Unread != 0 {
		t.Errorf("Unread = %d for open conversation", e.Unread)
	}
	s.OnMessage(msg("51", "3", self, 0, "hi"), chat.Direct("2"))
	s.OnMessage(msg("52", "3", self, time.Second, "again"), chat.Direct("2"))
	if s.Unread() != 2 {
		t.Errorf("Unread() = %d, want 2", s.Unread())
	}
	if !s.MarkRead(chat.Direct("3")) || s.Unread() != 0 {
		t.Errorf("MarkRead did not clear: %d", s.Unread())
	}
	if s.MarkRead(chat.Direct("3")) {
		t.Error("second MarkRead reported change")
	}
}

func TestOlderMessageDoesNotReorder(t *testing.T) {
	s := New(self, nil, nil)
	s.OnMessage(msg("50", "2", self, time.Hour, "new"), chat.Key{})
	s.OnMessage(msg("51", "3", self, 2*time.Hour, "newer"), chat.Key{})
	s.OnMessage(msg("40", "2", self, 0, "ancient"), chat.Key{})

	if got := order(s); got != "[direct:3 direct:2]" {
		t.Errorf("order = %s", got)
	}
	if e, _ := s.Get(chat.Direct("2")); e.Preview != "new" || e.Unread != 2 {
		t.Errorf("entry = %+v", e)
	}
}

func TestRebindIgnoresConfirmedEcho(t *testing.T) {
	s := New(self, nil, nil)
	opt := msg("c-1", self, "2", 0, "hi")
	s.OnMessage(opt, chat.Key{})
	s.Rebind(chat.Direct("2"), "c-1", "55")

	echo := msg("55", self, "2", 0, "hi")
	if s.OnMessage(echo, chat.Key{}) {
		t.Error("echo of confirmed send reported a change")
	}
	if e, _ := s.Get(chat.Direct("2")); e.LastMessageID != "55" {
		t.Errorf("LastMessageID = %q, want 55", e.LastMessageID)
	}
}

func TestRenamePresenceUpsertRemove(t *testing.T) {
	s := New(self, nil, nil)
	if !s.Upsert(chat.ConversationEntry{Key: chat.Direct("2")}) {
		t.Fatal("Upsert new entry reported no change")
	}
	if !s.Rename(chat.Direct("2"), "Bob", "/a.png") {
		t.Error("Rename reported no change")
	}
	if s.Rename(chat.Direct("2"), "", "") {
		t.Error("empty Rename reported change")
	}
	if s.Rename(chat.Direct("7"), "Ghost", "") {
		t.Error("Rename of missing entry reported change")
	}
	if !s.SetPresence("2", chat.PresenceOnline) || s.SetPresence("2", chat.PresenceOnline) {
		t.Error("SetPresence change detection wrong")
	}
	e, _ := s.Get(chat.Direct("2"))
	if e.DisplayName != "Bob" || e.AvatarURL != "/a.png" || e.Presence != chat.PresenceOnline {
		t.Errorf("entry = %+v", e)
	}
	if !s.Remove(chat.Direct("2")) || s.Len() != 0 {
		t.Error("Remove failed")
	}
}

func TestRingForgetsOldest(t *testing.T) {
	r := newRing(2)
	r.Add("a")
	r.Add("b")
	r.Add("a")
	r.Add("c")
	if r.Has("a") || !r.Has("b") || !r.Has("c") {
		t.Errorf("ring contents wrong: %v", r.set)
	}
}
