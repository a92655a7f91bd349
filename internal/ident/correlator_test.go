package ident

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/thread"
	"github.com/matheus3301/chatsync/internal/timer"
	"github.com/matheus3301/chatsync/internal/wire"
)

const self = "1"

var peer = chat.Direct("2")

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	sent []emitted
}

func (f *fakeEmitter) Emit(event string, payload any) {
	f.sent = append(f.sent, emitted{event, payload})
}

type recorder struct {
	confirmed []chat.Message
	failed    []chat.Message
	blocked   []chat.Message
	notices   []chat.Message
	reactions []string
	changes   int
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Changed:        func(chat.Key) { r.changes++ },
		Confirmed:      func(m chat.Message) { r.confirmed = append(r.confirmed, m) },
		Failed:         func(m chat.Message) { r.failed = append(r.failed, m) },
		Blocked:        func(m, n chat.Message) { r.blocked = append(r.blocked, m); r.notices = append(r.notices, n) },
		ReactionFailed: func(id string) { r.reactions = append(r.reactions, id) },
	}
}

type fixture struct {
	c     *Correlator
	set   *thread.Merger
	out   *fakeEmitter
	clock *timer.Manual
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		set:   thread.New(self, time.UTC, nil),
		out:   &fakeEmitter{},
		clock: timer.NewManual(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		rec:   &recorder{},
	}
	f.set.Select(peer)
	f.c = New(self, f.set, f.out, f.clock, Config{}, f.rec.hooks(), nil)
	n := 0
	f.c.newID = func() string { n++; return fmt.Sprintf("c-%d", n) }
	return f
}

func text(payload string) chat.Message {
	return chat.Message{Conversation: peer, Kind: chat.ContentText, Payload: payload}
}

func TestSubmitInsertsOptimisticAndEmits(t *testing.T) {
	f := newFixture(t)

	id, err := f.c.Submit(text("hello"))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := f.set.Get(id)
	if !ok {
		t.Fatal("optimistic entry not visible")
	}
	if got.Status != chat.StatusSending || got.SenderID != self || got.ReceiverID != "2" {
		t.Errorf("entry = %+v", got)
	}
	if len(f.out.sent) != 1 || f.out.sent[0].event != wire.EventSendMessage {
		t.Fatalf("emitted = %+v", f.out.sent)
	}
	payload := f.out.sent[0].payload.(wire.SendMessage)
	if payload.ClientMessageID != id || payload.Content != "hello" {
		t.Errorf("payload = %+v", payload)
	}
	if f.c.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", f.c.Pending())
	}
}

func TestSubmitWithoutTarget(t *testing.T) {
	f := newFixture(t)
	if _, err := f.c.Submit(chat.Message{Payload: "x"}); !errors.Is(err, ErrNoTarget) {
		t.Errorf("err = %v, want ErrNoTarget", err)
	}
}

func TestAckResolvesBeforeTimeout(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))

	f.clock.Advance(2 * time.Second)
	if !f.c.OnAck(Ack{ClientID: id, ServerID: "55", Status: chat.StatusSent}) {
		t.Fatal("OnAck returned false for pending send")
	}
	f.clock.Advance(10 * time.Second)

	got, ok := f.set.Get("55")
	if !ok || got.Status != chat.StatusSent || got.ClientID != id {
		t.Fatalf("entry after ack = %+v, %v", got, ok)
	}
	if f.set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.set.Len())
	}
	if len(f.rec.failed) != 0 {
		t.Errorf("timer fired after ack: %v", f.rec.failed)
	}
	if len(f.rec.confirmed) != 1 || f.rec.confirmed[0].ID != "55" {
		t.Errorf("confirmed = %+v", f.rec.confirmed)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("timers still armed: %d", f.clock.Pending())
	}
}

func TestDuplicateAndUnknownAcksIgnored(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))
	f.c.OnAck(Ack{ClientID: id, ServerID: "55", Status: chat.StatusDelivered})

	if f.c.OnAck(Ack{ClientID: id, ServerID: "55", Status: chat.StatusSent}) {
		t.Error("duplicate ack applied")
	}
	if f.c.OnAck(Ack{ClientID: "nope"}) {
		t.Error("unknown ack applied")
	}
	if got, _ := f.set.Get("55"); got.Status != chat.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestTimeoutMarksFailedThenRetry(t *testing.T) {
	f := newFixture(t)
	f.set.ApplyLive(chat.Message{ID: "9", ServerID: "9", SenderID: "2", ReceiverID: self, Payload: "before"})
	id, _ := f.c.Submit(text("hello"))
	f.set.ApplyLive(chat.Message{ID: "10", ServerID: "10", SenderID: "2", ReceiverID: self, Payload: "after"})

	f.clock.Advance(3 * time.Second)

	got, _ := f.set.Get(id)
	if got.Status != chat.StatusFailed {
		t.Fatalf("status after 3s = %s, want failed", got.Status)
	}
	if len(f.rec.failed) != 1 {
		t.Fatalf("failed hook calls = %d, want 1", len(f.rec.failed))
	}

	// A late ack for the failed id is a no-op.
	if f.c.OnAck(Ack{ClientID: id, ServerID: "77"}) {
		t.Error("late ack applied to failed send")
	}

	newID, err := f.c.Retry(id)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if newID == id {
		t.Fatal("retry reused the failed client id")
	}
	snap := f.set.Snapshot()
	if len(snap) != 3 || snap[1].ID != newID || snap[1].Status != chat.StatusSending {
		t.Fatalf("snapshot after retry = %+v", snap)
	}
	if _, ok := f.set.Get(id); ok {
		t.Error("failed entry still present after retry")
	}
	if last := f.out.sent[len(f.out.sent)-1].payload.(wire.SendMessage); last.ClientMessageID != newID {
		t.Errorf("re-emitted with client id %q, want %q", last.ClientMessageID, newID)
	}

	f.c.OnAck(Ack{ClientID: newID, ServerID: "78"})
	if got, _ := f.set.Get("78"); got.Status != chat.StatusSent {
		t.Errorf("retried send status = %s, want sent", got.Status)
	}
}

func TestRetryRejectsNonFailed(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))
	if _, err := f.c.Retry(id); !errors.Is(err, ErrNotFailed) {
		t.Errorf("Retry(pending) err = %v, want ErrNotFailed", err)
	}
	if _, err := f.c.Retry("missing"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Retry(missing) err = %v, want ErrUnknownMessage", err)
	}
}

func TestFileTimeoutIsLonger(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(chat.Message{Conversation: peer, Kind: chat.ContentFile, Payload: "/u/a.pdf"})

	f.clock.Advance(4 * time.Second)
	if got, _ := f.set.Get(id); got.Status != chat.StatusSending {
		t.Fatalf("file send failed after 4s: %s", got.Status)
	}
	f.clock.Advance(time.Second)
	if got, _ := f.set.Get(id); got.Status != chat.StatusFailed {
		t.Errorf("file send status after 5s = %s, want failed", got.Status)
	}
}

func TestBlockedAck(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))

	f.c.OnAck(Ack{ClientID: id, Status: chat.StatusBlocked, BlockedMessage: "You are blocked"})

	got, _ := f.set.Get(id)
	if got.Status != chat.StatusBlocked {
		t.Fatalf("status = %s, want blocked", got.Status)
	}
	snap := f.set.Snapshot()
	if len(snap) != 2 || snap[1].Kind != chat.ContentSystem || snap[1].Payload != "You are blocked" {
		t.Fatalf("snapshot = %+v, want blocked entry and system notice", snap)
	}
	if len(f.rec.blocked) != 1 {
		t.Errorf("blocked hook calls = %d, want 1", len(f.rec.blocked))
	}

	f.clock.Advance(10 * time.Second)
	if len(f.rec.failed) != 0 {
		t.Error("blocked send later marked failed")
	}
	if _, err := f.c.Retry(id); err == nil {
		t.Error("blocked send was retryable")
	}
}

func TestBlockedDefaultNotice(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))
	f.c.OnAck(Ack{ClientID: id, Status: chat.StatusBlocked})
	if len(f.rec.notices) != 1 || f.rec.notices[0].Payload != DefaultBlockedNotice {
		t.Errorf("notices = %+v", f.rec.notices)
	}
}

func TestSettleAfterBroadcast(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))

	out, m := f.set.ApplyLive(chat.Message{ID: "60", ServerID: "60", SenderID: self, ReceiverID: "2", Kind: chat.ContentText, Payload: "hello"})
	if out != thread.Resolved || m.ClientID != id {
		t.Fatalf("broadcast outcome = %v %+v", out, m)
	}
	if !f.c.Settle(id) {
		t.Fatal("Settle returned false")
	}
	f.clock.Advance(5 * time.Second)
	if len(f.rec.failed) != 0 {
		t.Error("settled send timed out")
	}
}

func TestTimeoutAfterUnsettledBroadcastIsIgnored(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))
	f.set.ApplyLive(chat.Message{ID: "60", ServerID: "60", ClientID: id, SenderID: self, ReceiverID: "2", Kind: chat.ContentText, Payload: "hello"})

	f.clock.Advance(5 * time.Second)
	if len(f.rec.failed) != 0 {
		t.Error("confirmed send reported failed")
	}
	if got, _ := f.set.Get("60"); got.Status != chat.StatusSent {
		t.Errorf("status = %s, want sent", got.Status)
	}
}

func TestSubmitToClosedConversation(t *testing.T) {
	f := newFixture(t)
	other := chat.Direct("3")
	id, err := f.c.Submit(chat.Message{Conversation: other, Kind: chat.ContentText, Payload: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.set.Get(id); ok {
		t.Error("send to another conversation inserted into open thread")
	}
	if got := f.c.Outstanding(other); len(got) != 1 || got[0].ClientID != id {
		t.Fatalf("Outstanding = %+v", got)
	}

	f.clock.Advance(3 * time.Second)
	f.set.Select(other)
	for _, m := range f.c.Outstanding(other) {
		f.set.Insert(m)
	}
	got, ok := f.set.Get(id)
	if !ok || got.Status != chat.StatusFailed {
		t.Fatalf("reopened failed send = %+v, %v", got, ok)
	}
	if _, err := f.c.Retry(id); err != nil {
		t.Errorf("Retry after reopen: %v", err)
	}
}

func TestReactionOptimisticAndRevert(t *testing.T) {
	f := newFixture(t)
	f.set.ApplyLive(chat.Message{ID: "9", ServerID: "9", SenderID: "2", ReceiverID: self, Payload: "hi"})

	id, err := f.c.SubmitReaction("9", "👍")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := f.set.Get("9"); got.Reactions[self] != "👍" {
		t.Fatalf("optimistic reaction missing: %+v", got.Reactions)
	}
	last := f.out.sent[len(f.out.sent)-1]
	if last.event != wire.EventSendReaction || last.payload.(wire.SendReaction).ClientMessageID != id {
		t.Errorf("emitted = %+v", last)
	}

	f.clock.Advance(3 * time.Second)
	if got, _ := f.set.Get("9"); got.Reactions[self] != "" {
		t.Errorf("reaction not reverted: %+v", got.Reactions)
	}
	if len(f.rec.reactions) != 1 {
		t.Errorf("reaction failure hook calls = %d", len(f.rec.reactions))
	}
}

func TestReactionAck(t *testing.T) {
	f := newFixture(t)
	f.set.ApplyLive(chat.Message{ID: "9", ServerID: "9", SenderID: "2", ReceiverID: self, Payload: "hi"})
	id, _ := f.c.SubmitReaction("9", "❤️")

	if !f.c.OnAck(Ack{ClientID: id}) {
		t.Fatal("reaction ack ignored")
	}
	f.clock.Advance(5 * time.Second)
	if got, _ := f.set.Get("9"); got.Reactions[self] != "❤️" {
		t.Errorf("acked reaction reverted: %+v", got.Reactions)
	}
}

func TestReactionOnUnconfirmedSend(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))
	if _, err := f.c.SubmitReaction(id, "👍"); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("err = %v, want ErrUnknownMessage", err)
	}
}

func TestCloseStopsTimers(t *testing.T) {
	f := newFixture(t)
	f.c.Submit(text("a"))
	f.c.Submit(text("b"))
	f.c.Close()
	f.clock.Advance(time.Minute)
	if len(f.rec.failed) != 0 || f.c.Pending() != 0 {
		t.Errorf("after Close: failed=%d pending=%d", len(f.rec.failed), f.c.Pending())
	}
}

func TestAckFromWire(t *testing.T) {
	got := AckFromWire(wire.Ack{ClientMessageID: "c", MessageID: "5", Status: "delivered"})
	if got.ClientID != "c" || got.ServerID != "5" || got.Status != chat.StatusDelivered {
		t.Errorf("AckFromWire = %+v", got)
	}
}

func TestFailBeforeTimeout(t *testing.T) {
	f := newFixture(t)
	id, _ := f.c.Submit(text("hello"))

	if !f.c.Fail(id) {
		t.Fatal("Fail() = false for pending send")
	}
	if got, _ := f.set.Get(id); got.Status != chat.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if len(f.rec.failed) != 1 {
		t.Fatalf("failed hook calls = %d, want 1", len(f.rec.failed))
	}
	if f.c.Fail(id) {
		t.Error("Fail() applied twice")
	}

	// The cancelled timer must not fire a second failure.
	f.clock.Advance(time.Minute)
	if len(f.rec.failed) != 1 {
		t.Errorf("failed hook calls after timeout = %d, want 1", len(f.rec.failed))
	}
	if _, err := f.c.Retry(id); err != nil {
		t.Errorf("Retry() error = %v", err)
	}
}
