package model

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/status"
	intsync "github.com/matheus3301/chatsync/internal/sync"
)

func TestApplyViews(t *testing.T) {
	vm := NewViewModel()
	bob := chat.Direct("2")

	vm.Apply(bus.Event{Kind: bus.KindThreadChanged, Payload: intsync.ThreadView{Conversation: bob, Title: "Bob"}})
	vm.Apply(bus.Event{Kind: bus.KindTypingChanged, Payload: intsync.TypingView{Conversation: bob, Typing: true}})
	if th := vm.Thread(); th.Title != "Bob" || !th.PeerTyping {
		t.Errorf("thread = %+v", th)
	}

	// Typing for another conversation is ignored.
	vm.Apply(bus.Event{Kind: bus.KindTypingChanged, Payload: intsync.TypingView{Conversation: chat.Direct("3"), Typing: false}})
	if !vm.Thread().PeerTyping {
		t.Error("typing cleared by another conversation")
	}

	vm.Apply(bus.Event{Kind: bus.KindPreviewsChanged, Payload: []chat.ConversationEntry{
		{Key: bob, Unread: 2},
		{Key: chat.Group("9"), Unread: 1},
	}})
	if vm.Unread() != 3 {
		t.Errorf("Unread = %d, want 3", vm.Unread())
	}
	if e, ok := vm.Conversation(chat.Group("9")); !ok || e.Unread != 1 {
		t.Errorf("Conversation = %+v, %v", e, ok)
	}

	vm.Apply(bus.Event{Kind: bus.KindToastsChanged, Payload: []notify.Toast{{ID: "t1"}}})
	if len(vm.Toasts()) != 1 {
		t.Errorf("toasts = %+v", vm.Toasts())
	}

	vm.Apply(bus.Event{Kind: bus.KindStatusChanged, Payload: status.StatusChange{From: status.Syncing, To: status.Ready}})
	if vm.Status() != status.Ready {
		t.Errorf("status = %s", vm.Status())
	}

	if vm.Apply(bus.Event{Kind: "live.receive_message"}) {
		t.Error("unrelated event reported as a change")
	}
	if vm.Apply(bus.Event{Kind: bus.KindThreadChanged, Payload: "garbage"}) {
		t.Error("mistyped payload reported as a change")
	}
}

func TestSeedAndLookups(t *testing.T) {
	vm := NewViewModel()
	vm.Seed(intsync.Snapshot{
		Self: "1",
		Thread: intsync.ThreadView{
			Conversation: chat.Direct("2"),
			Messages: []chat.Message{
				{ID: "10", ServerID: "10", SenderID: "2", Kind: chat.ContentText, Status: chat.StatusSent},
				{ID: "c1", ClientID: "c1", SenderID: "1", Kind: chat.ContentText, Status: chat.StatusFailed},
				{ID: "sys", SenderID: "", Kind: chat.ContentSystem},
			},
		},
		Contacts: []chat.Contact{{ID: "2", DisplayName: "Bob"}},
	})

	if got := vm.SenderName("2"); got != "Bob" {
		t.Errorf("SenderName(2) = %q", got)
	}
	if got := vm.SenderName("1"); got != "You" {
		t.Errorf("SenderName(self) = %q", got)
	}
	if got := vm.SenderName("7"); got != "User 7" {
		t.Errorf("SenderName(unknown) = %q", got)
	}
	if m, ok := vm.LastFailed(); !ok || m.ID != "c1" {
		t.Errorf("LastFailed = %+v, %v", m, ok)
	}
	if m, ok := vm.LastIncoming(); !ok || m.ID != "10" {
		t.Errorf("LastIncoming = %+v, %v", m, ok)
	}
}

func TestWatchSignalsRefresh(t *testing.T) {
	vm := NewViewModel()
	b := bus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	vm.Watch(ctx, b)

	b.Emit(bus.KindPreviewsChanged, []chat.ConversationEntry{{Key: chat.Direct("2")}})
	select {
	case <-vm.RefreshCh():
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh signal")
	}
	if len(vm.Conversations()) != 1 {
		t.Errorf("conversations = %+v", vm.Conversations())
	}
}
