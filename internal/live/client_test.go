package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/wire"
)

func waitEvent(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func testClient(t *testing.T, srv *httptest.Server) (*Client, *bus.Bus, *status.Machine) {
	t.Helper()
	u, err := URLFor(srv.URL, "/ws", "tok")
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	sm := status.NewMachine(b)
	c := New(Config{URL: u, Heartbeat: time.Hour, ReconnectBase: 10 * time.Millisecond, ReconnectMax: 50 * time.Millisecond}, b, sm, nil)
	return c, b, sm
}

func TestURLFor(t *testing.T) {
	tests := []struct {
		base, path, token string
		want              string
	}{
		{"http://localhost:8000", "/ws", "abc", "ws://localhost:8000/ws?token=abc"},
		{"https://chat.example.com/", "ws", "", "wss://chat.example.com/ws"},
		{"http://h/api", "/ws", "a b", "ws://h/api/ws?token=a+b"},
	}
	for _, tt := range tests {
		got, err := URLFor(tt.base, tt.path, tt.token)
		if err != nil {
			t.Fatalf("URLFor(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("URLFor(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
	if _, err := URLFor("ftp://h", "/ws", ""); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestInboundFramesPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.CloseNow() }()
		ctx := r.Context()
		_ = conn.Write(ctx, websocket.MessageText, []byte(`not json`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"user_typing","data":{"sender_id":2,"receiver_id":1,"is_typing":true}}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"receive_message","data":{"id":10,"sender_id":2,"receiver_id":1,"content":"hi"}}`))
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	c, b, sm := testClient(t, srv)
	ch, unsub := b.Subscribe(bus.NamespaceLive, 16)
	defer unsub()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	waitEvent(t, ch, bus.KindLiveConnected)
	if sm.Current() != status.Syncing {
		t.Errorf("status = %s, want SYNCING", sm.Current())
	}

	typing := waitEvent(t, ch, bus.LiveKind(wire.EventTyping))
	env := typing.Payload.(wire.Envelope)
	var tp wire.Typing
	if err := env.Bind(&tp); err != nil {
		t.Fatal(err)
	}
	if tp.SenderID != "2" || !tp.IsTyping {
		t.Errorf("typing = %+v", tp)
	}

	msg := waitEvent(t, ch, bus.LiveKind(wire.EventReceiveMessage))
	var m wire.Message
	if err := msg.Payload.(wire.Envelope).Bind(&m); err != nil {
		t.Fatal(err)
	}
	if m.ID != "10" || m.Content != "hi" {
		t.Errorf("message = %+v", m)
	}
}

func TestSendWritesEnvelope(t *testing.T) {
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.CloseNow() }()
		_, frame, err := conn.Read(r.Context())
		if err == nil {
			got <- frame
		}
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	c, b, _ := testClient(t, srv)
	ch, unsub := b.Subscribe(bus.NamespaceLive, 16)
	defer unsub()

	if err := c.Send(context.Background(), wire.EventSendTyping, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send before connect = %v, want ErrNotConnected", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()
	waitEvent(t, ch, bus.KindLiveConnected)

	if err := c.Send(context.Background(), wire.EventJoinUserRoom, wire.JoinRoom{UserID: "1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case frame := <-got:
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatal(err)
		}
		if env.Event != wire.EventJoinUserRoom {
			t.Errorf("event = %q", env.Event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received frame")
	}
}

func TestReconnectsAfterDrop(t *testing.T) {
	var accepted atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		if accepted.Add(1) == 1 {
			_ = conn.CloseNow()
			return
		}
		defer func() { _ = conn.CloseNow() }()
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	c, b, _ := testClient(t, srv)
	ch, unsub := b.Subscribe(bus.NamespaceLive, 16)
	defer unsub()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Stop()

	waitEvent(t, ch, bus.KindLiveConnected)
	waitEvent(t, ch, bus.KindLiveDisconnected)
	waitEvent(t, ch, bus.KindLiveConnected)

	if n := c.Connects(); n < 2 {
		t.Errorf("connects = %d, want >= 2", n)
	}
}

func TestUnauthorizedStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, b, sm := testClient(t, srv)
	ch, unsub := b.Subscribe(bus.NamespaceSession, 16)
	defer unsub()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(3 * time.Second)
	for sawUnauthorized := false; !sawUnauthorized; {
		select {
		case evt := <-ch:
			if sc, ok := evt.Payload.(status.StatusChange); ok && sc.To == status.Unauthorized {
				sawUnauthorized = true
			}
		case <-timeout:
			t.Fatal("never reached UNAUTHORIZED")
		}
	}
	c.Stop()
	if sm.Current() != status.Closed {
		t.Errorf("status after stop = %s, want CLOSED", sm.Current())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:1/ws"}, bus.New(), nil, nil)
	c.Stop()
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	c.Stop()
	if err := c.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}
