package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/status"
)

// shortDir avoids the 104-char Unix socket limit on macOS.
func shortDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func healthClient(t *testing.T, socketPath string) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error = %v", service, err)
	}
	return resp.Status
}

func TestServerHealthFollowsStatus(t *testing.T) {
	dir := shortDir(t, "chatsync-srv-*")
	socketPath := filepath.Join(dir, "d.sock")

	srv, err := NewServer(Params{Profile: "test", SocketPath: socketPath}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket permissions = %o, want 600", perm)
	}

	b := bus.New()
	machine := status.NewMachine(b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Watch(ctx, b)

	c := healthClient(t, socketPath)
	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("process health = %v, want SERVING", got)
	}
	if got := check(t, c, EngineService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("engine health = %v, want NOT_SERVING", got)
	}

	for _, st := range []status.State{status.Connecting, status.Syncing, status.Ready} {
		if err := machine.Transition(st); err != nil {
			t.Fatal(err)
		}
	}
	waitServing(t, c, healthpb.HealthCheckResponse_SERVING)

	if err := machine.Transition(status.Reconnecting); err != nil {
		t.Fatal(err)
	}
	waitServing(t, c, healthpb.HealthCheckResponse_NOT_SERVING)
}

func waitServing(t *testing.T, c healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := check(t, c, EngineService)
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine health = %v, want %v", got, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStaleSocketReplaced(t *testing.T) {
	dir := shortDir(t, "chatsync-stale-*")
	socketPath := filepath.Join(dir, "d.sock")
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	srv, err := NewServer(Params{Profile: "test", SocketPath: socketPath}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer with stale socket: %v", err)
	}
	srv.Stop(context.Background())
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket not removed on stop: %v", err)
	}
}

// chatServer fakes the REST and live endpoints for one authenticated user.
func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.CloseNow() }()
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1, "username": "alice"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestModuleLifecycle(t *testing.T) {
	home := shortDir(t, "chatsync-home-*")
	t.Setenv(profile.HomeEnv, home)

	upstream := chatServer(t)
	cfgPath := filepath.Join(home, "config.toml")
	cfg := "[server]\nbase_url = \"" + upstream.URL + "\"\nws_path = \"/ws\"\ntoken = \"secret\"\n\n[notifications]\nsystem = false\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}

	app := fx.New(
		Module(Params{Profile: "test", ConfigPath: cfgPath}),
		fx.NopLogger,
	)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	c := healthClient(t, profile.SocketPath("test"))
	waitServing(t, c, healthpb.HealthCheckResponse_SERVING)

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := os.Stat(profile.SocketPath("test")); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
	if _, err := os.Stat(profile.CachePath("test")); err != nil {
		t.Errorf("cache not created: %v", err)
	}
}

func TestModuleGraph(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{Profile: "test"}), fx.NopLogger); err != nil {
		t.Fatal(err)
	}
}
