// Package live maintains the websocket connection to the chat server.
//
// Every inbound frame is decoded and published on the bus as live.<event>
// with a wire.Envelope payload. Outbound frames go through Send.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/wire"
)

// ErrNotConnected is returned by Send while no connection is established.
var ErrNotConnected = errors.New("live: not connected")

// ErrUnauthorized is returned when the server rejects the token at handshake.
var ErrUnauthorized = errors.New("live: unauthorized")

// readLimit bounds a single inbound frame. History is fetched over REST so
// frames stay small.
const readLimit = 1 << 20

// Config configures a Client.
type Config struct {
	URL           string
	Heartbeat     time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	HTTPClient    *http.Client
}

func (c *Config) defaults() {
	if c.Heartbeat <= 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
}

// URLFor builds the websocket URL from an http(s) base URL, a path and a
// bearer token.
func URLFor(baseURL, path, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u.Path += path
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Client is a reconnecting websocket client.
type Client struct {
	cfg    Config
	bus    *bus.Bus
	status *status.Machine
	logger *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	cancel   context.CancelFunc
	done     chan struct{}
	lastSeen atomic.Int64

	connects atomic.Int64
}

// New creates a Client. Start must be called to connect.
func New(cfg Config, b *bus.Bus, sm *status.Machine, logger *zap.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		bus:    b,
		status: sm,
		logger: logger.Named("live"),
	}
}

// Start launches the connection loop in the background. It returns
// immediately; connection progress is reported through the status machine
// and live.connected / live.disconnected bus events.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return fmt.Errorf("live client already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether a connection is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connects returns how many connections have been established.
func (c *Client) Connects() int64 { return c.connects.Load() }

// Send writes one frame. It fails fast with ErrNotConnected when offline.
func (c *Client) Send(ctx context.Context, event string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	frame, err := wire.Encode(event, data)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.transition(status.Closed)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectBase
	b.MaxInterval = c.cfg.ReconnectMax

	for {
		conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
			c.transition(status.Connecting)
			conn, err := c.dial(ctx)
			if errors.Is(err, ErrUnauthorized) {
				c.transition(status.Unauthorized)
				return nil, backoff.Permanent(err)
			}
			if err != nil {
				c.transition(status.Reconnecting)
				return nil, err
			}
			return conn, nil
		},
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", next))
			}),
		)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("live channel stopped", zap.Error(err))
			}
			return
		}
		b.Reset()

		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.transition(status.Reconnecting)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, c.cfg.URL, &websocket.DialOptions{
		HTTPClient: c.cfg.HTTPClient,
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// serve runs one connection until it drops or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.lastSeen.Store(time.Now().UnixNano())
	c.connects.Add(1)

	c.transition(status.Syncing)
	c.logger.Info("connected", zap.Int64("connects", c.connects.Load()))
	c.bus.Emit(bus.KindLiveConnected, nil)

	go c.heartbeat(connCtx, conn)
	err := c.readLoop(connCtx, conn)

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()

	if ctx.Err() != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
	} else {
		_ = conn.CloseNow()
		c.logger.Warn("disconnected", zap.Error(err))
	}
	c.bus.Emit(bus.KindLiveDisconnected, err)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		c.lastSeen.Store(time.Now().UnixNano())

		env, err := wire.Decode(frame)
		if err != nil {
			c.logger.Debug("dropping frame", zap.Error(err))
			continue
		}
		if env.Event == wire.EventPong {
			continue
		}
		c.bus.Emit(bus.LiveKind(env.Event), env)
	}
}

// heartbeat sends a ping every interval and drops the connection when no
// frame has arrived for two intervals.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		idle := time.Since(time.Unix(0, c.lastSeen.Load()))
		if idle > 2*c.cfg.Heartbeat {
			c.logger.Warn("heartbeat timeout", zap.Duration("idle", idle))
			_ = conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
			return
		}
		frame, err := wire.Encode(wire.EventPing, nil)
		if err != nil {
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
			c.logger.Debug("ping failed", zap.Error(err))
		}
	}
}

func (c *Client) transition(to status.State) {
	if c.status == nil {
		return
	}
	if err := c.status.Transition(to); err != nil {
		c.logger.Debug("status transition skipped", zap.Error(err))
	}
}
