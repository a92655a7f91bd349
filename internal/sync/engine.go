// Package sync runs the event loop that owns all conversation state.
//
// Every component (correlator, merger, preview list, presence tracker,
// notification coalescer, typing signaler) is confined to one goroutine.
// Live events, timer callbacks and results of off-loop REST calls are all
// delivered to that goroutine; public operations post closures to it.
package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/ident"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/metrics"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/presence"
	"github.com/matheus3301/chatsync/internal/preview"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/thread"
	"github.com/matheus3301/chatsync/internal/timer"
	"github.com/matheus3301/chatsync/internal/typing"
	"github.com/matheus3301/chatsync/internal/wire"
)

var (
	// ErrNoConversation is returned by operations that need an open conversation.
	ErrNoConversation = errors.New("no conversation open")
	// ErrStopped is returned once the engine loop has exited.
	ErrStopped = errors.New("engine stopped")
)

// API is the request/response surface of the server.
type API interface {
	Me(ctx context.Context) (wire.User, error)
	DirectHistory(ctx context.Context, self, peer string, limit int) ([]wire.Message, error)
	GroupHistory(ctx context.Context, groupID string, limit int) ([]wire.Message, error)
	Conversations(ctx context.Context) ([]wire.ConversationSummary, error)
	Groups(ctx context.Context) ([]wire.Group, error)
	Friends(ctx context.Context) ([]wire.User, error)
	FriendRequests(ctx context.Context) ([]wire.FriendRequest, error)
	Accept(ctx context.Context, userID string) error
	Reject(ctx context.Context, userID string) error
}

// Cache is the local store used for rehydration and offline reads.
type Cache interface {
	presence.Cache
	LoadConversations() ([]chat.ConversationEntry, error)
	SaveConversations(entries []chat.ConversationEntry) error
	LoadContacts() ([]chat.Contact, error)
	SaveContacts(contacts []chat.Contact) error
	CacheMessages(key chat.Key, msgs []chat.Message) error
	CachedMessages(key chat.Key, self string, limit int) ([]chat.Message, error)
	GetState(key string) (string, error)
	SetState(key, value string) error
	Reset() error
}

// Emitter queues outbound live frames without blocking.
type Emitter interface {
	Emit(event string, payload any)
}

// Options configures an Engine. Zero values take defaults.
type Options struct {
	Config    *config.Config
	Location  *time.Location
	Scheduler timer.Scheduler
	Native    notify.SystemNotifier
	Metrics   *metrics.Metrics
	Status    *status.Machine
	Logger    *zap.Logger
}

// Engine is the single-goroutine owner of conversation state.
type Engine struct {
	bus     *bus.Bus
	api     API
	out     Emitter
	cache   Cache
	status  *status.Machine
	metrics *metrics.Metrics
	cfg     *config.Config
	loc     *time.Location
	logger  *zap.Logger

	calls  chan func()
	done   chan struct{}
	cancel context.CancelFunc
	ctx    context.Context

	// Everything below is owned by the loop goroutine.
	self      string
	sched     timer.Scheduler
	thread    *thread.Merger
	ids       *ident.Correlator
	previews  *preview.Synchronizer
	presence  *presence.Tracker
	toasts    *notify.Coalescer
	typing    *typing.Signaler
	contacts  map[string]chat.Contact
	groups    map[string]wire.Group
	requests  []chat.FriendRequest
	bootstrap uint64
}

// New creates an Engine. cache may be nil.
func New(b *bus.Bus, api API, out Emitter, cache Cache, opts Options) *Engine {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	base := opts.Scheduler
	if base == nil {
		base = timer.Real{}
	}

	e := &Engine{
		bus:      b,
		api:      api,
		out:      out,
		cache:    cache,
		status:   opts.Status,
		metrics:  opts.Metrics,
		cfg:      cfg,
		loc:      loc,
		logger:   logging.OrNop(opts.Logger).Named("engine"),
		calls:    make(chan func(), 64),
		done:     make(chan struct{}),
		self:     cfg.Server.UserID,
		contacts: make(map[string]chat.Contact),
		groups:   make(map[string]wire.Group),
	}
	e.sched = timer.Posting(base, e.post)

	e.thread = thread.New(e.self, loc, e.logger)
	e.ids = ident.New(e.self, e.thread, out, e.sched, ident.Config{
		TextTimeout: cfg.Ack.TextTimeout(),
		FileTimeout: cfg.Ack.FileTimeout(),
	}, ident.Hooks{
		Changed:        e.onSendChanged,
		Confirmed:      e.onConfirmed,
		Failed:         e.onFailed,
		Blocked:        e.onBlocked,
		ReactionFailed: func(string) { e.publishThread() },
	}, e.logger)
	e.previews = preview.New(e.self, e.name, e.logger)
	var pcache presence.Cache
	if cache != nil {
		pcache = cache
	}
	e.presence = presence.New(e.self, pcache, b, e, e.logger)
	e.toasts = notify.New(notify.SettingsFrom(cfg.Notifications), e.sched, opts.Native, e.onToasts, e.logger)
	e.typing = typing.New(e.self, out)
	return e
}

// Start subscribes to live events, rehydrates from the cache and runs the loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.cancel != nil {
		return errors.New("engine already started")
	}
	live, unsubLive := e.bus.SubscribeLossless(bus.NamespaceLive, 512)
	// Emit runs on the loop and may publish send failures itself, so this
	// subscription must not block; a missed failure still times out.
	failures, unsubFailures := e.bus.Subscribe(bus.KindSendFailed, 64)
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.hydrate()
	go e.loop(e.ctx, live, failures, func() {
		unsubLive()
		unsubFailures()
	})
	return nil
}

// Stop exits the loop, cancels timers and saves the conversation list.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Done is closed when the loop has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) loop(ctx context.Context, live, failures <-chan bus.Event, unsub func()) {
	defer close(e.done)
	defer unsub()
	for {
		select {
		case fn := <-e.calls:
			fn()
		case evt := <-live:
			e.handleLive(evt)
		case evt := <-failures:
			if f, ok := evt.Payload.(outbox.Failure); ok {
				e.onSendFailed(f)
			}
		case <-ctx.Done():
			e.shutdown()
			return
		}
	}
}

func (e *Engine) shutdown() {
	e.ids.Close()
	e.toasts.Clear()
	e.persistPreviews()
	e.logger.Info("engine stopped")
}

// post hands fn to the loop. It gives up once the loop has exited.
func (e *Engine) post(fn func()) {
	select {
	case e.calls <- fn:
	case <-e.done:
	}
}

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case e.calls <- wrapped:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		return ErrStopped
	}
}

// goAsync runs fn off the loop under the engine context.
func (e *Engine) goAsync(fn func(ctx context.Context)) {
	ctx := e.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go fn(ctx)
}

// name resolves a display name for key from known contacts and groups.
func (e *Engine) name(key chat.Key) (string, bool) {
	switch key.Kind {
	case chat.KindGroup:
		if g, ok := e.groups[key.ID]; ok && g.Name != "" {
			return g.Name, true
		}
	default:
		if c, ok := e.contacts[key.ID]; ok {
			return c.Name(), true
		}
	}
	return "", false
}

func (e *Engine) setSelf(id string) {
	if id == "" || id == e.self {
		return
	}
	e.self = id
	e.thread.SetSelf(id)
	e.ids.SetSelf(id)
	e.previews.SetSelf(id)
	e.presence.SetSelf(id)
	e.typing.SetSelf(id)
}

func (e *Engine) transition(to status.State) {
	if e.status == nil {
		return
	}
	if err := e.status.Transition(to); err != nil {
		e.logger.Debug("status transition skipped", zap.Error(err))
	}
}
