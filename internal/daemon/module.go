package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/live"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/metrics"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/rest"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	intsync "github.com/matheus3301/chatsync/internal/sync"
)

// Mode names the process holding the profile lock.
const (
	ModeDaemon = "daemon"
	ModeTUI    = "tui"
)

// outboxCapacity bounds frames waiting to be written. Frames are written
// once and fail with live.ErrNotConnected while the channel is down.
const outboxCapacity = 256

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	Mode       string
	SocketPath string // optional override for testing; empty = use default
	ConfigPath string // optional override for testing; empty = use default
	Stderr     bool
	Debug      bool
}

// Module returns the fx module for a chatsync process, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideREST,
			provideLive,
			provideOutbox,
			provideMetrics,
			provideNative,
			provideEngine,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, logging.Options{
		Stderr: p.Stderr,
		Debug:  p.Debug,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	mode := p.Mode
	if mode == "" {
		mode = ModeDaemon
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile), zap.String("mode", mode))
	l, err := lock.Acquire(profile.Dir(p.Profile), mode)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	path := profile.CachePath(p.Profile)
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("cache ready",
		zap.String("path", path),
		zap.Uint("schema_from", result.From),
		zap.Uint("schema", result.Version),
		zap.Bool("migrated", result.Changed),
	)
	return db, nil
}

func provideREST(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.New(cfg.Server.BaseURL, cfg.Server.Token, rest.WithLogger(logger))
}

func provideLive(cfg *config.Config, b *bus.Bus, m *status.Machine, logger *zap.Logger) (*live.Client, error) {
	u, err := live.URLFor(cfg.Server.BaseURL, cfg.Server.WSPath, cfg.Server.Token)
	if err != nil {
		return nil, err
	}
	return live.New(live.Config{
		URL:           u,
		Heartbeat:     cfg.Live.Heartbeat(),
		ReconnectBase: cfg.Live.ReconnectBase(),
		ReconnectMax:  cfg.Live.ReconnectMax(),
	}, b, m, logger), nil
}

func provideOutbox(c *live.Client, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(c, b, outboxCapacity, logger)
}

func provideMetrics(cfg *config.Config, logger *zap.Logger) (*metrics.Metrics, *metrics.Server) {
	m := metrics.New()
	return m, metrics.NewServer(cfg.Metrics.Listen, m, logger)
}

// provideNative returns nil when system notifications are off or
// notify-send is missing.
func provideNative(cfg *config.Config, logger *zap.Logger) notify.SystemNotifier {
	if !cfg.Notifications.System {
		return nil
	}
	d, err := notify.NewDesktop("chatsync")
	if err != nil {
		logger.Info("system notifications unavailable", zap.Error(err))
		return nil
	}
	return d
}

func provideEngine(
	cfg *config.Config,
	b *bus.Bus,
	api *rest.Client,
	out *outbox.Sender,
	db *store.DB,
	native notify.SystemNotifier,
	m *metrics.Metrics,
	machine *status.Machine,
	logger *zap.Logger,
) *intsync.Engine {
	return intsync.New(b, api, out, db, intsync.Options{
		Config:   cfg,
		Location: time.Local,
		Native:   native,
		Metrics:  m,
		Status:   machine,
		Logger:   logger,
	})
}

type lifecycleParams struct {
	fx.In

	Params  Params
	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Live    *live.Client
	Engine  *intsync.Engine
	Sender  *outbox.Sender
	Metrics *metrics.Metrics
	MServer *metrics.Server
	Machine *status.Machine
	Bus     *bus.Bus
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, in lifecycleParams) {
	bg, cancel := context.WithCancel(context.Background())
	logger := in.Logger

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			in.Metrics.Watch(bg, in.Bus)
			in.Server.Watch(bg, in.Bus)
			if in.Params.Mode != ModeTUI {
				watchToasts(bg, in.Bus, logger)
			}

			// The engine subscribes before the live channel can publish.
			if err := in.Engine.Start(bg); err != nil {
				return err
			}
			in.Sender.Start(bg)

			go func() {
				if err := in.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if _, err := in.MServer.Start(); err != nil {
				logger.Warn("metrics listener failed", zap.Error(err))
			}

			return in.Live.Start(bg)
		},
		OnStop: func(ctx context.Context) error {
			in.Live.Stop()
			in.Sender.Stop()
			in.Engine.Stop()
			cancel()
			_ = in.Machine.Transition(status.Closed)
			if err := in.MServer.Stop(ctx); err != nil {
				logger.Warn("error stopping metrics listener", zap.Error(err))
			}
			in.Server.Stop(ctx)
			var errs []error
			if err := in.DB.Close(); err != nil {
				errs = append(errs, err)
			}
			if err := in.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return errors.Join(errs...)
		},
	})
}

// watchToasts logs surfaced notifications for headless runs.
func watchToasts(ctx context.Context, b *bus.Bus, logger *zap.Logger) {
	ch, unsub := b.Subscribe(bus.NamespaceToast, 64)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				ev, ok := evt.Payload.(notify.Event)
				if !ok {
					continue
				}
				logger.Info("notification",
					zap.String("kind", evt.Kind),
					zap.String("category", string(ev.Category)),
					zap.String("title", ev.Title),
					zap.String("body", ev.Body),
				)
			}
		}
	}()
}
