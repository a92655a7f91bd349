// Package metrics exposes engine counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
)

const namespace = "chatsync"

// Metrics holds the collectors and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	LiveEvents    *prometheus.CounterVec
	Connects      prometheus.Counter
	Disconnects   prometheus.Counter
	SendFailures  *prometheus.CounterVec
	Toasts        *prometheus.CounterVec
	Status        *prometheus.GaugeVec
	PendingAcks   prometheus.Gauge
	HistoryFetch  prometheus.Histogram
	UnreadPreview prometheus.Gauge

	watchOnce sync.Once
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LiveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_total",
			Help:      "Inbound live events by event name.",
		}, []string{"event"}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_connects_total",
			Help:      "Established live connections.",
		}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_disconnects_total",
			Help:      "Dropped live connections.",
		}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_failures_total",
			Help:      "Outbound frames that could not be written, by event name.",
		}, []string{"event"}),
		Toasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toasts_total",
			Help:      "Notification outcomes by kind.",
		}, []string{"kind"}),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		PendingAcks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_acks",
			Help:      "Sends awaiting server acknowledgement.",
		}),
		HistoryFetch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_fetch_seconds",
			Help:      "Latency of conversation history requests.",
			Buckets:   prometheus.DefBuckets,
		}),
		UnreadPreview: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unread_messages",
			Help:      "Total unread count across the conversation list.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LiveEvents, m.Connects, m.Disconnects, m.SendFailures, m.Toasts,
		m.Status, m.PendingAcks, m.HistoryFetch, m.UnreadPreview,
	)
	return m
}

// ObserveHistory records one history fetch duration.
func (m *Metrics) ObserveHistory(d time.Duration) {
	if m == nil {
		return
	}
	m.HistoryFetch.Observe(d.Seconds())
}

// SetPending records the number of outstanding acks.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingAcks.Set(float64(n))
}

// SetUnread records the total unread count.
func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.UnreadPreview.Set(float64(n))
}

// Handler returns the /metrics handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Watch counts bus events until ctx is cancelled.
func (m *Metrics) Watch(ctx context.Context, b *bus.Bus) {
	m.watchOnce.Do(func() {
		m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_dropped_total",
			Help:      "Bus deliveries skipped because a subscriber buffer was full.",
		}, func() float64 { return float64(b.Dropped()) }))
	})
	ch, unsub := b.Subscribe("", 256)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				m.record(evt)
			}
		}
	}()
}

func (m *Metrics) record(evt bus.Event) {
	switch {
	case evt.Kind == bus.KindLiveConnected:
		m.Connects.Inc()
	case evt.Kind == bus.KindLiveDisconnected:
		m.Disconnects.Inc()
	case strings.HasPrefix(evt.Kind, bus.NamespaceLive):
		m.LiveEvents.WithLabelValues(strings.TrimPrefix(evt.Kind, bus.NamespaceLive)).Inc()
	case evt.Kind == bus.KindSendFailed:
		event := "unknown"
		if f, ok := evt.Payload.(interface{ EventName() string }); ok {
			event = f.EventName()
		}
		m.SendFailures.WithLabelValues(event).Inc()
	case strings.HasPrefix(evt.Kind, bus.NamespaceToast):
		m.Toasts.WithLabelValues(strings.TrimPrefix(evt.Kind, bus.NamespaceToast)).Inc()
	case evt.Kind == bus.KindStatusChanged:
		if sc, ok := evt.Payload.(status.StatusChange); ok {
			m.Status.WithLabelValues(string(sc.From)).Set(0)
			m.Status.WithLabelValues(string(sc.To)).Set(1)
		}
	}
}

// Server serves /metrics on a TCP address.
type Server struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server. An empty addr disables it.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		addr:   addr,
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Enabled reports whether a listen address is configured.
func (s *Server) Enabled() bool { return s.addr != "" }

// Start listens and serves in the background. It returns the bound address.
func (s *Server) Start() (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	return ln.Addr().String(), nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
