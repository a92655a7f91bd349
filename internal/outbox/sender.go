// Package outbox decouples outbound frames from the engine loop.
package outbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
)

// FrameSender writes one outbound frame to the server.
type FrameSender interface {
	Send(ctx context.Context, event string, data any) error
}

// Frame is one queued outbound event.
type Frame struct {
	Event string
	Data  any
}

// Failure is the payload of outbox.send_failed events.
type Failure struct {
	Frame Frame
	Err   error
}

// DefaultCapacity is the queue size used when none is given.
const DefaultCapacity = 256

// writeTimeout bounds a single frame write.
const writeTimeout = 10 * time.Second

// Sender drains queued frames into a FrameSender. Emit never blocks, so the
// engine loop can hand off writes while it owns component state.
type Sender struct {
	sender FrameSender
	bus    *bus.Bus
	logger *zap.Logger
	queue  chan Frame

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	sent   int64
	failed int64
}

// NewSender creates a sender with the given queue capacity.
func NewSender(sender FrameSender, b *bus.Bus, capacity int, logger *zap.Logger) *Sender {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		sender: sender,
		bus:    b,
		logger: logger.Named("outbox"),
		queue:  make(chan Frame, capacity),
	}
}

// Emit queues a frame. A full queue fails the frame immediately.
func (s *Sender) Emit(event string, data any) {
	f := Frame{Event: event, Data: data}
	select {
	case s.queue <- f:
	default:
		s.fail(f, errQueueFull)
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit. Frames still queued
// are dropped.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Stats returns how many frames were written and how many failed.
func (s *Sender) Stats() (sent, failed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.failed
}

// Queued returns the number of frames waiting to be written.
func (s *Sender) Queued() int { return len(s.queue) }

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case f := <-s.queue:
			s.write(ctx, f)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) write(ctx context.Context, f Frame) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.sender.Send(wctx, f.Event, f.Data); err != nil {
		s.fail(f, err)
		return
	}
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
	s.logger.Debug("frame sent", zap.String("event", f.Event))
}

func (s *Sender) fail(f Frame, err error) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	s.logger.Warn("frame not sent", zap.String("event", f.Event), zap.Error(err))
	if s.bus != nil {
		s.bus.Emit(bus.KindSendFailed, Failure{Frame: f, Err: err})
	}
}

// EventName returns the failed frame's event name.
func (f Failure) EventName() string { return f.Frame.Event }
