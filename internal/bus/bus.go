package bus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Bus fans events out to subscribers by kind prefix. Plain subscriptions
// never block a publisher: an event that does not fit the buffer is dropped
// for that subscriber and counted. Lossless subscriptions make the publisher
// wait for buffer space instead.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscription
	next    uint64
	dropped atomic.Uint64
}

type subscription struct {
	prefix   string
	ch       chan Event
	lossless bool
	// done is closed on cancel and releases a publisher blocked on ch.
	done chan struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscription)}
}

// Publish delivers evt to every subscription whose prefix matches evt.Kind.
// A zero Timestamp is set to now. Publish blocks only while a matching
// lossless subscription is full.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	var blocking []*subscription
	b.mu.RLock()
	for _, s := range b.subs {
		if !strings.HasPrefix(evt.Kind, s.prefix) {
			continue
		}
		if s.lossless {
			blocking = append(blocking, s)
			continue
		}
		select {
		case s.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
	b.mu.RUnlock()

	for _, s := range blocking {
		select {
		case s.ch <- evt:
		case <-s.done:
		}
	}
}

// Emit publishes kind with payload.
func (b *Bus) Emit(kind string, payload any) {
	b.Publish(Event{Kind: kind, Payload: payload})
}

// Subscribe registers a buffered subscription for kinds starting with prefix.
// The returned cancel func is idempotent. The channel is never closed.
func (b *Bus) Subscribe(prefix string, buf int) (<-chan Event, func()) {
	return b.subscribe(prefix, buf, false)
}

// SubscribeLossless registers a subscription that never drops: publishers
// of matching kinds wait until the subscriber has room or cancels. The
// subscriber must drain the channel from a goroutine that never publishes
// kinds matching prefix.
func (b *Bus) SubscribeLossless(prefix string, buf int) (<-chan Event, func()) {
	return b.subscribe(prefix, buf, true)
}

func (b *Bus) subscribe(prefix string, buf int, lossless bool) (<-chan Event, func()) {
	s := &subscription{
		prefix:   prefix,
		ch:       make(chan Event, buf),
		lossless: lossless,
		done:     make(chan struct{}),
	}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			close(s.done)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }
