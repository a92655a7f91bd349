// Package notify decides which events surface as toasts and how bursts are
// coalesced.
package notify

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/timer"
)

// Policy selects how concurrent toasts are surfaced.
type Policy string

const (
	SingleLatest Policy = config.ModeSingleLatest
	Queue        Policy = config.ModeQueue
	Multiple     Policy = config.ModeMultiple
)

// ParsePolicy maps a mode string, defaulting to SingleLatest.
func ParsePolicy(s string) Policy {
	switch Policy(s) {
	case Queue, Multiple:
		return Policy(s)
	}
	return SingleLatest
}

// Category classifies notification sources.
type Category string

const (
	CategoryMessage Category = "message"
	CategoryFriend  Category = "friend"
	CategorySystem  Category = "system"
)

// Settings configures the coalescer.
type Settings struct {
	Enabled       bool
	Policy        Policy
	Grouping      bool
	Duration      time.Duration
	MaxVisible    int
	TransitionGap time.Duration
	Sound         bool
	System        bool
}

// SettingsFrom converts the notifications config section.
func SettingsFrom(n config.Notifications) Settings {
	return Settings{
		Enabled:       n.Enabled,
		Policy:        ParsePolicy(n.Mode),
		Grouping:      n.Grouping,
		Duration:      n.Duration(),
		MaxVisible:    n.MaxVisible,
		TransitionGap: n.TransitionGap(),
		Sound:         n.Sound,
		System:        n.System,
	}
}

// Event is a candidate notification.
type Event struct {
	Category     Category
	SenderID     string
	Conversation chat.Key
	Kind         chat.ContentKind
	Title        string
	Body         string
	Self         bool
}

// Toast is a visible notification.
type Toast struct {
	ID           string
	GroupKey     string
	SenderID     string
	Conversation chat.Key
	Category     Category
	Title        string
	Body         string
	CreatedAt    time.Time
	TTL          time.Duration
	Count        int
	Sound        bool
}

// SystemNotifier raises an OS-level notification.
type SystemNotifier interface {
	Notify(title, body string) error
}

// Decision reports what Offer did.
type Decision int

const (
	Dropped Decision = iota
	Native
	Shown
	Merged
	Buffered
)

// Coalescer applies the notification policy. It is not safe for concurrent
// use; scheduler callbacks must be delivered on the owning goroutine.
type Coalescer struct {
	settings Settings
	sched    timer.Scheduler
	native   SystemNotifier
	onChange func([]Toast)
	logger   *zap.Logger
	newID    func() string

	// visible is ordered newest first.
	visible []*Toast
	// buffer is ordered oldest first.
	buffer []*Toast
	timers map[string]timer.Timer

	// next is the toast waiting out the transition gap under SingleLatest.
	next *Toast
	gap  timer.Timer
}

// New creates a Coalescer. native and onChange may be nil.
func New(settings Settings, sched timer.Scheduler, native SystemNotifier, onChange func([]Toast), logger *zap.Logger) *Coalescer {
	c := &Coalescer{
		sched:    sched,
		native:   native,
		onChange: onChange,
		logger:   logging.OrNop(logger),
		newID:    uuid.NewString,
		timers:   make(map[string]timer.Timer),
	}
	c.settings = normalize(settings)
	return c
}

func normalize(s Settings) Settings {
	if s.MaxVisible <= 0 {
		s.MaxVisible = 5
	}
	if s.Policy == "" {
		s.Policy = SingleLatest
	}
	if s.Duration < 0 {
		s.Duration = 0
	}
	return s
}

// Settings returns the active settings.
func (c *Coalescer) Settings() Settings { return c.settings }

// GroupKey returns the coalescing key for an event.
func GroupKey(ev Event) string {
	if ev.SenderID != "" {
		return "sender_" + ev.SenderID
	}
	cat := ev.Category
	if cat == "" {
		cat = CategoryMessage
	}
	return "generic_" + string(cat)
}

// Offer submits an event. open is the conversation currently shown.
func (c *Coalescer) Offer(ev Event, open chat.Key) Decision {
	if ev.Self {
		return Dropped
	}
	inOpen := !open.IsZero() && ev.Conversation == open

	if ev.Category == CategoryMessage && ev.Kind.Visual() {
		if !inOpen && c.settings.System && c.native != nil {
			if err := c.native.Notify(ev.Title, ev.Body); err != nil {
				c.logger.Warn("system notification failed", zap.Error(err))
			}
			return Native
		}
		return Dropped
	}
	if !c.settings.Enabled {
		return Dropped
	}
	if ev.Category == CategoryMessage && inOpen {
		return Dropped
	}

	t := &Toast{
		ID:           c.newID(),
		SenderID:     ev.SenderID,
		Conversation: ev.Conversation,
		Category:     ev.Category,
		Title:        ev.Title,
		Body:         ev.Body,
		CreatedAt:    c.sched.Now(),
		TTL:          c.settings.Duration,
		Count:        1,
		Sound:        c.settings.Sound,
	}
	if c.settings.Grouping {
		t.GroupKey = GroupKey(ev)
	} else {
		t.GroupKey = "toast_" + t.ID
	}

	if cur := c.findVisible(t.GroupKey); cur != nil {
		c.merge(cur, t)
		c.arm(cur)
		c.changed()
		return Merged
	}

	switch c.settings.Policy {
	case Queue:
		return c.offerQueue(t)
	case Multiple:
		return c.offerMultiple(t)
	default:
		return c.offerSingle(t)
	}
}

func (c *Coalescer) offerSingle(t *Toast) Decision {
	if c.next != nil {
		if c.next.GroupKey == t.GroupKey {
			c.merge(c.next, t)
		} else {
			c.next = t
		}
		return Buffered
	}
	if len(c.visible) == 0 {
		c.show(t)
		return Shown
	}
	for _, v := range slices.Clone(c.visible) {
		c.dismiss(v.ID)
	}
	c.changed()
	c.next = t
	c.armGap(c.flushGap)
	return Buffered
}

// armGap runs fn once the transition gap has passed. A callback whose timer
// was cancelled or replaced in the meantime does nothing.
func (c *Coalescer) armGap(fn func()) {
	var gap timer.Timer
	gap = c.sched.AfterFunc(c.settings.TransitionGap, func() {
		if c.gap != gap {
			return
		}
		c.gap = nil
		fn()
	})
	c.gap = gap
}

func (c *Coalescer) flushGap() {
	t := c.next
	c.next = nil
	if t == nil || len(c.visible) > 0 {
		return
	}
	c.show(t)
}

func (c *Coalescer) offerQueue(t *Toast) Decision {
	if len(c.visible) == 0 && c.gap == nil {
		c.show(t)
		return Shown
	}
	c.bufferToast(t)
	return Buffered
}

func (c *Coalescer) offerMultiple(t *Toast) Decision {
	if len(c.visible) < c.settings.MaxVisible {
		c.show(t)
		return Shown
	}
	c.bufferToast(t)
	return Buffered
}

// bufferToast adds t to the buffer, folding it into a buffered toast with the
// same group key.
func (c *Coalescer) bufferToast(t *Toast) {
	for i, b := range c.buffer {
		if b.GroupKey == t.GroupKey {
			c.merge(b, t)
			c.buffer = append(slices.Delete(c.buffer, i, i+1), b)
			return
		}
	}
	c.buffer = append(c.buffer, t)
}

func (c *Coalescer) merge(into, from *Toast) {
	into.Count += from.Count
	into.Title = from.Title
	into.Body = from.Body
	into.CreatedAt = from.CreatedAt
	into.Conversation = from.Conversation
}

func (c *Coalescer) show(t *Toast) {
	c.visible = slices.Insert(c.visible, 0, t)
	c.arm(t)
	c.logger.Debug("toast shown", zap.String("group", t.GroupKey), zap.Int("count", t.Count))
	c.changed()
}

func (c *Coalescer) arm(t *Toast) {
	if old, ok := c.timers[t.ID]; ok {
		old.Stop()
		delete(c.timers, t.ID)
	}
	if c.settings.Duration <= 0 {
		return
	}
	id := t.ID
	c.timers[id] = c.sched.AfterFunc(c.settings.Duration, func() { c.Close(id) })
}

// dismiss removes a visible toast without promoting buffered ones.
func (c *Coalescer) dismiss(id string) (*Toast, bool) {
	i := slices.IndexFunc(c.visible, func(t *Toast) bool { return t.ID == id })
	if i < 0 {
		return nil, false
	}
	t := c.visible[i]
	c.visible = slices.Delete(c.visible, i, i+1)
	if tm, ok := c.timers[id]; ok {
		tm.Stop()
		delete(c.timers, id)
	}
	return t, true
}

// Close dismisses a toast and promotes buffered toasts per policy. Closing an
// unknown or already closed toast is a no-op.
func (c *Coalescer) Close(id string) bool {
	if _, ok := c.dismiss(id); !ok {
		return false
	}
	c.changed()
	c.promote()
	return true
}

// Click closes the toast and returns the conversation it refers to.
func (c *Coalescer) Click(id string) (chat.Key, bool) {
	i := slices.IndexFunc(c.visible, func(t *Toast) bool { return t.ID == id })
	if i < 0 {
		return chat.Key{}, false
	}
	key := c.visible[i].Conversation
	c.Close(id)
	return key, true
}

func (c *Coalescer) promote() {
	switch c.settings.Policy {
	case Queue:
		if len(c.visible) > 0 || len(c.buffer) == 0 || c.gap != nil {
			return
		}
		c.armGap(func() {
			if len(c.visible) > 0 || len(c.buffer) == 0 {
				return
			}
			// Most recent first.
			t := c.buffer[len(c.buffer)-1]
			c.buffer = c.buffer[:len(c.buffer)-1]
			c.show(t)
		})
	case Multiple:
		for len(c.visible) < c.settings.MaxVisible && len(c.buffer) > 0 {
			t := c.buffer[0]
			c.buffer = c.buffer[1:]
			c.show(t)
		}
	}
}

// SetSettings replaces the settings at runtime.
func (c *Coalescer) SetSettings(s Settings) {
	s = normalize(s)
	prev := c.settings
	c.settings = s

	if !s.Enabled {
		c.Clear()
		return
	}
	if prev.Policy != s.Policy {
		c.cancelGap()
		if s.Policy == SingleLatest && len(c.visible) > 1 {
			for _, v := range slices.Clone(c.visible[1:]) {
				c.dismiss(v.ID)
			}
		}
		if s.Policy == SingleLatest {
			c.buffer = nil
		}
		c.changed()
	}
	if prev.Duration != s.Duration {
		for _, v := range c.visible {
			v.TTL = s.Duration
			c.arm(v)
		}
	}
	c.promote()
}

// Clear dismisses everything.
func (c *Coalescer) Clear() {
	c.cancelGap()
	for _, v := range slices.Clone(c.visible) {
		c.dismiss(v.ID)
	}
	c.buffer = nil
	c.changed()
}

func (c *Coalescer) cancelGap() {
	if c.gap != nil {
		c.gap.Stop()
		c.gap = nil
	}
	c.next = nil
}

// Visible returns the visible toasts, newest first.
func (c *Coalescer) Visible() []Toast {
	out := make([]Toast, len(c.visible))
	for i, t := range c.visible {
		out[i] = *t
	}
	return out
}

// Buffered returns the number of toasts waiting to be shown.
func (c *Coalescer) Buffered() int {
	n := len(c.buffer)
	if c.next != nil {
		n++
	}
	return n
}

func (c *Coalescer) findVisible(key string) *Toast {
	for _, t := range c.visible {
		if t.GroupKey == key {
			return t
		}
	}
	return nil
}

func (c *Coalescer) changed() {
	if c.onChange != nil {
		c.onChange(c.Visible())
	}
}
