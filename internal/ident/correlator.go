// Package ident correlates locally originated sends with server acknowledgments.
package ident

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/timer"
	"github.com/matheus3301/chatsync/internal/wire"
)

var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrNotFailed      = errors.New("message is not in failed state")
	ErrNoTarget       = errors.New("message has no target")
)

// DefaultBlockedNotice is shown when the server rejects a send without a reason.
const DefaultBlockedNotice = "This message was not delivered: you cannot message this user."

// MessageSet is the visible message set of the open conversation.
type MessageSet interface {
	Open() chat.Key
	Insert(m chat.Message)
	Append(m chat.Message)
	Get(id string) (chat.Message, bool)
	Resolve(clientID, serverID string, status chat.Status) (chat.Message, bool)
	SetStatus(id string, status chat.Status) bool
	Replace(oldID string, m chat.Message) bool
	SetReaction(messageID, userID, emoji string) (string, bool)
}

// Emitter sends an event on the live channel.
type Emitter interface {
	Emit(event string, payload any)
}

// Hooks are invoked after the correlator changes message state.
// Every field is optional.
type Hooks struct {
	Changed        func(key chat.Key)
	Confirmed      func(m chat.Message)
	Failed         func(m chat.Message)
	Blocked        func(m chat.Message, notice chat.Message)
	ReactionFailed func(messageID string)
}

// Config holds ack timeouts.
type Config struct {
	TextTimeout   time.Duration
	FileTimeout   time.Duration
	BlockedNotice string
}

// AckKind distinguishes what a pending ack confirms.
type AckKind string

const (
	AckMessage  AckKind = "message"
	AckReaction AckKind = "reaction"
)

// PendingAck tracks one unacknowledged send.
type PendingAck struct {
	ClientID     string
	Kind         AckKind
	Conversation chat.Key
	CreatedAt    time.Time

	message chat.Message

	messageID string
	emoji     string
	prev      string

	timer timer.Timer
}

// Ack is a decoded acknowledgment.
type Ack struct {
	ClientID       string
	ServerID       string
	Status         chat.Status
	BlockedMessage string
}

// AckFromWire converts a message_sent_ack payload.
func AckFromWire(a wire.Ack) Ack {
	return Ack{
		ClientID:       a.ClientMessageID,
		ServerID:       string(a.MessageID),
		Status:         chat.ParseStatus(a.Status),
		BlockedMessage: a.BlockedMessage,
	}
}

// Correlator owns the PendingAck table. It is not safe for concurrent use;
// scheduler callbacks must be delivered on the owning goroutine.
type Correlator struct {
	self   string
	set    MessageSet
	out    Emitter
	sched  timer.Scheduler
	cfg    Config
	hooks  Hooks
	logger *zap.Logger
	newID  func() string

	pending map[string]*PendingAck
	// failed retains failed sends by client id so they can be retried after
	// the conversation was closed and reopened.
	failed map[string]chat.Message
}

// New creates a Correlator.
func New(self string, set MessageSet, out Emitter, sched timer.Scheduler, cfg Config, hooks Hooks, logger *zap.Logger) *Correlator {
	if cfg.TextTimeout <= 0 {
		cfg.TextTimeout = 3 * time.Second
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 5 * time.Second
	}
	if cfg.BlockedNotice == "" {
		cfg.BlockedNotice = DefaultBlockedNotice
	}
	return &Correlator{
		self:    self,
		set:     set,
		out:     out,
		sched:   sched,
		cfg:     cfg,
		hooks:   hooks,
		logger:  logging.OrNop(logger),
		newID:   uuid.NewString,
		pending: make(map[string]*PendingAck),
		failed:  make(map[string]chat.Message),
	}
}

// SetSelf updates the current user id.
func (c *Correlator) SetSelf(self string) { c.self = self }

// Submit sends a draft optimistically. The draft must carry a conversation key;
// sender, id, status and timestamp are filled in. It returns the client id.
func (c *Correlator) Submit(draft chat.Message) (string, error) {
	if draft.Conversation.IsZero() {
		return "", ErrNoTarget
	}
	msg := draft.Clone()
	msg.ClientID = c.newID()
	msg.ID = msg.ClientID
	msg.ServerID = ""
	msg.SenderID = c.self
	msg.Status = chat.StatusSending
	msg.Timestamp = c.sched.Now()
	switch msg.Conversation.Kind {
	case chat.KindGroup:
		msg.GroupID = msg.Conversation.ID
	default:
		msg.ReceiverID = msg.Conversation.ID
	}

	if c.set.Open() == msg.Conversation {
		c.set.Insert(msg)
	}
	c.send(msg)
	c.changed(msg.Conversation)
	return msg.ClientID, nil
}

func (c *Correlator) send(msg chat.Message) {
	p := &PendingAck{
		ClientID:     msg.ClientID,
		Kind:         AckMessage,
		Conversation: msg.Conversation,
		CreatedAt:    c.sched.Now(),
		message:      msg,
	}
	c.arm(p, c.timeoutFor(msg.Kind))
	c.out.Emit(wire.EventSendMessage, wire.FromChat(msg))
}

func (c *Correlator) timeoutFor(kind chat.ContentKind) time.Duration {
	if kind == chat.ContentFile || kind == chat.ContentImage {
		return c.cfg.FileTimeout
	}
	return c.cfg.TextTimeout
}

func (c *Correlator) arm(p *PendingAck, d time.Duration) {
	id := p.ClientID
	p.timer = c.sched.AfterFunc(d, func() { c.expire(id) })
	c.pending[id] = p
}

// take removes and returns the pending ack for clientID, cancelling its timer.
func (c *Correlator) take(clientID string) (*PendingAck, bool) {
	p, ok := c.pending[clientID]
	if !ok {
		return nil, false
	}
	delete(c.pending, clientID)
	p.timer.Stop()
	return p, true
}

// OnAck applies a server acknowledgment. Unknown and duplicate acks are ignored
// and reported as false.
func (c *Correlator) OnAck(ack Ack) bool {
	p, ok := c.take(ack.ClientID)
	if !ok {
		c.logger.Debug("ignoring ack without pending send", zap.String("client_id", ack.ClientID))
		return false
	}
	if p.Kind == AckReaction {
		c.changed(p.Conversation)
		return true
	}

	if ack.Status == chat.StatusBlocked {
		c.block(p, ack.BlockedMessage)
		return true
	}

	status := ack.Status
	if status == "" {
		status = chat.StatusSent
	}
	confirmed := p.message
	confirmed.Status = status
	if ack.ServerID != "" {
		confirmed.ServerID = ack.ServerID
		confirmed.ID = ack.ServerID
	}
	if m, ok := c.set.Resolve(ack.ClientID, ack.ServerID, status); ok {
		confirmed = m
	}
	if c.hooks.Confirmed != nil {
		c.hooks.Confirmed(confirmed)
	}
	c.changed(p.Conversation)
	return true
}

func (c *Correlator) block(p *PendingAck, reason string) {
	msg := p.message
	msg.Status = chat.StatusBlocked
	c.set.SetStatus(p.ClientID, chat.StatusBlocked)

	text := reason
	if text == "" {
		text = c.cfg.BlockedNotice
	}
	notice := chat.Message{
		ID:           "system-" + c.newID(),
		Conversation: p.Conversation,
		Kind:         chat.ContentSystem,
		Payload:      text,
		Timestamp:    c.sched.Now(),
		Status:       chat.StatusSent,
	}
	if c.set.Open() == p.Conversation {
		c.set.Append(notice)
	}
	c.logger.Info("send blocked", zap.String("client_id", p.ClientID), zap.String("conversation", p.Conversation.String()))
	if c.hooks.Blocked != nil {
		c.hooks.Blocked(msg, notice)
	}
	c.changed(p.Conversation)
}

// Settle drops the pending ack for a send that was confirmed by a broadcast.
func (c *Correlator) Settle(clientID string) bool {
	_, ok := c.take(clientID)
	return ok
}

// Fail gives up on a pending send or reaction without waiting for its ack
// timeout. It reports whether clientID was pending.
func (c *Correlator) Fail(clientID string) bool {
	p, ok := c.pending[clientID]
	if !ok {
		return false
	}
	p.timer.Stop()
	c.expire(clientID)
	return true
}

func (c *Correlator) expire(clientID string) {
	p, ok := c.pending[clientID]
	if !ok {
		return
	}
	delete(c.pending, clientID)

	switch p.Kind {
	case AckReaction:
		c.set.SetReaction(p.messageID, c.self, p.prev)
		c.logger.Warn("reaction not acknowledged", zap.String("message_id", p.messageID))
		if c.hooks.ReactionFailed != nil {
			c.hooks.ReactionFailed(p.messageID)
		}
	default:
		if m, ok := c.set.Get(clientID); ok && !m.Status.Pending() {
			c.logger.Debug("ack timer fired after confirmation", zap.String("client_id", clientID))
			return
		}
		msg := p.message
		msg.Status = chat.StatusFailed
		c.set.SetStatus(clientID, chat.StatusFailed)
		c.failed[clientID] = msg
		c.logger.Warn("send not acknowledged",
			zap.String("client_id", clientID),
			zap.String("conversation", p.Conversation.String()),
		)
		if c.hooks.Failed != nil {
			c.hooks.Failed(msg)
		}
	}
	c.changed(p.Conversation)
}

// Retry resends a failed message under a new client id, replacing the failed
// entry in place. It returns the new client id.
func (c *Correlator) Retry(id string) (string, error) {
	old, ok := c.failed[id]
	if !ok {
		if m, found := c.set.Get(id); found {
			if m.Status != chat.StatusFailed {
				return "", ErrNotFailed
			}
			old = m
		} else {
			return "", ErrUnknownMessage
		}
	}
	delete(c.failed, old.ClientID)

	msg := old.Clone()
	msg.ClientID = c.newID()
	msg.ID = msg.ClientID
	msg.Status = chat.StatusSending
	msg.Timestamp = c.sched.Now()

	if !c.set.Replace(old.ID, msg) && c.set.Open() == msg.Conversation {
		c.set.Insert(msg)
	}
	c.send(msg)
	c.changed(msg.Conversation)
	return msg.ClientID, nil
}

// SubmitReaction applies userID's reaction optimistically and sends it.
func (c *Correlator) SubmitReaction(messageID, emoji string) (string, error) {
	target, ok := c.set.Get(messageID)
	if !ok {
		return "", ErrUnknownMessage
	}
	serverID := target.ServerID
	if serverID == "" {
		// Reacting to an unconfirmed send is not addressable on the server.
		return "", ErrUnknownMessage
	}
	prev, _ := c.set.SetReaction(messageID, c.self, emoji)

	p := &PendingAck{
		ClientID:     c.newID(),
		Kind:         AckReaction,
		Conversation: target.Conversation,
		CreatedAt:    c.sched.Now(),
		messageID:    messageID,
		emoji:        emoji,
		prev:         prev,
	}
	c.arm(p, c.cfg.TextTimeout)
	c.out.Emit(wire.EventSendReaction, wire.SendReaction{
		ClientMessageID: p.ClientID,
		MessageID:       serverID,
		UserID:          c.self,
		Reaction:        emoji,
	})
	c.changed(target.Conversation)
	return p.ClientID, nil
}

// Outstanding returns in-flight and failed sends for key, oldest first, so a
// reopened conversation can show them again.
func (c *Correlator) Outstanding(key chat.Key) []chat.Message {
	var out []chat.Message
	for _, p := range c.pending {
		if p.Kind == AckMessage && p.Conversation == key {
			out = append(out, p.message.Clone())
		}
	}
	for _, m := range c.failed {
		if m.Conversation == key {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b chat.Message) int { return a.Timestamp.Compare(b.Timestamp) })
	return out
}

// Pending returns the number of unacknowledged sends and reactions.
func (c *Correlator) Pending() int { return len(c.pending) }

// Close cancels every pending timer.
func (c *Correlator) Close() {
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}

func (c *Correlator) changed(key chat.Key) {
	if c.hooks.Changed != nil {
		c.hooks.Changed(key)
	}
}
