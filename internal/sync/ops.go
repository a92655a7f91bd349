package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/ident"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/wire"
)

// Select opens a conversation: the visible set is cleared, outstanding sends
// are shown again, unread is cleared and history is fetched off-loop. Only the
// response to the latest Select is applied.
func (e *Engine) Select(ctx context.Context, key chat.Key) error {
	if key.IsZero() {
		return ErrNoConversation
	}
	return e.do(ctx, func() { e.selectConversation(key) })
}

func (e *Engine) selectConversation(key chat.Key) {
	prev := e.thread.Open()
	if !prev.IsZero() && prev != key {
		e.typing.Blur(prev, false)
	}
	token := e.thread.Select(key)
	for _, m := range e.ids.Outstanding(key) {
		e.thread.Insert(m)
	}
	if e.typing.SetOpen(key) {
		e.publishTyping()
	}
	if e.previews.MarkRead(key) {
		e.publishPreviews()
	}
	e.publishThread()
	e.fetchHistory(key, token)
}

// Deselect closes the open conversation.
func (e *Engine) Deselect(ctx context.Context) error {
	return e.do(ctx, func() {
		if prev := e.thread.Open(); !prev.IsZero() {
			e.typing.Blur(prev, false)
		}
		e.thread.Close()
		if e.typing.SetOpen(chat.Key{}) {
			e.publishTyping()
		}
		e.publishThread()
	})
}

// fetchHistory loads the page for key off-loop and applies it under token.
// When the server is unreachable the cached copy is applied instead.
func (e *Engine) fetchHistory(key chat.Key, token uint64) {
	self := e.self
	limit := e.cfg.Live.HistoryPageLimit
	e.goAsync(func(ctx context.Context) {
		start := time.Now()
		var (
			page []wire.Message
			err  error
		)
		if key.Kind == chat.KindGroup {
			page, err = e.api.GroupHistory(ctx, key.ID, limit)
		} else {
			page, err = e.api.DirectHistory(ctx, self, key.ID, limit)
		}
		e.metrics.ObserveHistory(time.Since(start))
		e.post(func() { e.applyHistory(key, token, page, err) })
	})
}

func (e *Engine) applyHistory(key chat.Key, token uint64, page []wire.Message, err error) {
	if !e.thread.Current(token) {
		e.logger.Debug("discarding stale history", zap.String("conversation", key.String()))
		return
	}
	var msgs []chat.Message
	if err != nil {
		e.logger.Warn("history fetch failed", zap.String("conversation", key.String()), zap.Error(err))
		if e.cache == nil {
			return
		}
		cached, cerr := e.cache.CachedMessages(key, e.self, e.cfg.Live.HistoryPageLimit)
		if cerr != nil || len(cached) == 0 {
			return
		}
		msgs = cached
	} else {
		msgs = make([]chat.Message, 0, len(page))
		for _, w := range page {
			m := w.ToChat(e.self, e.loc)
			m.Conversation = key
			msgs = append(msgs, m)
		}
		if e.cache != nil {
			if cerr := e.cache.CacheMessages(key, msgs); cerr != nil {
				e.logger.Warn("failed to cache history", zap.Error(cerr))
			}
		}
	}
	if e.thread.ApplyHistory(token, msgs) {
		e.publishThread()
	}
}

// SendText sends text to the open conversation and returns its client id.
func (e *Engine) SendText(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty message")
	}
	return e.send(ctx, chat.ContentText, text)
}

// SendSticker sends a sticker by URL to the open conversation.
func (e *Engine) SendSticker(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("empty sticker url")
	}
	return e.send(ctx, chat.ContentSticker, url)
}

// SendFile sends an uploaded file by URL to the open conversation. Image
// URLs are classified as images.
func (e *Engine) SendFile(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("empty file url")
	}
	return e.send(ctx, chat.ClassifyFile(url), url)
}

// SendReply sends text to the open conversation as a reply to a visible,
// confirmed message. replyTo may be its server id or the client id it was
// sent under.
func (e *Engine) SendReply(ctx context.Context, replyTo, text string) (string, error) {
	if text == "" {
		return "", errors.New("empty message")
	}
	return e.submit(ctx, func(key chat.Key) (chat.Message, error) {
		target, ok := e.thread.Get(replyTo)
		if !ok || target.ServerID == "" {
			return chat.Message{}, ident.ErrUnknownMessage
		}
		return chat.Message{Conversation: key, Kind: chat.ContentText, Payload: text, ReplyToID: target.ServerID}, nil
	})
}

func (e *Engine) send(ctx context.Context, kind chat.ContentKind, payload string) (string, error) {
	return e.submit(ctx, func(key chat.Key) (chat.Message, error) {
		return chat.Message{Conversation: key, Kind: kind, Payload: payload}, nil
	})
}

// submit builds a draft for the open conversation on the loop and sends it.
func (e *Engine) submit(ctx context.Context, draft func(key chat.Key) (chat.Message, error)) (string, error) {
	var (
		id  string
		err error
	)
	if derr := e.do(ctx, func() {
		key := e.thread.Open()
		if key.IsZero() {
			err = ErrNoConversation
			return
		}
		var msg chat.Message
		if msg, err = draft(key); err != nil {
			return
		}
		e.typing.Submit(key)
		id, err = e.ids.Submit(msg)
		if err != nil {
			return
		}
		if m, ok := e.thread.Get(id); ok && e.previews.OnMessage(m, key) {
			e.publishPreviews()
		}
	}); derr != nil {
		return "", derr
	}
	return id, err
}

// React sets the current user's reaction on a confirmed message.
func (e *Engine) React(ctx context.Context, messageID, emoji string) (string, error) {
	var (
		id  string
		err error
	)
	if derr := e.do(ctx, func() { id, err = e.ids.SubmitReaction(messageID, emoji) }); derr != nil {
		return "", derr
	}
	return id, err
}

// Retry resends a failed message and returns its new client id.
func (e *Engine) Retry(ctx context.Context, id string) (string, error) {
	var (
		next string
		err  error
	)
	if derr := e.do(ctx, func() { next, err = e.ids.Retry(id) }); derr != nil {
		return "", derr
	}
	return next, err
}

// RetryLast resends the most recent failed message of the open conversation.
func (e *Engine) RetryLast(ctx context.Context) (string, error) {
	var (
		next string
		err  error
	)
	if derr := e.do(ctx, func() {
		msgs := e.thread.Snapshot()
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Status == chat.StatusFailed {
				next, err = e.ids.Retry(msgs[i].ID)
				return
			}
		}
		err = errors.New("no failed message")
	}); derr != nil {
		return "", derr
	}
	return next, err
}

// Input reports composer activity in the open conversation.
func (e *Engine) Input(ctx context.Context) error {
	return e.do(ctx, func() {
		if key := e.thread.Open(); !key.IsZero() {
			e.typing.Input(key)
		}
	})
}

// Blur reports that the composer lost focus.
func (e *Engine) Blur(ctx context.Context) error {
	return e.do(ctx, func() {
		key := e.thread.Open()
		if key.IsZero() {
			return
		}
		pending := false
		for _, m := range e.ids.Outstanding(key) {
			if m.Status == chat.StatusSending {
				pending = true
				break
			}
		}
		e.typing.Blur(key, pending)
	})
}

// CloseToast dismisses a toast.
func (e *Engine) CloseToast(ctx context.Context, id string) error {
	return e.do(ctx, func() {
		if e.toasts.Close(id) {
			e.bus.Emit(bus.KindToastClosed, id)
		}
	})
}

// ClickToast closes a toast and opens its conversation.
func (e *Engine) ClickToast(ctx context.Context, id string) error {
	return e.do(ctx, func() {
		key, ok := e.toasts.Click(id)
		if !ok {
			return
		}
		e.bus.Emit(bus.KindToastClosed, id)
		if !key.IsZero() {
			e.selectConversation(key)
		}
	})
}

// SetNotificationPolicy switches the toast policy at runtime.
func (e *Engine) SetNotificationPolicy(ctx context.Context, policy notify.Policy) error {
	return e.do(ctx, func() {
		s := e.toasts.Settings()
		s.Policy = policy
		e.toasts.SetSettings(s)
	})
}

// SetNotificationSettings replaces the notification settings at runtime.
func (e *Engine) SetNotificationSettings(ctx context.Context, s notify.Settings) error {
	return e.do(ctx, func() { e.toasts.SetSettings(s) })
}

// NotificationSettings returns the active notification settings.
func (e *Engine) NotificationSettings(ctx context.Context) (notify.Settings, error) {
	var s notify.Settings
	err := e.do(ctx, func() { s = e.toasts.Settings() })
	return s, err
}

// AcceptFriend accepts a pending friend request.
func (e *Engine) AcceptFriend(ctx context.Context, userID string) error {
	if err := e.api.Accept(ctx, userID); err != nil {
		return err
	}
	return e.do(ctx, func() {
		e.out.Emit(wire.EventSendFriendOK, wire.UserRef{FromID: userID, ToID: e.self})
		e.dropRequest(userID)
		e.RefreshContacts()
	})
}

// RejectFriend rejects a pending friend request.
func (e *Engine) RejectFriend(ctx context.Context, userID string) error {
	if err := e.api.Reject(ctx, userID); err != nil {
		return err
	}
	return e.do(ctx, func() {
		e.out.Emit(wire.EventSendFriendNo, wire.UserRef{FromID: userID, ToID: e.self})
		e.dropRequest(userID)
	})
}

// RequestFriend sends a friend request to userID.
func (e *Engine) RequestFriend(ctx context.Context, userID string) error {
	return e.emitToUser(ctx, wire.EventSendFriendReq, userID)
}

// Block blocks userID. Later sends to them are rejected by the server.
func (e *Engine) Block(ctx context.Context, userID string) error {
	return e.emitToUser(ctx, wire.EventSendBlock, userID)
}

// Unblock lifts a block on userID.
func (e *Engine) Unblock(ctx context.Context, userID string) error {
	return e.emitToUser(ctx, wire.EventSendUnblock, userID)
}

func (e *Engine) emitToUser(ctx context.Context, event, userID string) error {
	if userID == "" {
		return errors.New("missing user id")
	}
	return e.do(ctx, func() {
		e.out.Emit(event, wire.UserRef{FromID: e.self, ToID: userID})
	})
}

// Correlator hooks. All run on the loop.

func (e *Engine) onSendChanged(key chat.Key) {
	e.metrics.SetPending(e.ids.Pending())
	if key == e.thread.Open() {
		e.publishThread()
	}
}

func (e *Engine) onConfirmed(m chat.Message) {
	if m.ServerID != "" && m.ClientID != "" {
		e.previews.Rebind(m.Conversation, m.ClientID, m.ServerID)
	}
	if e.cache != nil && m.ServerID != "" {
		if err := e.cache.CacheMessages(m.Conversation, []chat.Message{m}); err != nil {
			e.logger.Warn("failed to cache message", zap.Error(err))
		}
	}
}

func (e *Engine) onFailed(m chat.Message) {
	e.logger.Info("send failed, retry available", zap.String("client_id", m.ClientID))
}

func (e *Engine) onBlocked(m chat.Message, notice chat.Message) {
	e.offerToast(notify.Event{
		Category:     notify.CategorySystem,
		Conversation: m.Conversation,
		Title:        "Message not delivered",
		Body:         notice.Payload,
	})
}
