package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/ident"
	"github.com/matheus3301/chatsync/internal/notify"
	"github.com/matheus3301/chatsync/internal/outbox"
	"github.com/matheus3301/chatsync/internal/thread"
	"github.com/matheus3301/chatsync/internal/wire"
)

func (e *Engine) handleLive(evt bus.Event) {
	switch evt.Kind {
	case bus.KindLiveConnected:
		e.onConnected()
		return
	case bus.KindLiveDisconnected:
		if e.typing.SetOpen(e.thread.Open()) {
			e.publishTyping()
		}
		return
	}

	env, ok := evt.Payload.(wire.Envelope)
	if !ok {
		return
	}
	var err error
	switch env.Event {
	case wire.EventReceiveMessage:
		var m wire.Message
		if err = env.Bind(&m); err == nil {
			e.onMessage(m.ToChat(e.self, e.loc))
		}
	case wire.EventMessageSentAck, wire.EventReactionAck:
		var a wire.Ack
		if err = env.Bind(&a); err == nil {
			e.ids.OnAck(ident.AckFromWire(a))
		}
	case wire.EventReaction:
		var r wire.Reaction
		if err = env.Bind(&r); err == nil {
			e.onReaction(r)
		}
	case wire.EventTyping:
		var t wire.Typing
		if err = env.Bind(&t); err == nil && e.typing.Remote(string(t.SenderID), t.IsTyping) {
			e.publishTyping()
			e.publishThread()
		}
	case wire.EventFriendRequest:
		var f wire.Friend
		if err = env.Bind(&f); err == nil {
			e.onFriendRequest(f)
		}
	case wire.EventFriendAccepted:
		var f wire.Friend
		if err = env.Bind(&f); err == nil {
			e.onFriendAccepted(f)
		}
	case wire.EventFriendRejected:
		var f wire.Friend
		if err = env.Bind(&f); err == nil {
			e.dropRequest(string(f.FromID))
			e.dropRequest(string(f.ToID))
		}
	case wire.EventUserJoined:
		var u wire.UserJoined
		if err = env.Bind(&u); err == nil {
			e.onPresence(string(u.UserID), e.presence.OnJoined(string(u.UserID)))
		}
	case wire.EventUserOffline:
		var u wire.UserOffline
		if err = env.Bind(&u); err == nil {
			e.onPresence(string(u.UserID), e.presence.OnOffline(string(u.UserID)))
		}
	case wire.EventContactUpdated:
		var c wire.ContactUpdated
		if err = env.Bind(&c); err == nil {
			e.onContactUpdated(c.Data)
		}
	case wire.EventGroupCreated, wire.EventGroupUpdated:
		var g wire.Group
		if err = env.Bind(&g); err == nil {
			e.onGroup(g, env.Event == wire.EventGroupCreated)
		}
	case wire.EventContactsList:
		var users []wire.User
		if err = env.Bind(&users); err == nil {
			e.applyContacts(users)
		}
	case wire.EventConnected:
		e.logger.Debug("server hello")
	default:
		e.logger.Debug("unhandled live event", zap.String("event", env.Event))
	}
	if err != nil {
		e.logger.Warn("malformed live event", zap.String("event", env.Event), zap.Error(err))
	}
}

// onSendFailed fails a send or reaction whose frame never reached the server.
func (e *Engine) onSendFailed(f outbox.Failure) {
	var clientID string
	switch d := f.Frame.Data.(type) {
	case wire.SendMessage:
		clientID = d.ClientMessageID
	case wire.SendReaction:
		clientID = d.ClientMessageID
	default:
		return
	}
	if e.ids.Fail(clientID) {
		e.logger.Info("send failed before reaching the server",
			zap.String("client_id", clientID),
			zap.Error(f.Err),
		)
	}
}

func (e *Engine) onConnected() {
	e.goAsync(func(ctx context.Context) {
		if err := e.Bootstrap(ctx); err != nil {
			e.logger.Warn("bootstrap failed", zap.Error(err))
		}
	})
	// Reload the open conversation; replays merge idempotently.
	if key := e.thread.Open(); !key.IsZero() {
		e.fetchHistory(key, e.thread.Reload())
	}
}

// onMessage folds one pushed message into every component.
func (e *Engine) onMessage(m chat.Message) {
	if m.Conversation.IsZero() && m.GroupID == "" {
		// Peer unresolved; the preview list falls back to the open conversation.
		m.Conversation = e.thread.Open()
	}
	if e.typing.MessageFrom(m.SenderID) {
		e.publishTyping()
	}

	outcome, stored := e.thread.ApplyLive(m)
	switch outcome {
	case thread.Duplicate:
		return
	case thread.Dropped:
		return
	case thread.Resolved:
		if stored.ClientID != "" {
			e.ids.Settle(stored.ClientID)
			e.previews.Rebind(stored.Conversation, stored.ClientID, stored.ServerID)
		}
	}
	if outcome != thread.OutOfScope {
		e.publishThread()
	}

	if stored.ServerID != "" && e.cache != nil {
		if err := e.cache.CacheMessages(stored.Conversation, []chat.Message{stored}); err != nil {
			e.logger.Warn("failed to cache message", zap.Error(err))
		}
	}

	open := e.thread.Open()
	if !e.previews.OnMessage(stored, open) {
		return
	}
	e.publishPreviews()

	if outcome == thread.Resolved || outcome == thread.Updated {
		return
	}
	e.offerToast(notify.Event{
		Category:     notify.CategoryMessage,
		SenderID:     stored.SenderID,
		Conversation: stored.Conversation,
		Kind:         stored.Kind,
		Title:        e.senderName(stored),
		Body:         stored.PreviewText(),
		Self:         stored.SenderID == e.self,
	})
}

func (e *Engine) senderName(m chat.Message) string {
	name := ""
	if c, ok := e.contacts[m.SenderID]; ok {
		name = c.Name()
	} else if m.SenderID != "" {
		name = "User " + m.SenderID
	}
	if m.Conversation.Kind == chat.KindGroup {
		if g, ok := e.name(m.Conversation); ok {
			return name + " @ " + g
		}
	}
	return name
}

func (e *Engine) onReaction(r wire.Reaction) {
	if r.ClientMessageID != "" && string(r.UserID) == e.self {
		if e.ids.OnAck(ident.Ack{ClientID: r.ClientMessageID, Status: chat.StatusSent}) {
			return
		}
	}
	if _, ok := e.thread.SetReaction(string(r.MessageID), string(r.UserID), r.Reaction); ok {
		e.publishThread()
	}
}

func (e *Engine) onPresence(userID string, changed bool) {
	if !changed {
		return
	}
	if e.previews.SetPresence(userID, e.presence.Get(userID)) {
		e.publishPreviews()
	}
}

func (e *Engine) onFriendRequest(f wire.Friend) {
	from := string(f.FromID)
	if from == "" || from == e.self {
		return
	}
	e.dropRequest(from)
	e.requests = append(e.requests, chat.FriendRequest{
		FromID:   from,
		Username: f.Username,
		SentAt:   e.sched.Now(),
	})
	e.publishFriends()

	name := f.DisplayName
	if name == "" {
		name = f.Username
	}
	if name == "" {
		name = "User " + from
	}
	e.offerToast(notify.Event{
		Category: notify.CategoryFriend,
		Title:    "Friend request",
		Body:     name + " wants to be your friend",
	})
}

func (e *Engine) onFriendAccepted(f wire.Friend) {
	peer := string(f.FromID)
	if peer == e.self {
		peer = string(f.ToID)
	}
	e.dropRequest(peer)
	if peer != "" {
		name := f.DisplayName
		if name == "" {
			name = f.Username
		}
		if name == "" {
			name = "User " + peer
		}
		e.offerToast(notify.Event{
			Category: notify.CategoryFriend,
			Title:    "Friend request accepted",
			Body:     name + " is now your friend",
		})
	}
	e.RefreshContacts()
}

func (e *Engine) dropRequest(from string) {
	if from == "" {
		return
	}
	for i, r := range e.requests {
		if r.FromID == from {
			e.requests = append(e.requests[:i], e.requests[i+1:]...)
			e.publishFriends()
			return
		}
	}
}

func (e *Engine) onContactUpdated(u wire.User) {
	c := u.ToContact()
	if c.ID == "" {
		return
	}
	prev := e.contacts[c.ID]
	if c.Username == "" {
		c.Username = prev.Username
	}
	if c.DisplayName == "" {
		c.DisplayName = prev.DisplayName
	}
	if c.AvatarURL == "" {
		c.AvatarURL = prev.AvatarURL
	}
	e.contacts[c.ID] = c
	if e.cache != nil {
		if err := e.cache.SaveContacts([]chat.Contact{c}); err != nil {
			e.logger.Warn("failed to cache contact", zap.Error(err))
		}
	}
	changed := e.previews.Rename(chat.Direct(c.ID), c.Name(), c.AvatarURL)
	if c.Presence != chat.PresenceUnknown && e.presence.Set(c.ID, c.Presence) {
		changed = e.previews.SetPresence(c.ID, c.Presence) || changed
	}
	if changed {
		e.publishPreviews()
	}
	if e.thread.Open() == chat.Direct(c.ID) {
		e.publishThread()
	}
}

func (e *Engine) onGroup(g wire.Group, created bool) {
	id := string(g.ID)
	if id == "" {
		return
	}
	e.groups[id] = g
	key := chat.Group(id)
	changed := e.previews.Rename(key, g.Name, g.AvatarURL)
	if created {
		if _, ok := e.previews.Get(key); !ok {
			changed = e.previews.Upsert(chat.ConversationEntry{
				Key:         key,
				DisplayName: g.Name,
				AvatarURL:   g.AvatarURL,
			}) || changed
		}
	}
	if changed {
		e.publishPreviews()
	}
}

func (e *Engine) offerToast(ev notify.Event) {
	switch e.toasts.Offer(ev, e.thread.Open()) {
	case notify.Shown, notify.Merged:
		e.bus.Emit(bus.KindToastShown, ev)
	case notify.Native:
		e.bus.Emit(bus.KindNativeAlert, ev)
	}
}
