package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/chat"
	"github.com/matheus3301/chatsync/internal/rest"
	"github.com/matheus3301/chatsync/internal/status"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
)

// hydrate restores the last known state from the cache. It runs before the
// loop starts.
func (e *Engine) hydrate() {
	if e.cache == nil {
		return
	}
	if e.self == "" {
		if id, err := e.cache.GetState(store.StateUserID); err == nil && id != "" {
			e.setSelf(id)
		}
	}
	if contacts, err := e.cache.LoadContacts(); err != nil {
		e.logger.Warn("failed to load cached contacts", zap.Error(err))
	} else {
		for _, c := range contacts {
			e.contacts[c.ID] = c
		}
	}
	if err := e.presence.Hydrate(); err != nil {
		e.logger.Warn("failed to load cached presence", zap.Error(err))
	}
	entries, err := e.cache.LoadConversations()
	if err != nil {
		e.logger.Warn("failed to load cached conversations", zap.Error(err))
		return
	}
	e.previews.Load(entries)
	e.logger.Info("hydrated from cache",
		zap.Int("conversations", len(entries)),
		zap.Int("contacts", len(e.contacts)),
	)
}

// Bootstrap resolves the current user, joins the user room and loads the
// conversation list, groups, friends and friend requests. Failures after
// the user is known leave the engine Degraded rather than failing.
func (e *Engine) Bootstrap(ctx context.Context) error {
	var gen uint64
	if err := e.do(ctx, func() {
		e.bootstrap++
		gen = e.bootstrap
	}); err != nil {
		return err
	}

	me, err := e.api.Me(ctx)
	if err != nil {
		if errors.Is(err, rest.ErrUnauthorized) {
			e.logger.Error("token rejected")
		}
		e.transition(status.Degraded)
		return err
	}

	var (
		summaries []wire.ConversationSummary
		groups    []wire.Group
		friends   []wire.User
		requests  []wire.FriendRequest
		errs      []error
	)
	if summaries, err = e.api.Conversations(ctx); err != nil {
		errs = append(errs, err)
	}
	if groups, err = e.api.Groups(ctx); err != nil {
		errs = append(errs, err)
	}
	if friends, err = e.api.Friends(ctx); err != nil {
		errs = append(errs, err)
	}
	if requests, err = e.api.FriendRequests(ctx); err != nil {
		errs = append(errs, err)
	}

	err = e.do(ctx, func() {
		if gen != e.bootstrap {
			e.logger.Debug("discarding stale bootstrap")
			return
		}
		e.adoptUser(me)
		e.out.Emit(wire.EventJoinUserRoom, wire.JoinRoom{UserID: e.self})
		e.presence.MarkSelfOnline()

		for _, g := range groups {
			e.groups[string(g.ID)] = g
		}
		if friends != nil {
			e.applyContacts(friends)
		}
		if requests != nil {
			e.requests = e.requests[:0]
			for _, r := range requests {
				e.requests = append(e.requests, e.friendRequest(r))
			}
			e.publishFriends()
		}
		if summaries != nil {
			entries := make([]chat.ConversationEntry, 0, len(summaries))
			for _, s := range summaries {
				if entry, ok := s.ToEntry(e.loc); ok {
					if entry.Key.Kind == chat.KindDirect {
						entry.Presence = e.presence.Get(entry.Key.ID)
					}
					entries = append(entries, entry)
				}
			}
			e.previews.Load(entries)
			e.persistPreviews()
		}
		e.publishPreviews()
	})
	if err != nil {
		return err
	}

	if len(errs) > 0 {
		e.logger.Warn("bootstrap incomplete", zap.Error(errors.Join(errs...)))
		e.transition(status.Degraded)
		return errors.Join(errs...)
	}
	e.transition(status.Ready)
	if err := e.do(ctx, e.recordBootstrap); err != nil {
		return err
	}
	e.logger.Info("bootstrap complete",
		zap.String("user_id", string(me.ID)),
		zap.Int("conversations", len(summaries)),
		zap.Int("friends", len(friends)),
	)
	return nil
}

// recordBootstrap stores the time of the last complete bootstrap.
func (e *Engine) recordBootstrap() {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetState(store.StateLastBootstrap, time.Now().UTC().Format(time.RFC3339)); err != nil {
		e.logger.Warn("failed to save bootstrap time", zap.Error(err))
	}
}

// adoptUser installs the authenticated user. A different user than the one
// cached wipes the cache.
func (e *Engine) adoptUser(me wire.User) {
	id := string(me.ID)
	if id == "" {
		return
	}
	if e.cache != nil {
		prev, _ := e.cache.GetState(store.StateUserID)
		if prev != "" && prev != id {
			e.logger.Info("user changed, resetting cache", zap.String("previous", prev), zap.String("user_id", id))
			if err := e.cache.Reset(); err != nil {
				e.logger.Warn("failed to reset cache", zap.Error(err))
			}
			e.previews.Load(nil)
			clear(e.contacts)
		}
		if err := e.cache.SetState(store.StateUserID, id); err != nil {
			e.logger.Warn("failed to save user id", zap.Error(err))
		}
	}
	e.setSelf(id)
	self := me.ToContact()
	e.contacts[id] = self
}

// RefreshContacts asks the server for the contact list and refetches the
// friend list off-loop. It is called by the presence tracker on the loop.
func (e *Engine) RefreshContacts() {
	e.out.Emit(wire.EventRequestContact, nil)
	e.goAsync(func(ctx context.Context) {
		friends, err := e.api.Friends(ctx)
		e.post(func() {
			if err != nil {
				e.logger.Warn("contact refresh failed", zap.Error(err))
				e.presence.RefreshFailed()
				return
			}
			e.applyContacts(friends)
		})
	})
}

// applyContacts installs a friend list with presence annotations.
func (e *Engine) applyContacts(users []wire.User) {
	contacts := make([]chat.Contact, 0, len(users))
	for _, u := range users {
		c := u.ToContact()
		if c.ID == "" {
			continue
		}
		contacts = append(contacts, c)
		e.contacts[c.ID] = c
		if c.DisplayName != "" || c.Username != "" {
			e.previews.Rename(chat.Direct(c.ID), c.Name(), c.AvatarURL)
		}
	}
	for _, id := range e.presence.ApplyContacts(contacts) {
		e.previews.SetPresence(id, e.presence.Get(id))
	}
	if e.cache != nil {
		if err := e.cache.SaveContacts(contacts); err != nil {
			e.logger.Warn("failed to cache contacts", zap.Error(err))
		}
	}
	e.publishPreviews()
}

func (e *Engine) friendRequest(r wire.FriendRequest) chat.FriendRequest {
	fr := chat.FriendRequest{FromID: string(r.FromID), Username: r.Username}
	if fr.FromID == "" {
		fr.FromID = string(r.ID)
	}
	if ts, err := chat.ParseTimestamp(r.CreatedAt, e.loc); err == nil {
		fr.SentAt = ts
	}
	return fr
}

func (e *Engine) persistPreviews() {
	if e.cache == nil {
		return
	}
	if err := e.cache.SaveConversations(e.previews.Snapshot()); err != nil {
		e.logger.Warn("failed to cache conversations", zap.Error(err))
	}
}
