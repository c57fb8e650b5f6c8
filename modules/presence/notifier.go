// Package presence announces users going online and offline to every
// connected socket and records last-seen timestamps.
package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

// LastSeenStore is the durable side of a disconnect.
type LastSeenStore interface {
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error
}

// connectedFrame is the private hello sent to a freshly bound connection.
type connectedFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// onlineClientsFrame carries the full current online-id set.
type onlineClientsFrame struct {
	Type             string   `json:"type"`
	OnlineClientsIDs []string `json:"onlineClientsIds"`
}

// statusPayload is the ONLINE_STATUS broadcast payload.
type statusPayload struct {
	ID             string     `json:"id"`
	IsOnline       bool       `json:"isOnline"`
	LastSeenOnline *time.Time `json:"lastSeenOnline,omitempty"`
}

// Notifier fans presence changes out through the registry. Presence is
// public: every socket gets the broadcast, identity-bound or not.
type Notifier struct {
	reg     *registry.Registry
	store   LastSeenStore
	cache   *Cache // nil when Redis is unavailable
	publish func(events.PresenceChangedEvent)
	logger  *slog.Logger
}

// NewNotifier creates a presence notifier.
func NewNotifier(reg *registry.Registry, store LastSeenStore) *Notifier {
	return &Notifier{
		reg:    reg,
		store:  store,
		logger: slog.Default(),
	}
}

// SetCache installs the optional Redis presence cache.
func (n *Notifier) SetCache(cache *Cache) {
	n.cache = cache
}

// SetPublisher installs the bus mirror for presence events.
func (n *Notifier) SetPublisher(publish func(events.PresenceChangedEvent)) {
	n.publish = publish
}

// HandleBind runs after a connection has been bound to a user: the
// connection gets its own id and the current online set privately, then
// everyone else hears the user is online.
func (n *Notifier) HandleBind(ctx context.Context, c *registry.Conn) {
	userID := c.UserID()
	if userID == "" {
		return
	}

	if frame, err := json.Marshal(connectedFrame{Type: events.TypeConnectedUserID, ID: userID}); err == nil {
		c.Send(frame)
	}
	if frame, err := json.Marshal(onlineClientsFrame{
		Type:             events.TypeOnlineClients,
		OnlineClientsIDs: n.reg.OnlineIDs(),
	}); err == nil {
		c.Send(frame)
	}

	frame, err := events.Marshal(events.TypeOnlineStatus, statusPayload{ID: userID, IsOnline: true})
	if err != nil {
		n.logger.Error("failed to marshal presence frame", "error", err)
		return
	}
	n.reg.SendToAll(frame, c)

	if n.cache != nil {
		if err := n.cache.SetOnline(ctx, userID); err != nil {
			n.logger.Warn("presence cache write failed", "userID", userID, "error", err)
		}
	}
	if n.publish != nil {
		n.publish(events.PresenceChangedEvent{UserID: userID, IsOnline: true})
	}

	n.logger.Info("user online", "userID", userID, "connID", c.ID())
}

// HandleDisconnect runs the disconnect sequence: one offline broadcast,
// one last-seen write, then registry removal. Both the read loop and the
// heartbeat sweeper funnel here; the teardown guard keeps the side
// effects single-shot.
func (n *Notifier) HandleDisconnect(ctx context.Context, c *registry.Conn) {
	if !c.StartTeardown() {
		return
	}
	c.Close()

	userID := c.UserID()
	if userID != "" {
		lastSeen := time.Now()

		frame, err := events.Marshal(events.TypeOnlineStatus, statusPayload{
			ID:             userID,
			IsOnline:       false,
			LastSeenOnline: &lastSeen,
		})
		if err == nil {
			n.reg.SendToAll(frame, c)
		}

		// One attempt, no retry. A failed write is logged and the
		// broadcast that already went out stands.
		if err := n.store.UpdateLastSeen(ctx, userID, lastSeen); err != nil {
			n.logger.Error("failed to persist last seen", "userID", userID, "error", err)
		}
		if n.cache != nil {
			if err := n.cache.SetOffline(ctx, userID, lastSeen); err != nil {
				n.logger.Warn("presence cache write failed", "userID", userID, "error", err)
			}
		}
		if n.publish != nil {
			n.publish(events.PresenceChangedEvent{UserID: userID, IsOnline: false, LastSeenOnline: &lastSeen})
		}

		n.logger.Info("user offline", "userID", userID, "connID", c.ID())
	}

	n.reg.Remove(c)
}
