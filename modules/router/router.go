// Package router dispatches inbound client events to a recipient-filtered
// broadcast and a durable mutation. Delivery to live peers is
// at-least-once: the broadcast fires first and is never retracted when the
// persistence write that follows fails.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/social-realtime-demo/domain/social"
	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

// Store is the durable side of message events. Every call is one attempt;
// there is no retry policy.
type Store interface {
	CreateMessage(ctx context.Context, msg *social.Message) error
	DeleteMessages(ctx context.Context, chatID string, ids []string) error
	EditMessage(ctx context.Context, messageID, text string, editedAt time.Time) error
}

// Authorizer decides whether a sender may address a chat and recipient
// set. The wire protocol trusts the sender's declared lists; this hook
// exists so a stricter deployment can reject them without touching the
// router.
type Authorizer interface {
	AuthorizeSend(ctx context.Context, senderID, chatID string, recipients []string) error
}

// AllowAll is the default authorizer: the sender's declared recipient and
// participant lists are taken at face value, as the wire protocol does.
type AllowAll struct{}

// AuthorizeSend always permits.
func (AllowAll) AuthorizeSend(context.Context, string, string, []string) error { return nil }

// Emitter mirrors routed events onto the process event bus so other
// modules and the HTTP layer can observe them. All methods are
// fire-and-forget.
type Emitter interface {
	MessageAdded(events.MessageAddedEvent)
	MessageDeleted(events.MessageDeletedEvent)
	MessageEdited(events.MessageEditedEvent)
	MessageForwarded(events.MessageForwardedEvent)
	ChatProcessChanged(events.ChatProcessEvent)
}

// Router routes one inbound frame at a time for a connection. Handlers
// are total: a malformed or unknown frame is dropped and the connection
// stays open.
type Router struct {
	reg    *registry.Registry
	store  Store
	auth   Authorizer
	emit   Emitter
	onBind func(ctx context.Context, c *registry.Conn)
	logger *slog.Logger
}

// New creates a router over the registry and store.
func New(reg *registry.Registry, store Store) *Router {
	return &Router{
		reg:    reg,
		store:  store,
		auth:   AllowAll{},
		logger: slog.Default(),
	}
}

// SetAuthorizer replaces the default allow-all authorization hook.
func (r *Router) SetAuthorizer(auth Authorizer) {
	if auth != nil {
		r.auth = auth
	}
}

// SetEmitter installs the event-bus mirror.
func (r *Router) SetEmitter(emit Emitter) {
	r.emit = emit
}

// SetBindHandler installs the callback run after a GET_USER_ID claim
// binds a connection (wired to the presence notifier).
func (r *Router) SetBindHandler(fn func(ctx context.Context, c *registry.Conn)) {
	r.onBind = fn
}

// Dispatch routes one inbound frame. One explicit handler per type; types
// nobody handles are dropped.
func (r *Router) Dispatch(ctx context.Context, c *registry.Conn, frame events.Frame) {
	switch frame.Type {
	case events.TypeGetUserID:
		r.handleGetUserID(ctx, c, frame.Payload)
	case events.TypePing:
		c.Touch()
	case events.TypeAddMessage:
		r.handleAddMessage(ctx, c, frame.Payload)
	case events.TypeDeleteMessage:
		r.handleDeleteMessage(ctx, c, frame.Payload)
	case events.TypeEditMessage:
		r.handleEditMessage(ctx, c, frame.Payload)
	case events.TypeForwardMessage:
		r.handleForwardMessage(ctx, c, frame.Payload)
	case events.TypeChangeChatProcess:
		r.handleChangeChatProcess(ctx, c, frame.Payload)
	default:
		r.logger.Debug("dropping frame with unknown type", "type", frame.Type, "connID", c.ID())
	}
}

// handleGetUserID binds the connection to the claimed id. The claim is
// not verified against any credential; a connection can claim any user
// id. That weakness is part of the wire protocol this layer implements
// and is confined to this handler.
func (r *Router) handleGetUserID(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p GetUserIDPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ID == "" {
		r.logger.Debug("dropping malformed GET_USER_ID", "connID", c.ID(), "error", err)
		return
	}

	r.reg.Bind(c, p.ID)
	if r.onBind != nil {
		r.onBind(ctx, c)
	}
}

func (r *Router) handleAddMessage(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p AddMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug("dropping malformed ADD_MESSAGE", "connID", c.ID(), "error", err)
		return
	}
	if err := r.auth.AuthorizeSend(ctx, c.UserID(), p.Message.ChatID, p.Recipients); err != nil {
		r.logger.Warn("rejected ADD_MESSAGE", "connID", c.ID(), "error", err)
		return
	}

	if p.Message.Time.IsZero() {
		p.Message.Time = time.Now()
	}

	r.broadcast(p.Recipients, events.TypeAddMessage, p.Message)
	if r.emit != nil {
		r.emit.MessageAdded(events.MessageAddedEvent{Message: p.Message, Recipients: p.Recipients})
	}

	// Broadcast already went out; a failed write here leaves peers with a
	// message the store never saw. Logged, contained, not retried.
	if err := r.store.CreateMessage(ctx, &p.Message); err != nil {
		r.logger.Error("message persistence failed",
			"messageID", p.Message.ID, "chatID", p.Message.ChatID, "error", err)
	}
}

func (r *Router) handleDeleteMessage(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p DeleteMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug("dropping malformed DELETE_MESSAGE", "connID", c.ID(), "error", err)
		return
	}
	if err := r.auth.AuthorizeSend(ctx, c.UserID(), p.ChatID, p.Recipients); err != nil {
		r.logger.Warn("rejected DELETE_MESSAGE", "connID", c.ID(), "error", err)
		return
	}

	r.broadcast(p.Recipients, events.TypeDeleteMessage, deleteBroadcast{
		ChatID:   p.ChatID,
		Messages: p.Messages,
	})
	if r.emit != nil {
		r.emit.MessageDeleted(events.MessageDeletedEvent{
			ChatID:     p.ChatID,
			MessageIDs: p.Messages,
			Recipients: p.Recipients,
		})
	}

	if err := r.store.DeleteMessages(ctx, p.ChatID, p.Messages); err != nil {
		r.logger.Error("message deletion failed", "chatID", p.ChatID, "error", err)
	}
}

func (r *Router) handleEditMessage(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p EditMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug("dropping malformed EDIT_MESSAGE", "connID", c.ID(), "error", err)
		return
	}
	if err := r.auth.AuthorizeSend(ctx, c.UserID(), p.ChatID, p.Recipients); err != nil {
		r.logger.Warn("rejected EDIT_MESSAGE", "connID", c.ID(), "error", err)
		return
	}

	editedAt := time.Now()
	r.broadcast(p.Recipients, events.TypeEditMessage, editBroadcast{
		MessageID:  p.MessageID,
		ChatID:     p.ChatID,
		Text:       p.Text,
		IsEdited:   true,
		TimeEdited: editedAt.Format(time.RFC3339),
	})
	if r.emit != nil {
		r.emit.MessageEdited(events.MessageEditedEvent{
			MessageID:  p.MessageID,
			ChatID:     p.ChatID,
			Text:       p.Text,
			TimeEdited: editedAt,
			Recipients: p.Recipients,
		})
	}

	if err := r.store.EditMessage(ctx, p.MessageID, p.Text, editedAt); err != nil {
		r.logger.Error("message edit failed", "messageID", p.MessageID, "error", err)
	}
}

func (r *Router) handleForwardMessage(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p ForwardMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug("dropping malformed FORWARD_MESSAGE", "connID", c.ID(), "error", err)
		return
	}
	if p.Kind != events.ForwardSingle && p.Kind != events.ForwardMultiple {
		r.logger.Debug("dropping FORWARD_MESSAGE with unknown kind", "kind", p.Kind, "connID", c.ID())
		return
	}
	if err := r.auth.AuthorizeSend(ctx, c.UserID(), p.ChatID, p.Recipients); err != nil {
		r.logger.Warn("rejected FORWARD_MESSAGE", "connID", c.ID(), "error", err)
		return
	}

	sender := p.Sender
	if sender == "" {
		sender = c.UserID()
	}

	now := time.Now()
	forwarded := make([]social.Message, 0, len(p.Messages))
	for _, orig := range p.Messages {
		forwarded = append(forwarded, social.Message{
			ID:               uuid.New().String(),
			ChatID:           p.ChatID,
			Sender:           sender,
			Text:             orig.Text,
			Time:             now,
			RepliedToMessage: orig.ID,
			IsForwarded:      true,
		})
	}

	r.broadcast(p.Recipients, events.TypeForwardMessage, forwardBroadcast{
		Kind:     p.Kind,
		ChatID:   p.ChatID,
		Messages: forwarded,
	})
	if r.emit != nil {
		r.emit.MessageForwarded(events.MessageForwardedEvent{
			Kind:       p.Kind,
			ChatID:     p.ChatID,
			Messages:   forwarded,
			Recipients: p.Recipients,
		})
	}

	// Every creation is attempted even when an earlier one fails; there is
	// no transaction or rollback across forwarded items.
	for i := range forwarded {
		if err := r.store.CreateMessage(ctx, &forwarded[i]); err != nil {
			r.logger.Error("forwarded message persistence failed",
				"messageID", forwarded[i].ID, "chatID", p.ChatID, "error", err)
		}
	}
}

func (r *Router) handleChangeChatProcess(ctx context.Context, c *registry.Conn, payload json.RawMessage) {
	var p ChangeChatProcessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Debug("dropping malformed CHANGE_CHAT_PROCESS", "connID", c.ID(), "error", err)
		return
	}

	// Ephemeral: relay the payload to the declared participants as-is,
	// persist nothing.
	frame, err := json.Marshal(events.Frame{Type: events.TypeChangeChatProcess, Payload: payload})
	if err != nil {
		return
	}
	r.reg.SendToRecipients(p.Participants, frame)

	if r.emit != nil {
		r.emit.ChatProcessChanged(events.ChatProcessEvent{
			ChatID:       p.ChatID,
			Sender:       p.Sender,
			Process:      string(p.Process),
			Participants: p.Participants,
		})
	}
}

func (r *Router) broadcast(recipients []string, frameType string, payload any) {
	frame, err := events.Marshal(frameType, payload)
	if err != nil {
		r.logger.Error("failed to marshal broadcast frame", "type", frameType, "error", err)
		return
	}
	r.reg.SendToRecipients(recipients, frame)
}
