// Package notifier consumes notification events published elsewhere in
// the process (chat creation, friend-graph changes, post lifecycle) and
// pushes them to the online recipients' sockets.
package notifier

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

// Module bridges the process event bus to connected sockets.
type Module struct {
	reg    *registry.Registry
	logger *slog.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the notifier on top of the shared connection registry.
func NewModule(reg *registry.Registry) *Module {
	return &Module{
		reg:    reg,
		logger: slog.Default(),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notifier"
}

// Start logs readiness; all work happens in event handlers.
func (m *Module) Start(_ context.Context) error {
	log.Println("[notifier] Module started - fanning out bus notifications")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[notifier] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(reg mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		reg, events.ChatCreatedV1, m.handleChatCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		reg, events.FriendNotificationV1, m.handleFriendNotification, m,
	); err != nil {
		return fmt.Errorf("failed to register FriendNotification consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		reg, events.PostNotificationV1, m.handlePostNotification, m,
	); err != nil {
		return fmt.Errorf("failed to register PostNotification consumer: %w", err)
	}

	log.Println("[notifier] Registered event consumers: ChatCreated, FriendNotification, PostNotification")
	return nil
}

// Event handlers

func (m *Module) handleChatCreated(_ context.Context, event events.ChatCreatedEvent, _ *mono.Msg) error {
	m.logger.Info("Pushing new chat to participants", "chatID", event.Chat.ID, "recipients", len(event.Recipients))
	return m.push(events.TypeNewChatCreated, event.Chat, event.Recipients)
}

func (m *Module) handleFriendNotification(_ context.Context, event events.FriendNotificationEvent, _ *mono.Msg) error {
	switch event.FrameType {
	case events.TypeFriendRequest,
		events.TypeFriendRequestAccepted,
		events.TypeFriendRequestDeclined,
		events.TypeFriendRequestCancelled,
		events.TypeFriendRemoved:
	default:
		m.logger.Warn("Dropping friend notification with unknown frame type", "frameType", event.FrameType)
		return nil
	}

	return m.push(event.FrameType, friendFrame{ID: event.FromUserID}, event.Recipients)
}

func (m *Module) handlePostNotification(_ context.Context, event events.PostNotificationEvent, _ *mono.Msg) error {
	switch event.FrameType {
	case events.TypeNewPostAdded, events.TypeDeletePost, events.TypePostUpdated:
	default:
		m.logger.Warn("Dropping post notification with unknown frame type", "frameType", event.FrameType)
		return nil
	}

	return m.push(event.FrameType, postFrame{PostID: event.PostID, AuthorID: event.AuthorID}, event.Recipients)
}

// push marshals one outbound frame and delivers it to every online
// recipient. Offline recipients are skipped without error; delivery is
// best effort.
func (m *Module) push(frameType string, payload any, recipients []string) error {
	frame, err := events.Marshal(frameType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s frame: %w", frameType, err)
	}
	m.reg.SendToRecipients(recipients, frame)
	return nil
}

// friendFrame is the payload of the FRIEND_* outbound frames: the user
// on the other side of the relationship change.
type friendFrame struct {
	ID string `json:"id"`
}

// postFrame is the payload of the post lifecycle outbound frames.
type postFrame struct {
	PostID   string `json:"postId"`
	AuthorID string `json:"authorId"`
}
