// Package events defines the wire frames exchanged with clients and the
// typed bus events that cross module boundaries. The HTTP/CRUD layer
// publishes the notification events (ChatCreated, FriendNotification,
// PostNotification) on the same bus; the notifier module fans them out to
// connected sockets.
package events

import (
	"time"

	"github.com/example/social-realtime-demo/domain/social"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessageAddedEvent is emitted when a client sends a new chat message.
type MessageAddedEvent struct {
	Message    social.Message `json:"message"`
	Recipients []string       `json:"recipients"`
}

// MessageDeletedEvent is emitted when a client deletes messages from a chat.
type MessageDeletedEvent struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messages"`
	Recipients []string `json:"recipients"`
}

// MessageEditedEvent is emitted when a client edits a message text.
type MessageEditedEvent struct {
	MessageID  string    `json:"messageId"`
	ChatID     string    `json:"chatId"`
	Text       string    `json:"text"`
	TimeEdited time.Time `json:"timeEdited"`
	Recipients []string  `json:"recipients"`
}

// MessageForwardedEvent is emitted when a client forwards one or more
// messages into a chat.
type MessageForwardedEvent struct {
	Kind       string           `json:"kind"` // SINGLE_FORWARDED or MULTIPLE_FORWARDED
	ChatID     string           `json:"chatId"`
	Messages   []social.Message `json:"messages"`
	Recipients []string         `json:"recipients"`
}

// ChatProcessEvent is emitted for ephemeral chat-state changes such as
// typing indicators. Nothing is persisted for it.
type ChatProcessEvent struct {
	ChatID       string   `json:"chatId"`
	Sender       string   `json:"sender"`
	Process      string   `json:"process"`
	Participants []string `json:"participants"`
}

// PresenceChangedEvent is emitted when a user goes online or offline.
type PresenceChangedEvent struct {
	UserID         string     `json:"id"`
	IsOnline       bool       `json:"isOnline"`
	LastSeenOnline *time.Time `json:"lastSeenOnline,omitempty"`
}

// ChatCreatedEvent is published by the HTTP layer when a chat is created;
// the populated chat is pushed to every online participant.
type ChatCreatedEvent struct {
	Chat       social.Chat `json:"chat"`
	Recipients []string    `json:"recipients"`
}

// FriendNotificationEvent covers the friend-graph lifecycle. FrameType is
// one of the FRIEND_* outbound frame types.
type FriendNotificationEvent struct {
	FrameType  string   `json:"frameType"`
	FromUserID string   `json:"fromUserId"`
	Recipients []string `json:"recipients"`
}

// PostNotificationEvent covers post lifecycle pushes. FrameType is one of
// NEW_POST_ADDED, DELETE_POST or POST_UPDATED.
type PostNotificationEvent struct {
	FrameType  string   `json:"frameType"`
	PostID     string   `json:"postId"`
	AuthorID   string   `json:"authorId"`
	Recipients []string `json:"recipients"`
}

// Event definitions for the realtime domain.
var (
	MessageAddedV1 = helper.EventDefinition[MessageAddedEvent](
		"realtime",
		"MessageAdded",
		"v1",
	)

	MessageDeletedV1 = helper.EventDefinition[MessageDeletedEvent](
		"realtime",
		"MessageDeleted",
		"v1",
	)

	MessageEditedV1 = helper.EventDefinition[MessageEditedEvent](
		"realtime",
		"MessageEdited",
		"v1",
	)

	MessageForwardedV1 = helper.EventDefinition[MessageForwardedEvent](
		"realtime",
		"MessageForwarded",
		"v1",
	)

	ChatProcessV1 = helper.EventDefinition[ChatProcessEvent](
		"realtime",
		"ChatProcessChanged",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"realtime",
		"PresenceChanged",
		"v1",
	)

	ChatCreatedV1 = helper.EventDefinition[ChatCreatedEvent](
		"realtime",
		"ChatCreated",
		"v1",
	)

	FriendNotificationV1 = helper.EventDefinition[FriendNotificationEvent](
		"realtime",
		"FriendNotification",
		"v1",
	)

	PostNotificationV1 = helper.EventDefinition[PostNotificationEvent](
		"realtime",
		"PostNotification",
		"v1",
	)
)
