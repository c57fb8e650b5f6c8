package router

import (
	"encoding/json"

	"github.com/example/social-realtime-demo/domain/social"
)

// GetUserIDPayload is the client's fallback identity claim. The id is
// taken at face value; see the trust note on handleGetUserID.
type GetUserIDPayload struct {
	ID string `json:"id"`
}

// AddMessagePayload carries a new message and its declared recipient set.
type AddMessagePayload struct {
	Message    social.Message `json:"message"`
	Recipients []string       `json:"recipients"`
}

// DeleteMessagePayload lists message ids to remove from a chat.
type DeleteMessagePayload struct {
	ChatID     string   `json:"chatId"`
	Messages   []string `json:"messages"`
	Recipients []string `json:"recipients"`
}

// EditMessagePayload carries a text replacement for one message.
type EditMessagePayload struct {
	MessageID  string   `json:"messageId"`
	ChatID     string   `json:"chatId"`
	Text       string   `json:"text"`
	Recipients []string `json:"recipients"`
}

// ForwardMessagePayload forwards one or more original messages into a
// target chat. Kind is SINGLE_FORWARDED or MULTIPLE_FORWARDED.
type ForwardMessagePayload struct {
	Kind       string           `json:"kind"`
	ChatID     string           `json:"chatId"`
	Sender     string           `json:"sender"`
	Messages   []social.Message `json:"messages"`
	Recipients []string         `json:"recipients"`
}

// ChangeChatProcessPayload is an ephemeral chat-state change (typing and
// the like). Process is relayed opaquely; nothing is persisted.
type ChangeChatProcessPayload struct {
	ChatID       string          `json:"chatId"`
	Sender       string          `json:"sender"`
	Process      json.RawMessage `json:"process"`
	Participants []string        `json:"participants"`
}

// deleteBroadcast is what recipients see for a DELETE_MESSAGE.
type deleteBroadcast struct {
	ChatID   string   `json:"chatId"`
	Messages []string `json:"messages"`
}

// editBroadcast is what recipients see for an EDIT_MESSAGE.
type editBroadcast struct {
	MessageID  string `json:"messageId"`
	ChatID     string `json:"chatId"`
	Text       string `json:"text"`
	IsEdited   bool   `json:"isEdited"`
	TimeEdited string `json:"timeEdited"`
}

// forwardBroadcast is what recipients see for a FORWARD_MESSAGE: the
// freshly created messages, not the originals.
type forwardBroadcast struct {
	Kind     string           `json:"kind"`
	ChatID   string           `json:"chatId"`
	Messages []social.Message `json:"messages"`
}
