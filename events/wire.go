package events

import "encoding/json"

// Frame is the JSON envelope carried on the client WebSocket in both
// directions: { "type": <EventType>, "payload": <event-specific> }.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound frame types sent by clients.
const (
	TypeGetUserID         = "GET_USER_ID"
	TypePing              = "PING"
	TypeAddMessage        = "ADD_MESSAGE"
	TypeDeleteMessage     = "DELETE_MESSAGE"
	TypeEditMessage       = "EDIT_MESSAGE"
	TypeForwardMessage    = "FORWARD_MESSAGE"
	TypeChangeChatProcess = "CHANGE_CHAT_PROCESS"
)

// Forward sub-kinds carried inside a FORWARD_MESSAGE payload.
const (
	ForwardSingle   = "SINGLE_FORWARDED"
	ForwardMultiple = "MULTIPLE_FORWARDED"
)

// Outbound frame types pushed by the server.
const (
	TypeConnectedUserID        = "CONNECTED_USER_ID"
	TypeOnlineClients          = "ONLINE_CLIENTS"
	TypeOnlineStatus           = "ONLINE_STATUS"
	TypeNewChatCreated         = "NEW_CHAT_CREATED"
	TypeFriendRequest          = "FRIEND_REQUEST"
	TypeFriendRequestAccepted  = "FRIEND_REQUEST_ACCEPTED"
	TypeFriendRequestDeclined  = "FRIEND_REQUEST_DECLINED"
	TypeFriendRequestCancelled = "FRIEND_REQUEST_CANCELLED"
	TypeFriendRemoved          = "FRIEND_REMOVED"
	TypeNewPostAdded           = "NEW_POST_ADDED"
	TypeDeletePost             = "DELETE_POST"
	TypePostUpdated            = "POST_UPDATED"
)

// Marshal encodes an outbound frame with the given payload. A marshal
// failure here means a programming error in the payload type, so callers
// treat a nil result as "drop the frame".
func Marshal(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: frameType, Payload: raw})
}
