package social

import "time"

// User is the durable user record. Only the fields this layer reads or
// writes are modeled; the full profile belongs to the account service.
type User struct {
	ID             string    `gorm:"primarykey;size:36" json:"id"`
	GivenName      string    `gorm:"size:100" json:"givenName"`
	FamilyName     string    `gorm:"size:100" json:"familyName"`
	ProfileID      string    `gorm:"size:100" json:"profileId"`
	LastSeenOnline time.Time `json:"lastSeenOnline"`
}

// TableName returns the table name for User model.
func (User) TableName() string {
	return "users"
}

// Chat is a conversation aggregate. Participants are stored as join rows;
// message ordering comes from the per-chat sequence on Message.
type Chat struct {
	ID           string            `gorm:"primarykey;size:36" json:"chatId"`
	CreatorID    string            `gorm:"size:36;not null" json:"creator"`
	CreatedAt    time.Time         `json:"createdAt"`
	Participants []ChatParticipant `gorm:"foreignKey:ChatID" json:"participants,omitempty"`
}

// TableName returns the table name for Chat model.
func (Chat) TableName() string {
	return "chats"
}

// ChatParticipant is one membership row of a chat.
type ChatParticipant struct {
	ChatID string `gorm:"primarykey;size:36" json:"chatId"`
	UserID string `gorm:"primarykey;size:36" json:"userId"`
}

// TableName returns the table name for ChatParticipant model.
func (ChatParticipant) TableName() string {
	return "chat_participants"
}

// Message is a durable chat message. The id is client-generated so the
// sender's optimistic local copy and the stored copy share identity.
// RepliedToMessage is a weak reference: it may dangle once the original
// message is deleted.
type Message struct {
	ID               string     `gorm:"primarykey;size:64" json:"messageId"`
	ChatID           string     `gorm:"size:36;index;not null" json:"chatId"`
	Sender           string     `gorm:"size:36;not null" json:"sender"`
	Text             string     `gorm:"size:5000;not null" json:"text"`
	Time             time.Time  `json:"time"`
	IsEdited         bool       `json:"isEdited"`
	TimeEdited       *time.Time `json:"timeEdited,omitempty"`
	RepliedToMessage string     `gorm:"size:64" json:"repliedToMessage,omitempty"`
	IsForwarded      bool       `json:"isForwarded"`
	Seq              int64      `gorm:"index" json:"-"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}

// RefreshToken maps a refresh-token id to the user it was issued to. The
// authentication service writes these rows; this layer only reads them when
// resolving a connection whose access token has expired.
type RefreshToken struct {
	TokenID   string    `gorm:"primarykey;size:36" json:"tokenId"`
	UserID    string    `gorm:"size:36;not null" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for RefreshToken model.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
