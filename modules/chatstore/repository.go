// Package chatstore is the durable store for chats, messages and user
// presence records. Each mutation is an independent write: there are no
// client-side transactions spanning the chat and message tables, so a
// partial failure leaves the store in whatever state the completed writes
// produced.
package chatstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/example/social-realtime-demo/domain/social"
)

var (
	// ErrChatNotFound is returned when a chat id resolves to nothing.
	ErrChatNotFound = errors.New("chat not found")
	// ErrMessageNotFound is returned when a message id resolves to nothing.
	ErrMessageNotFound = errors.New("message not found")
	// ErrUserNotFound is returned when a user id resolves to nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenNotFound is returned when a refresh-token id is not on record.
	ErrTokenNotFound = errors.New("refresh token not found")
)

// Repository provides access to chat storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateChat saves a new chat with its participant rows.
func (r *Repository) CreateChat(ctx context.Context, chat *social.Chat, participants []string) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	for _, userID := range participants {
		row := social.ChatParticipant{ChatID: chat.ID, UserID: userID}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to add participant %s: %w", userID, err)
		}
	}
	return nil
}

// GetChat retrieves a chat with its participants.
func (r *Repository) GetChat(ctx context.Context, chatID string) (*social.Chat, error) {
	var chat social.Chat
	err := r.db.WithContext(ctx).Preload("Participants").First(&chat, "id = ?", chatID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	return &chat, nil
}

// ChatParticipants returns the participant user ids of a chat.
func (r *Repository) ChatParticipants(ctx context.Context, chatID string) ([]string, error) {
	var rows []social.ChatParticipant
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.UserID)
	}
	return ids, nil
}

// CreateMessage appends a message to its chat. The message keeps the
// client-generated id as primary key. The target chat must exist; a
// missing chat aborts the mutation with ErrChatNotFound.
func (r *Repository) CreateMessage(ctx context.Context, msg *social.Message) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&social.Chat{}).Where("id = ?", msg.ChatID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check chat: %w", err)
	}
	if count == 0 {
		return ErrChatNotFound
	}

	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	// Append order within the chat. Two concurrent creates may race to the
	// same sequence number; consumers order by timestamp, which stays
	// authoritative.
	var maxSeq int64
	if err := r.db.WithContext(ctx).Model(&social.Message{}).
		Where("chat_id = ?", msg.ChatID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return fmt.Errorf("failed to compute message sequence: %w", err)
	}
	msg.Seq = maxSeq + 1

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (r *Repository) GetMessage(ctx context.Context, id string) (*social.Message, error) {
	var msg social.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

// ChatMessages returns a chat's messages in append order.
func (r *Repository) ChatMessages(ctx context.Context, chatID string) ([]social.Message, error) {
	var msgs []social.Message
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// DeleteMessages removes the listed message ids from a chat. Ids that do
// not exist (already deleted, or never created) are skipped silently.
func (r *Repository) DeleteMessages(ctx context.Context, chatID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND id IN ?", chatID, ids).
		Delete(&social.Message{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

// EditMessage updates a message's text and marks it edited. Editing a
// message that no longer exists finds nothing and is a silent no-op.
func (r *Repository) EditMessage(ctx context.Context, messageID, text string, editedAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&social.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"text":        text,
			"is_edited":   true,
			"time_edited": editedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// CreateUser saves a user record.
func (r *Repository) CreateUser(ctx context.Context, user *social.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (*social.User, error) {
	var user social.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// UpdateLastSeen records the disconnect timestamp on the user's durable
// record.
func (r *Repository) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	result := r.db.WithContext(ctx).Model(&social.User{}).
		Where("id = ?", userID).
		Update("last_seen_online", lastSeen)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResolveRefreshToken maps a refresh-token id to the user it was issued
// to. The authentication service owns these rows.
func (r *Repository) ResolveRefreshToken(ctx context.Context, tokenID string) (string, error) {
	var row social.RefreshToken
	if err := r.db.WithContext(ctx).First(&row, "token_id = ?", tokenID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to resolve refresh token: %w", err)
	}
	return row.UserID, nil
}
