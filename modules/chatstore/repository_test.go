package chatstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/social-realtime-demo/domain/social"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&social.User{},
		&social.Chat{},
		&social.ChatParticipant{},
		&social.Message{},
		&social.RefreshToken{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func seedChat(t *testing.T, repo *Repository, chatID string, participants ...string) {
	t.Helper()
	chat := &social.Chat{ID: chatID, CreatorID: participants[0]}
	if err := repo.CreateChat(context.Background(), chat, participants); err != nil {
		t.Fatalf("failed to seed chat: %v", err)
	}
}

func TestRepository_CreateMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	seedChat(t, repo, "c1", "alice", "bob")

	msg := &social.Message{
		ID:     "m1",
		ChatID: "c1",
		Sender: "alice",
		Text:   "hi",
	}
	if err := repo.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	msgs, err := repo.ChatMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ChatMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("ChatMessages() returned %d messages, want 1", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[0].Text != "hi" || msgs[0].Sender != "alice" {
		t.Errorf("stored message = %+v, want id m1, text hi, sender alice", msgs[0])
	}
	if msgs[0].Time.IsZero() {
		t.Error("CreateMessage() should default the send timestamp")
	}
}

func TestRepository_CreateMessageChatAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	msg := &social.Message{ID: "m1", ChatID: "missing", Sender: "alice", Text: "hi"}
	if err := repo.CreateMessage(ctx, msg); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("CreateMessage() error = %v, want ErrChatNotFound", err)
	}

	if _, err := repo.GetMessage(ctx, "m1"); !errors.Is(err, ErrMessageNotFound) {
		t.Error("aborted mutation must not create the message")
	}
}

func TestRepository_MessageAppendOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	seedChat(t, repo, "c1", "alice", "bob")

	ids := []string{"m1", "m2", "m3"}
	for _, id := range ids {
		msg := &social.Message{ID: id, ChatID: "c1", Sender: "alice", Text: "t-" + id}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage(%s) error = %v", id, err)
		}
	}

	msgs, err := repo.ChatMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ChatMessages() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("ChatMessages() returned %d messages, want 3", len(msgs))
	}
	for i, id := range ids {
		if msgs[i].ID != id {
			t.Errorf("message %d = %s, want %s (append order)", i, msgs[i].ID, id)
		}
	}
}

func TestRepository_DeleteMessages(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	seedChat(t, repo, "c1", "alice", "bob")

	for _, id := range []string{"m1", "m2"} {
		msg := &social.Message{ID: id, ChatID: "c1", Sender: "alice", Text: "x"}
		if err := repo.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage(%s) error = %v", id, err)
		}
	}

	if err := repo.DeleteMessages(ctx, "c1", []string{"m1"}); err != nil {
		t.Fatalf("DeleteMessages() error = %v", err)
	}

	msgs, err := repo.ChatMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ChatMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Errorf("ChatMessages() = %v, want only m2", msgs)
	}

	// Deleting an id that is already gone is a no-op, not an error.
	if err := repo.DeleteMessages(ctx, "c1", []string{"m1", "never-existed"}); err != nil {
		t.Errorf("DeleteMessages() on deleted ids error = %v, want nil", err)
	}

	msgs, err = repo.ChatMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ChatMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("idempotent delete changed state: %d messages, want 1", len(msgs))
	}
}

func TestRepository_EditMessage(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	seedChat(t, repo, "c1", "alice", "bob")

	msg := &social.Message{ID: "m1", ChatID: "c1", Sender: "alice", Text: "before"}
	if err := repo.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}

	editedAt := time.Now()
	if err := repo.EditMessage(ctx, "m1", "after", editedAt); err != nil {
		t.Fatalf("EditMessage() error = %v", err)
	}

	got, err := repo.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessage() error = %v", err)
	}
	if got.Text != "after" {
		t.Errorf("Text = %q, want %q", got.Text, "after")
	}
	if !got.IsEdited {
		t.Error("IsEdited should be true after edit")
	}
	if got.TimeEdited == nil {
		t.Error("TimeEdited should be set after edit")
	}

	// Editing a missing message is a silent no-op.
	if err := repo.EditMessage(ctx, "missing", "text", time.Now()); err != nil {
		t.Errorf("EditMessage() on missing id error = %v, want nil", err)
	}
}

func TestRepository_UpdateLastSeen(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	if err := repo.CreateUser(ctx, &social.User{ID: "alice", GivenName: "Alice"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	lastSeen := time.Now().Truncate(time.Second)
	if err := repo.UpdateLastSeen(ctx, "alice", lastSeen); err != nil {
		t.Fatalf("UpdateLastSeen() error = %v", err)
	}

	user, err := repo.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !user.LastSeenOnline.Equal(lastSeen) {
		t.Errorf("LastSeenOnline = %v, want %v", user.LastSeenOnline, lastSeen)
	}

	if err := repo.UpdateLastSeen(ctx, "nobody", lastSeen); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateLastSeen() for unknown user error = %v, want ErrUserNotFound", err)
	}
}

func TestRepository_ResolveRefreshToken(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewRepository(db)

	row := social.RefreshToken{TokenID: "tok-1", UserID: "alice"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed refresh token: %v", err)
	}

	userID, err := repo.ResolveRefreshToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("ResolveRefreshToken() error = %v", err)
	}
	if userID != "alice" {
		t.Errorf("ResolveRefreshToken() = %q, want %q", userID, "alice")
	}

	if _, err := repo.ResolveRefreshToken(ctx, "tok-2"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("ResolveRefreshToken() error = %v, want ErrTokenNotFound", err)
	}
}

func TestRepository_ChatParticipants(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))
	seedChat(t, repo, "c1", "alice", "bob")

	got, err := repo.ChatParticipants(ctx, "c1")
	if err != nil {
		t.Fatalf("ChatParticipants() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ChatParticipants() = %v, want 2 ids", got)
	}
}
