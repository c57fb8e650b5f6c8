package chatstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/social-realtime-demo/domain/social"
)

// errNotStarted guards delegating calls made before Start opened the
// database. Registration order in main.go makes this unreachable in
// practice.
var errNotStarted = errors.New("chatstore: module not started")

// Module owns the database connection for the chat store.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new chat store module. DB_PATH overrides the
// database location.
func NewModule() *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "social.db"
	}
	return &Module{dbPath: dbPath}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chatstore"
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	log.Printf("[chatstore] Connecting to SQLite database: %s", m.dbPath)

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&social.User{},
		&social.Chat{},
		&social.ChatParticipant{},
		&social.Message{},
		&social.RefreshToken{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.db = db
	m.repo = NewRepository(db)
	log.Println("[chatstore] Module started - migrations applied")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Println("[chatstore] Module stopped")
	return nil
}

// Health performs a database ping.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// Repo returns the repository. Nil until Start has run.
func (m *Module) Repo() *Repository {
	return m.repo
}

// The delegating methods below let other modules hold the store module as
// a dependency at construction time, before Start has opened the database.

// CreateMessage implements the router's store dependency.
func (m *Module) CreateMessage(ctx context.Context, msg *social.Message) error {
	if m.repo == nil {
		return errNotStarted
	}
	return m.repo.CreateMessage(ctx, msg)
}

// DeleteMessages implements the router's store dependency.
func (m *Module) DeleteMessages(ctx context.Context, chatID string, ids []string) error {
	if m.repo == nil {
		return errNotStarted
	}
	return m.repo.DeleteMessages(ctx, chatID, ids)
}

// EditMessage implements the router's store dependency.
func (m *Module) EditMessage(ctx context.Context, messageID, text string, editedAt time.Time) error {
	if m.repo == nil {
		return errNotStarted
	}
	return m.repo.EditMessage(ctx, messageID, text, editedAt)
}

// ChatParticipants implements the router's authorization dependency.
func (m *Module) ChatParticipants(ctx context.Context, chatID string) ([]string, error) {
	if m.repo == nil {
		return nil, errNotStarted
	}
	return m.repo.ChatParticipants(ctx, chatID)
}

// UpdateLastSeen implements the presence notifier's store dependency.
func (m *Module) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	if m.repo == nil {
		return errNotStarted
	}
	return m.repo.UpdateLastSeen(ctx, userID, lastSeen)
}

// ResolveRefreshToken implements identity.TokenResolver.
func (m *Module) ResolveRefreshToken(ctx context.Context, tokenID string) (string, error) {
	if m.repo == nil {
		return "", errNotStarted
	}
	return m.repo.ResolveRefreshToken(ctx, tokenID)
}
