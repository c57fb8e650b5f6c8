package presence

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

// cacheTTL bounds staleness of presence records left behind by an unclean
// process exit.
const cacheTTL = 24 * time.Hour

// Module wires the presence notifier to the event bus and the Redis
// cache.
type Module struct {
	notifier *Notifier
	eventBus mono.EventBus
	client   *redis.Client
	addr     string
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventBusAwareModule = (*Module)(nil)
var _ mono.EventEmitterModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the presence module. REDIS_ADDR overrides the cache
// address.
func NewModule(reg *registry.Registry, store LastSeenStore) *Module {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return &Module{
		notifier: NewNotifier(reg, store),
		addr:     addr,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "presence"
}

// Notifier returns the presence notifier for the websocket server to use.
func (m *Module) Notifier() *Notifier {
	return m.notifier
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
	m.notifier.SetPublisher(func(event events.PresenceChangedEvent) {
		if err := events.PresenceChangedV1.Publish(bus, event, nil); err != nil {
			slog.Warn("Failed to publish PresenceChanged event", "error", err)
		}
	})
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PresenceChangedV1.ToBase(),
	}
}

// Start connects the Redis presence cache. The cache is best-effort: an
// unreachable Redis logs a warning and presence runs without it.
func (m *Module) Start(_ context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:         m.addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[presence] Redis unavailable at %s, running without presence cache: %v", m.addr, err)
		_ = client.Close()
	} else {
		m.client = client
		m.notifier.SetCache(NewCache(client, "presence:", cacheTTL))
		log.Printf("[presence] Connected to Redis at %s", m.addr)
	}

	log.Println("[presence] Module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[presence] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[presence] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{"cache": m.client != nil}
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: true, // cache is optional
				Message: "cache unreachable",
				Details: details,
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
