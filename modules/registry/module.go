package registry

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-monolith/mono"
)

// defaultHeartbeatInterval is the sweep period. A connection that shows no
// liveness between two sweeps is evicted, so the registry never retains a
// dead connection for more than one interval.
const defaultHeartbeatInterval = 30 * time.Second

// Module owns the connection registry and its heartbeat sweeper.
type Module struct {
	reg      *Registry
	interval time.Duration
	onEvict  func(*Conn)
	cancel   context.CancelFunc
	done     chan struct{}
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the registry module. HEARTBEAT_INTERVAL (seconds)
// overrides the sweep period.
func NewModule() *Module {
	interval := defaultHeartbeatInterval
	if v := os.Getenv("HEARTBEAT_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}
	return &Module{
		reg:      New(),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "registry"
}

// Registry returns the connection registry for other modules to use.
func (m *Module) Registry() *Registry {
	return m.reg
}

// SetEvictHandler installs the disconnect cleanup run for connections the
// sweeper evicts (wired to the presence notifier in main.go). Without a
// handler, evicted connections are only removed.
func (m *Module) SetEvictHandler(fn func(*Conn)) {
	m.onEvict = fn
}

// Start launches the heartbeat sweeper.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.sweep(ctx)
	log.Printf("[registry] Module started - heartbeat every %s", m.interval)
	return nil
}

// Stop halts the sweeper and closes every connection.
func (m *Module) Stop(_ context.Context) error {
	count := m.reg.Len()
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.reg.CloseAll()
	log.Printf("[registry] Module stopped - %d connections were open", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.reg.Len(),
			"bound":       m.reg.BoundLen(),
		},
	}
}

// sweep is the periodic liveness check. Connections that have not
// responded since the previous sweep are forcibly closed; live ones get
// the next ping.
func (m *Module) sweep(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.sweepOnce(now)
		}
	}
}

func (m *Module) sweepOnce(now time.Time) {
	lastSweep := now.Add(-m.interval)
	m.reg.ForEach(func(c *Conn) {
		if !c.RespondedSince(lastSweep) {
			log.Printf("[registry] Evicting unresponsive connection %s (user %q)", c.ID(), c.UserID())
			c.Close()
			if m.onEvict != nil {
				m.onEvict(c)
			} else {
				m.reg.Remove(c)
			}
			return
		}
		if err := c.Ping(now.Add(10 * time.Second)); err != nil {
			log.Printf("[registry] Ping failed for connection %s: %v", c.ID(), err)
		}
	})
}
