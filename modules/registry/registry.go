// Package registry holds the process-wide set of live client connections.
// It is the only shared mutable in-memory structure of the realtime layer;
// all mutation goes through Add, Remove and Bind.
package registry

import (
	"log/slog"
	"sync"
)

// Registry is the in-memory set of current connections, each optionally
// tagged with a bound user identity. Constructed once at process start and
// torn down at shutdown; never a package-level global.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	logger *slog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns:  make(map[string]*Conn),
		logger: slog.Default(),
	}
}

// Add registers a connection. Connections are keyed by their opaque handle,
// so one physical socket can never occupy two entries.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
}

// Remove drops a connection from the registry. Removing a connection that
// is already gone is a no-op.
func (r *Registry) Remove(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c.id)
}

// Bind attaches a user identity to a registered connection. Rebinding to a
// different user id overwrites the previous binding.
func (r *Registry) Bind(c *Conn, userID string) {
	c.setUserID(userID)
}

// Get looks up a connection by its opaque handle.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// ForEach visits every registered connection over a snapshot, so a
// connection removed mid-iteration cannot corrupt the walk.
func (r *Registry) ForEach(visit func(*Conn)) {
	r.mu.RLock()
	snapshot := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		snapshot = append(snapshot, c)
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		visit(c)
	}
}

// IsOnline reports whether any registered connection is bound to userID.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

// OnlineIDs returns the distinct bound user ids currently connected.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.conns))
	ids := make([]string, 0, len(r.conns))
	for _, c := range r.conns {
		id := c.UserID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// BoundLen returns the number of registered connections with an identity.
func (r *Registry) BoundLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conns {
		if c.UserID() != "" {
			n++
		}
	}
	return n
}

// SendToRecipients pushes a frame to every connection whose bound identity
// is in the declared recipient list. Connections that cannot keep up are
// closed; their read loops run the normal disconnect cleanup.
func (r *Registry) SendToRecipients(recipients []string, frame []byte) {
	if len(recipients) == 0 {
		return
	}
	want := make(map[string]bool, len(recipients))
	for _, id := range recipients {
		want[id] = true
	}

	r.ForEach(func(c *Conn) {
		id := c.UserID()
		if id == "" || !want[id] {
			return
		}
		if !c.Send(frame) {
			r.logger.Warn("dropping unresponsive connection", "connID", c.ID(), "userID", id)
			c.Close()
		}
	})
}

// SendToAll pushes a frame to every registered connection, bound or not,
// except the given one. Used for presence, which is public to all sockets.
func (r *Registry) SendToAll(frame []byte, except *Conn) {
	r.ForEach(func(c *Conn) {
		if except != nil && c.id == except.id {
			return
		}
		if !c.Send(frame) {
			r.logger.Warn("dropping unresponsive connection", "connID", c.ID(), "userID", c.UserID())
			c.Close()
		}
	})
}

// CloseAll closes every connection and empties the registry. Called on
// shutdown only.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
