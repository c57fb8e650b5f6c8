package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// sendQueueSize is the per-connection outbound buffer. A peer that falls
// this far behind is treated as dead rather than allowed to stall senders.
const sendQueueSize = 64

// Conn is one live client transport session. The user identity is empty
// until the identity binder resolves it; the connection still receives
// unfiltered broadcasts (presence) while anonymous.
type Conn struct {
	id string
	ws *websocket.Conn // nil for in-memory test connections

	mu       sync.RWMutex
	userID   string
	lastPong time.Time
	closed   bool

	teardown atomic.Bool

	send chan []byte
}

// NewConn wraps a websocket connection. The wrapper owns the outbound
// queue; WritePump must be started before frames are enqueued.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{
		id:       uuid.New().String(),
		ws:       ws,
		lastPong: time.Now(),
		send:     make(chan []byte, sendQueueSize),
	}
}

// ID returns the opaque connection handle.
func (c *Conn) ID() string {
	return c.id
}

// UserID returns the bound user identity, or "" while anonymous.
func (c *Conn) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Bound reports whether an identity has been attached.
func (c *Conn) Bound() bool {
	return c.UserID() != ""
}

func (c *Conn) setUserID(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// Touch records liveness. Called from the pong handler and on app-level
// PING frames.
func (c *Conn) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// RespondedSince reports whether the peer has shown liveness after t.
func (c *Conn) RespondedSince(t time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong.After(t)
}

// Send enqueues a frame for delivery in FIFO order. It never blocks:
// a full queue or a closed connection returns false and the caller treats
// the connection as dead.
func (c *Conn) Send(frame []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// StartTeardown claims the disconnect cleanup for the caller. The read
// loop and the heartbeat sweeper can both reach the disconnect path; only
// the first caller gets true, so the offline broadcast and the last-seen
// write happen exactly once.
func (c *Conn) StartTeardown() bool {
	return c.teardown.CompareAndSwap(false, true)
}

// Outbound exposes the queue for the write pump and for tests that assert
// on delivered frames.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// Close shuts the outbound queue and the underlying socket. Safe to call
// more than once and from any goroutine.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// WritePump drains the outbound queue onto the socket. Run it in its own
// goroutine per connection; it exits when the queue is closed or a write
// fails, closing the socket either way so the read loop unblocks.
func (c *Conn) WritePump() {
	for frame := range c.send {
		if c.ws == nil {
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			break
		}
	}
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

// Ping sends a control ping. WriteControl is safe to call concurrently
// with WritePump's data writes.
func (c *Conn) Ping(deadline time.Time) error {
	if c.ws == nil {
		return nil
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, deadline)
}
