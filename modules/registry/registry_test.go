package registry

import (
	"testing"
	"time"
)

func drain(c *Conn) [][]byte {
	var frames [][]byte
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	reg := New()
	c := NewConn(nil)

	reg.Add(c)
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}

	// Re-adding the same connection must not create a second entry.
	reg.Add(c)
	if reg.Len() != 1 {
		t.Errorf("Len() after duplicate Add = %d, want 1", reg.Len())
	}

	if got, ok := reg.Get(c.ID()); !ok || got != c {
		t.Errorf("Get(%q) = %v, %v, want the registered conn", c.ID(), got, ok)
	}

	reg.Remove(c)
	if reg.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", reg.Len())
	}
	if _, ok := reg.Get(c.ID()); ok {
		t.Error("Get() after Remove should report absence")
	}

	// Removing an absent connection is a no-op.
	reg.Remove(c)
	if reg.Len() != 0 {
		t.Errorf("Len() after second Remove = %d, want 0", reg.Len())
	}
}

func TestRegistry_Bind(t *testing.T) {
	reg := New()
	c := NewConn(nil)
	reg.Add(c)

	if c.Bound() {
		t.Error("new connection should be anonymous")
	}

	reg.Bind(c, "alice")
	if got := c.UserID(); got != "alice" {
		t.Errorf("UserID() = %q, want %q", got, "alice")
	}

	// Rebinding overwrites.
	reg.Bind(c, "bob")
	if got := c.UserID(); got != "bob" {
		t.Errorf("UserID() after rebind = %q, want %q", got, "bob")
	}
	if reg.IsOnline("alice") {
		t.Error("IsOnline(alice) should be false after rebind")
	}
	if !reg.IsOnline("bob") {
		t.Error("IsOnline(bob) should be true after rebind")
	}
}

func TestRegistry_OnlineIDs(t *testing.T) {
	reg := New()

	a1 := NewConn(nil)
	a2 := NewConn(nil)
	b := NewConn(nil)
	anon := NewConn(nil)

	reg.Add(a1)
	reg.Add(a2)
	reg.Add(b)
	reg.Add(anon)

	reg.Bind(a1, "alice")
	reg.Bind(a2, "alice") // second device, same user
	reg.Bind(b, "bob")

	ids := reg.OnlineIDs()
	if len(ids) != 2 {
		t.Fatalf("OnlineIDs() = %v, want 2 distinct ids", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Errorf("OnlineIDs() = %v, want alice and bob", ids)
	}
}

func TestRegistry_ForEachTolerantOfRemoval(t *testing.T) {
	reg := New()
	conns := make([]*Conn, 10)
	for i := range conns {
		conns[i] = NewConn(nil)
		reg.Add(conns[i])
	}

	visited := 0
	reg.ForEach(func(c *Conn) {
		// Removing mid-iteration must not skip or corrupt the walk.
		reg.Remove(c)
		visited++
	})

	if visited != 10 {
		t.Errorf("visited %d connections, want 10", visited)
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistry_SendToRecipients(t *testing.T) {
	tests := []struct {
		name       string
		recipients []string
		wantBob    int
		wantAlice  int
		wantAnon   int
	}{
		{
			name:       "single recipient",
			recipients: []string{"bob"},
			wantBob:    1,
		},
		{
			name:       "both recipients",
			recipients: []string{"alice", "bob"},
			wantBob:    1,
			wantAlice:  1,
		},
		{
			name:       "offline recipient only",
			recipients: []string{"carol"},
		},
		{
			name:       "empty list",
			recipients: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New()
			alice := NewConn(nil)
			bob := NewConn(nil)
			anon := NewConn(nil)
			reg.Add(alice)
			reg.Add(bob)
			reg.Add(anon)
			reg.Bind(alice, "alice")
			reg.Bind(bob, "bob")

			reg.SendToRecipients(tt.recipients, []byte(`{"type":"ADD_MESSAGE"}`))

			if got := len(drain(bob)); got != tt.wantBob {
				t.Errorf("bob received %d frames, want %d", got, tt.wantBob)
			}
			if got := len(drain(alice)); got != tt.wantAlice {
				t.Errorf("alice received %d frames, want %d", got, tt.wantAlice)
			}
			if got := len(drain(anon)); got != tt.wantAnon {
				t.Errorf("anonymous conn received %d frames, want %d", got, tt.wantAnon)
			}
		})
	}
}

func TestRegistry_SendToAll(t *testing.T) {
	reg := New()
	sender := NewConn(nil)
	bound := NewConn(nil)
	anon := NewConn(nil)
	reg.Add(sender)
	reg.Add(bound)
	reg.Add(anon)
	reg.Bind(sender, "alice")
	reg.Bind(bound, "bob")

	reg.SendToAll([]byte(`{"type":"ONLINE_STATUS"}`), sender)

	if got := len(drain(sender)); got != 0 {
		t.Errorf("excluded conn received %d frames, want 0", got)
	}
	// Presence is public to all sockets, bound or not.
	if got := len(drain(bound)); got != 1 {
		t.Errorf("bound conn received %d frames, want 1", got)
	}
	if got := len(drain(anon)); got != 1 {
		t.Errorf("anonymous conn received %d frames, want 1", got)
	}
}

func TestConn_SendFIFO(t *testing.T) {
	c := NewConn(nil)

	frames := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, f := range frames {
		if !c.Send(f) {
			t.Fatalf("Send(%q) = false, want true", f)
		}
	}

	got := drain(c)
	if len(got) != len(frames) {
		t.Fatalf("drained %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if string(got[i]) != string(frames[i]) {
			t.Errorf("frame %d = %q, want %q", i, got[i], frames[i])
		}
	}
}

func TestConn_SendOverflow(t *testing.T) {
	c := NewConn(nil)

	for i := 0; i < sendQueueSize; i++ {
		if !c.Send([]byte("x")) {
			t.Fatalf("Send %d failed before queue was full", i)
		}
	}
	if c.Send([]byte("overflow")) {
		t.Error("Send on a full queue should return false")
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	c := NewConn(nil)
	c.Close()
	c.Close() // must not panic

	if !c.Closed() {
		t.Error("Closed() = false after Close")
	}
	if c.Send([]byte("late")) {
		t.Error("Send after Close should return false")
	}
}

func TestModule_SweepEvictsUnresponsive(t *testing.T) {
	m := NewModule()
	reg := m.Registry()

	live := NewConn(nil)
	dead := NewConn(nil)
	reg.Add(live)
	reg.Add(dead)
	reg.Bind(dead, "alice")

	var evicted []*Conn
	m.SetEvictHandler(func(c *Conn) {
		evicted = append(evicted, c)
		reg.Remove(c)
	})

	now := time.Now()
	live.Touch()
	dead.mu.Lock()
	dead.lastPong = now.Add(-2 * m.interval)
	dead.mu.Unlock()

	m.sweepOnce(now)

	if len(evicted) != 1 || evicted[0] != dead {
		t.Fatalf("evicted = %v, want exactly the stale connection", evicted)
	}
	if !dead.Closed() {
		t.Error("evicted connection should be closed")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (live connection kept)", reg.Len())
	}
	if reg.IsOnline("alice") {
		t.Error("IsOnline(alice) should be false after eviction")
	}
}

func TestModule_SweepWithoutEvictHandler(t *testing.T) {
	m := NewModule()
	reg := m.Registry()

	dead := NewConn(nil)
	reg.Add(dead)
	dead.mu.Lock()
	dead.lastPong = time.Now().Add(-2 * m.interval)
	dead.mu.Unlock()

	m.sweepOnce(time.Now())

	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (default eviction removes)", reg.Len())
	}
}
