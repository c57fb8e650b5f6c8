package presence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/social-realtime-demo/events"
	"github.com/example/social-realtime-demo/modules/registry"
)

type fakeStore struct {
	writes []lastSeenWrite
}

type lastSeenWrite struct {
	userID   string
	lastSeen time.Time
}

func (s *fakeStore) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	s.writes = append(s.writes, lastSeenWrite{userID: userID, lastSeen: lastSeen})
	return nil
}

func recv(t *testing.T, c *registry.Conn) []events.Frame {
	t.Helper()
	var frames []events.Frame
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return frames
			}
			var f events.Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("malformed outbound frame %q: %v", raw, err)
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestNotifier_HandleBind(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := &fakeStore{}
	n := NewNotifier(reg, store)

	peer := registry.NewConn(nil)
	anon := registry.NewConn(nil)
	bound := registry.NewConn(nil)
	reg.Add(peer)
	reg.Add(anon)
	reg.Add(bound)
	reg.Bind(peer, "bob")

	reg.Bind(bound, "alice")
	n.HandleBind(ctx, bound)

	// The bound connection gets its id and the online set, privately.
	own := recv(t, bound)
	if len(own) != 2 {
		t.Fatalf("bound conn received %d frames, want 2", len(own))
	}
	if own[0].Type != events.TypeConnectedUserID {
		t.Errorf("first frame type = %s, want %s", own[0].Type, events.TypeConnectedUserID)
	}
	if own[1].Type != events.TypeOnlineClients {
		t.Errorf("second frame type = %s, want %s", own[1].Type, events.TypeOnlineClients)
	}

	// Every other socket hears the user came online, bound or not.
	for name, c := range map[string]*registry.Conn{"peer": peer, "anon": anon} {
		got := recv(t, c)
		if len(got) != 1 {
			t.Fatalf("%s received %d frames, want 1", name, len(got))
		}
		if got[0].Type != events.TypeOnlineStatus {
			t.Errorf("%s frame type = %s, want %s", name, got[0].Type, events.TypeOnlineStatus)
		}
		var payload struct {
			ID       string `json:"id"`
			IsOnline bool   `json:"isOnline"`
		}
		if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if payload.ID != "alice" || !payload.IsOnline {
			t.Errorf("%s payload = %+v, want alice online", name, payload)
		}
	}

	if len(store.writes) != 0 {
		t.Errorf("bind should not write last-seen, got %d writes", len(store.writes))
	}
}

func TestNotifier_HandleBindAnonymous(t *testing.T) {
	reg := registry.New()
	n := NewNotifier(reg, &fakeStore{})

	peer := registry.NewConn(nil)
	anon := registry.NewConn(nil)
	reg.Add(peer)
	reg.Add(anon)
	reg.Bind(peer, "bob")

	// A connection that never got an identity announces nothing.
	n.HandleBind(context.Background(), anon)

	if got := recv(t, peer); len(got) != 0 {
		t.Errorf("peer received %d frames for anonymous bind, want 0", len(got))
	}
}

func TestNotifier_HandleDisconnect(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := &fakeStore{}
	n := NewNotifier(reg, store)

	alice := registry.NewConn(nil)
	peer := registry.NewConn(nil)
	reg.Add(alice)
	reg.Add(peer)
	reg.Bind(alice, "alice")
	reg.Bind(peer, "bob")

	before := time.Now()
	n.HandleDisconnect(ctx, alice)

	got := recv(t, peer)
	if len(got) != 1 {
		t.Fatalf("peer received %d frames, want 1", len(got))
	}
	var payload struct {
		ID             string     `json:"id"`
		IsOnline       bool       `json:"isOnline"`
		LastSeenOnline *time.Time `json:"lastSeenOnline"`
	}
	if err := json.Unmarshal(got[0].Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.ID != "alice" || payload.IsOnline {
		t.Errorf("payload = %+v, want alice offline", payload)
	}
	if payload.LastSeenOnline == nil || payload.LastSeenOnline.Before(before) {
		t.Errorf("lastSeenOnline = %v, want disconnect wall-clock time", payload.LastSeenOnline)
	}

	if len(store.writes) != 1 {
		t.Fatalf("last-seen writes = %d, want 1", len(store.writes))
	}
	if store.writes[0].userID != "alice" {
		t.Errorf("last-seen write for %q, want alice", store.writes[0].userID)
	}

	if reg.IsOnline("alice") {
		t.Error("alice should be offline after disconnect")
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1", reg.Len())
	}
	if !alice.Closed() {
		t.Error("disconnected conn should be closed")
	}
}

func TestNotifier_HandleDisconnectExactlyOnce(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := &fakeStore{}
	n := NewNotifier(reg, store)

	alice := registry.NewConn(nil)
	peer := registry.NewConn(nil)
	reg.Add(alice)
	reg.Add(peer)
	reg.Bind(alice, "alice")
	reg.Bind(peer, "bob")

	// Sweeper eviction and read-loop cleanup can both land here.
	n.HandleDisconnect(ctx, alice)
	n.HandleDisconnect(ctx, alice)

	if got := recv(t, peer); len(got) != 1 {
		t.Errorf("peer received %d offline broadcasts, want exactly 1", len(got))
	}
	if len(store.writes) != 1 {
		t.Errorf("last-seen writes = %d, want exactly 1", len(store.writes))
	}
}

func TestNotifier_HandleDisconnectAnonymous(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	store := &fakeStore{}
	n := NewNotifier(reg, store)

	anon := registry.NewConn(nil)
	peer := registry.NewConn(nil)
	reg.Add(anon)
	reg.Add(peer)
	reg.Bind(peer, "bob")

	n.HandleDisconnect(ctx, anon)

	if got := recv(t, peer); len(got) != 0 {
		t.Errorf("peer received %d frames for anonymous disconnect, want 0", len(got))
	}
	if len(store.writes) != 0 {
		t.Errorf("last-seen writes = %d, want 0", len(store.writes))
	}
	if reg.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1 (anonymous conn removed)", reg.Len())
	}
}
