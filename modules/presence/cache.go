package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is the cached presence state for one user. The HTTP layer reads
// these keys to answer profile queries without touching the database.
type Record struct {
	IsOnline       bool       `json:"isOnline"`
	LastSeenOnline *time.Time `json:"lastSeenOnline,omitempty"`
}

// Cache stores presence records in Redis. Writes are best-effort: the
// registry stays the source of truth for liveness, the database for
// last-seen.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache creates a presence cache.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// SetOnline marks a user online.
func (c *Cache) SetOnline(ctx context.Context, userID string) error {
	return c.set(ctx, userID, Record{IsOnline: true})
}

// SetOffline marks a user offline with the disconnect timestamp.
func (c *Cache) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return c.set(ctx, userID, Record{IsOnline: false, LastSeenOnline: &lastSeen})
}

// Get retrieves a user's cached presence. The second return is false on a
// cache miss.
func (c *Cache) Get(ctx context.Context, userID string) (Record, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("presence cache get error: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("presence cache unmarshal error: %w", err)
	}
	return rec, true, nil
}

func (c *Cache) set(ctx context.Context, userID string, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("presence cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+userID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("presence cache set error: %w", err)
	}
	return nil
}
