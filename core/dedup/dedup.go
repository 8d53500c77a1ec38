// Package dedup remembers which Telegram update ids were already processed.
//
// Telegram redelivers an update when the webhook answer is late or the bot
// restarts mid-update. A Store claims each id once; later claims within the
// TTL report a duplicate.
package dedup

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Store claims update ids. Claim returns true for the first caller only.
type Store interface {
	Claim(ctx context.Context, updateID int) (bool, error)
	Close() error
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[int]time.Time
	now   func() time.Time
	swept time.Time
}

// NewMemory returns a Memory store that forgets ids after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, seen: make(map[int]time.Time), now: time.Now}
}

// Claim implements Store.
func (m *Memory) Claim(_ context.Context, updateID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.swept) >= m.ttl {
		for id, at := range m.seen {
			if now.Sub(at) >= m.ttl {
				delete(m.seen, id)
			}
		}
		m.swept = now
	}
	if at, ok := m.seen[updateID]; ok && now.Sub(at) < m.ttl {
		return false, nil
	}
	m.seen[updateID] = now
	return true, nil
}

// Len reports how many ids are remembered.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

// Redis is a Store shared by every replica behind one webhook.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to rawURL (redis://...) and verifies the connection.
func NewRedis(ctx context.Context, rawURL, prefix string, ttl time.Duration) (*Redis, error) {
	opts, err := backend.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dedup: parse redis url: %w", err)
	}
	client := backend.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedup: connect to redis: %w", err)
	}
	return NewRedisFromClient(client, prefix, ttl), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(updateID int) string {
	return r.prefix + "update:" + strconv.Itoa(updateID)
}

// Claim implements Store with SET NX so concurrent replicas agree.
func (r *Redis) Claim(ctx context.Context, updateID int) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(updateID), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: claim update %d: %w", updateID, err)
	}
	return ok, nil
}

// Ping checks the connection, for health probes.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
