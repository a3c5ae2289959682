package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedPrefix is the Redis key prefix for processed comment ids.
const ProcessedPrefix = "modseen:"

// DefaultProcessedTTL is how long a comment id is remembered.
const DefaultProcessedTTL = 7 * 24 * time.Hour

// Dedup remembers which comments were already moderated. Platforms redeliver
// webhooks, so a comment id may arrive more than once.
type Dedup interface {
	// FirstSeen marks id as processed and reports whether it was new.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// RedisDedup uses SETNX with a TTL.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedup creates a Redis-backed Dedup. A non-positive ttl uses
// DefaultProcessedTTL.
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &RedisDedup{client: client, ttl: ttl}
}

func (d *RedisDedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, ProcessedPrefix+id, time.Now().Unix(), d.ttl).Result()
}

// MemoryDedup is an in-process Dedup for single-replica deployments and for
// when Redis is down.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDedup creates an in-memory Dedup. A non-positive ttl uses
// DefaultProcessedTTL.
func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &MemoryDedup{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (d *MemoryDedup) FirstSeen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if at, ok := d.seen[id]; ok && now.Sub(at) < d.ttl {
		return false, nil
	}
	d.seen[id] = now
	return true, nil
}

// Sweep drops expired ids and returns how many were removed.
func (d *MemoryDedup) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	n := 0
	for id, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, id)
			n++
		}
	}
	return n
}

// FallbackDedup consults Primary and falls back to Secondary when Primary
// errors.
type FallbackDedup struct {
	Primary   Dedup
	Secondary Dedup
}

func (d FallbackDedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.Primary.FirstSeen(ctx, id)
	if err == nil {
		return ok, nil
	}
	return d.Secondary.FirstSeen(ctx, id)
}
