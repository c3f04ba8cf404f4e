package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyDedup = "dedup:%s:%s"
	ttlDedup = 48 * time.Hour
)

// Deduper claims an event id so it is handled once across redeliveries.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	rdb     *redis.Client
	service string
}

func NewRedisDeduper(rdb *redis.Client, service string) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, service: service}
}

func (d *RedisDeduper) key(eventID string) string {
	return fmt.Sprintf(keyDedup, d.service, eventID)
}

func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(eventID), "1", ttlDedup).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, d.key(eventID)).Err()
}

const memorySweepInterval = time.Hour

// MemoryDeduper is process-local; used when Redis is not configured.
// Expired claims are swept at most once per memorySweepInterval.
type MemoryDeduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]time.Time{}, now: time.Now}
}

func (d *MemoryDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.sweep(now)
	if at, ok := d.seen[eventID]; ok && now.Sub(at) < ttlDedup {
		return false, nil
	}
	d.seen[eventID] = now
	return true, nil
}

func (d *MemoryDeduper) sweep(now time.Time) {
	if now.Sub(d.lastSweep) < memorySweepInterval {
		return
	}
	d.lastSweep = now
	for id, at := range d.seen {
		if now.Sub(at) >= ttlDedup {
			delete(d.seen, id)
		}
	}
}

func (d *MemoryDeduper) Release(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
