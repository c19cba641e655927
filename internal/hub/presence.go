package hub

import (
	"context"
	"sync"
	"time"

	"chatdesk-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// PresenceStore tracks which users are online. Keys carry a TTL so a
// crashed process never leaves ghosts behind.
type PresenceStore interface {
	// Touch refreshes the user's presence, returning true when the
	// touch brought them online.
	Touch(ctx context.Context, userID string) (bool, error)

	// Clear drops the user's presence, returning true when they were
	// online.
	Clear(ctx context.Context, userID string) (bool, error)
}

const presenceKeyPrefix = "presence:agent:"

// RedisPresence keeps presence in Redis, which makes it valid across
// multiple API instances.
type RedisPresence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresence(rdb *redis.Client, ttl time.Duration) *RedisPresence {
	return &RedisPresence{rdb: rdb, ttl: ttl}
}

func (p *RedisPresence) Touch(ctx context.Context, userID string) (bool, error) {
	return utils.TouchPresence(ctx, p.rdb, presenceKeyPrefix+userID, userID, p.ttl)
}

func (p *RedisPresence) Clear(ctx context.Context, userID string) (bool, error) {
	return utils.ClearPresence(ctx, p.rdb, presenceKeyPrefix+userID)
}

// MemoryPresence mirrors the Redis TTL semantics in-process. Useful for
// tests and single-instance local runs.
type MemoryPresence struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	ttl       time.Duration
	clock     func() time.Time
}

func NewMemoryPresence(ttl time.Duration) *MemoryPresence {
	return &MemoryPresence{
		deadlines: make(map[string]time.Time),
		ttl:       ttl,
		clock:     time.Now,
	}
}

// WithClock overrides the presence clock. Test use only.
func (p *MemoryPresence) WithClock(clock func() time.Time) *MemoryPresence {
	p.clock = clock
	return p
}

func (p *MemoryPresence) Touch(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	deadline, ok := p.deadlines[userID]
	online := ok && deadline.After(now)
	p.deadlines[userID] = now.Add(p.ttl)
	return !online, nil
}

func (p *MemoryPresence) Clear(ctx context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	deadline, ok := p.deadlines[userID]
	delete(p.deadlines, userID)
	return ok && deadline.After(now), nil
}
