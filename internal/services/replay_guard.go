package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "refledger:intent:"

// ReplayGuard remembers signed intents for a while so the same signed
// request is not executed twice in a row. Keys come from
// signature.ReplayKey.
type ReplayGuard interface {
	// Claim returns false when key was already claimed within the ttl.
	Claim(ctx context.Context, key string) (bool, error)
}

type RedisReplayGuard struct {
	redisCli *redis.Client
	ttl      time.Duration
}

func NewRedisReplayGuard(redisCli *redis.Client, ttl time.Duration) *RedisReplayGuard {
	return &RedisReplayGuard{
		redisCli: redisCli,
		ttl:      ttl,
	}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok, err := g.redisCli.SetNX(ctx, replayKey(key), 1, g.ttl).Result()
	if err != nil {
		log.Error("Failed to claim signature: ", err)
		return false, err
	}
	return ok, nil
}

type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryReplayGuard(ttl time.Duration) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) Claim(_ context.Context, intent string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, exp := range g.seen {
		if !now.Before(exp) {
			delete(g.seen, k)
		}
	}

	key := replayKey(intent)
	if _, ok := g.seen[key]; ok {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}

func replayKey(key string) string {
	return replayKeyPrefix + strings.ToLower(strings.TrimSpace(key))
}
