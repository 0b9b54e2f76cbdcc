package flags

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazeclub/drops-api/internal/clock"
)

// RedisSource reads flags from a redis hash (field = flag key, value =
// "true"/"1" or "false"/"0") and refreshes on a timer. Between refreshes all
// callers see the same immutable snapshot. Missing fields fall back to
// Defaults, so an empty or unreachable store behaves like no store at all.
type RedisSource struct {
	client *redis.Client
	key    string
	clock  clock.Clock
	logger *log.Logger

	mu   sync.RWMutex
	snap Snapshot
}

func NewRedisSource(client *redis.Client, key string, clk clock.Clock, logger *log.Logger) *RedisSource {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisSource{
		client: client,
		key:    key,
		clock:  clk,
		logger: logger,
		snap:   NewSnapshot(Defaults(), clk.Now()),
	}
}

func (s *RedisSource) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh loads the hash and swaps in a fresh snapshot. On error the previous
// snapshot stays in place.
func (s *RedisSource) Refresh(ctx context.Context) error {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return err
	}

	values := Defaults()
	for k, v := range fields {
		values[k] = v == "true" || v == "1"
	}

	snap := NewSnapshot(values, s.clock.Now())
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Run refreshes on the given interval until ctx is cancelled.
func (s *RedisSource) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Printf("WARN: flag refresh failed: %v", err)
			}
		}
	}
}
