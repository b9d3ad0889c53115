package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const runLockPrefix = "engine:lock:schedule:"

// RedisRunLocker serialises generation runs per schedule across instances
// with a SET NX lease. The TTL guards against a crashed holder.
type RedisRunLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisRunLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRunLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisRunLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisRunLocker) Acquire(ctx context.Context, scheduleID string) (bool, error) {
	return l.client.SetNX(ctx, runLockPrefix+scheduleID, "1", l.ttl).Result()
}

func (l *RedisRunLocker) Release(ctx context.Context, scheduleID string) {
	if err := l.client.Del(ctx, runLockPrefix+scheduleID).Err(); err != nil {
		l.logger.Warn("failed to release schedule lock",
			zap.String("schedule_id", scheduleID),
			zap.Error(err),
		)
	}
}

// memoryRunLocker is the single-instance fallback used when Redis is not
// configured, and the default in tests.
type memoryRunLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newMemoryRunLocker() *memoryRunLocker {
	return &memoryRunLocker{held: make(map[string]struct{})}
}

func (l *memoryRunLocker) Acquire(_ context.Context, scheduleID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[scheduleID]; ok {
		return false, nil
	}
	l.held[scheduleID] = struct{}{}
	return true, nil
}

func (l *memoryRunLocker) Release(_ context.Context, scheduleID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, scheduleID)
}
