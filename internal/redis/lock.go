package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voicedesk/scheduling-backend/internal/lock"
)

type redisContactLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisContactLocker creates a locker that uses a per contact-number
// Redis key, so mutating tool calls stay serialized across processes.
func NewRedisContactLocker(client *redis.Client, ttl time.Duration) lock.Locker {
	return &redisContactLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisContactLocker) WithContactLock(ctx context.Context, contactNumber string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:contact:%s", contactNumber)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire contact lock: %w", err)
	}
	if !ok {
		return lock.ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisContactLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release contact lock: %w", err)
	}
	return nil
}
