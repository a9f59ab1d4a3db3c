package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lacucina/restaurant-backend/pkg/instance"
)

const defaultLockTTL = 30 * time.Minute

// ErrLockLost means the TTL ran out mid-cycle and another worker may have
// reconciled the same orders concurrently. Raise RESTAURANT_CRON_LOCK_TTL when seen.
var ErrLockLost = errors.New("cron lock expired before release")

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	// Holder returns the owner value of the current holder, or "".
	Holder(ctx context.Context) (string, error)
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock with SETNX and a TTL so a crashed worker cannot hold it forever.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this instance still owns it. It returns
// ErrLockLost when the key expired or now belongs to someone else.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	removed, err := l.client.DelIfValue(ctx, l.key, owner)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if !removed {
		return ErrLockLost
	}
	return nil
}

func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read lock owner: %w", err)
	}
	return value, nil
}
