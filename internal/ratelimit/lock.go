package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "recurra:lock:"

// SchedulerTickLockKey serializes scheduler ticks across replicas.
const SchedulerTickLockKey = lockKeyPrefix + "scheduler:tick"

// IdempotencyLockKey names the lock guarding one (tenant, idempotency key) create.
func IdempotencyLockKey(tenantID snowflake.ID, key string) string {
	return lockKeyPrefix + "idem:" + tenantID.String() + ":" + key
}

// compareAndDelete drops the lock only while it still holds the caller's
// token, so an expired holder cannot release a lock someone else now owns.
const compareAndDelete = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errLockerUnset = errors.New("ratelimit: redis locker not configured")
	errLockKey     = errors.New("ratelimit: lock key is empty")
	errLockTTL     = errors.New("ratelimit: lock ttl must be positive")
)

// Locker hands out short-lived exclusive leases in redis. Callers treat it as
// an optimization: the database constraints stay the source of truth.
type Locker struct {
	client  *redis.Client
	release *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, release: redis.NewScript(compareAndDelete)}
}

// TryLock returns a release token when the lease was taken. ok is false when
// another holder owns key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	switch {
	case l == nil || l.client == nil:
		return "", false, errLockerUnset
	case key == "":
		return "", false, errLockKey
	case ttl <= 0:
		return "", false, errLockTTL
	}

	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("ratelimit: acquire %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release is a no-op on a nil locker or an empty token.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	if err := l.release.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("ratelimit: release %s: %w", key, err)
	}
	return nil
}
