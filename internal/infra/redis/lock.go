// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.Locker = (*RedisLocker)(nil)

const lockPrefix = "lock:job:"

// RedisLocker is a single-attempt SETNX lock. A held key makes TryLock fail
// fast with domain.ErrAlreadyRunning; the TTL frees keys of crashed holders.
type RedisLocker struct {
	cli *redis.Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.cli.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", domain.ErrAlreadyRunning
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// Unlock releases the key only if token still owns it.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	n, err := luaUnlock.Run(ctx, l.cli, []string{lockPrefix + key}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLockNotHeld
	}
	return nil
}
