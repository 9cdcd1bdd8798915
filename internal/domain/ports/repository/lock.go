package repository

import (
	"context"
	"time"
)

// Locker is an advisory, TTL-bound lock keyed by job name. TryLock returns
// domain.ErrAlreadyRunning when another holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
