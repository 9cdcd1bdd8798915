package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.Locker = (*JobLocker)(nil)

// JobLocker is a TTL lease stored in job_locks. It is used for sweeps when
// no Redis is configured; an expired lease can be taken over by anyone.
type JobLocker struct {
	pool *pgxpool.Pool
}

func NewJobLocker(pool *pgxpool.Pool) *JobLocker {
	return &JobLocker{pool: pool}
}

func (l *JobLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	const q = `
INSERT INTO job_locks (name, token, expires_at)
VALUES ($1, $2, now() + ($3::float8 * interval '1 millisecond'))
ON CONFLICT (name) DO UPDATE
   SET token=EXCLUDED.token, expires_at=EXCLUDED.expires_at
 WHERE job_locks.expires_at < now()
RETURNING token;`
	token := uuid.NewString()
	row, err := pickRow(ctx, l.pool, nil, q, key, token, ttl.Milliseconds())
	if err != nil {
		return "", err
	}
	var got string
	if err := row.Scan(&got); err != nil {
		if err = mapErr(err); err == domain.ErrNotFound {
			return "", domain.ErrAlreadyRunning
		}
		return "", err
	}
	return got, nil
}

func (l *JobLocker) Unlock(ctx context.Context, key, token string) error {
	tag, err := execSQL(ctx, l.pool, nil, `DELETE FROM job_locks WHERE name=$1 AND token=$2;`, key, token)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLockNotHeld
	}
	return nil
}
