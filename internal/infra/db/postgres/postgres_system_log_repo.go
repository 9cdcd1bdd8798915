package postgres

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.SystemLogRepository = (*SystemLogRepo)(nil)

// SystemLogRepo writes the sweep audit trail. Ids are ULIDs so rows sort by
// creation time.
type SystemLogRepo struct {
	pool *pgxpool.Pool
}

func NewSystemLogRepo(pool *pgxpool.Pool) *SystemLogRepo {
	return &SystemLogRepo{pool: pool}
}

func (r *SystemLogRepo) Insert(ctx context.Context, tx repository.Tx, l *model.SystemLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	if l.ID == "" {
		l.ID = ulid.MustNew(ulid.Timestamp(l.CreatedAt), rand.Reader).String()
	}
	summary, err := json.Marshal(l.Summary)
	if err != nil {
		return err
	}
	const q = `INSERT INTO system_logs (id, job, status, summary, created_at) VALUES ($1,$2,$3,$4,$5);`
	_, err = execSQL(ctx, r.pool, tx, q, l.ID, l.Job, l.Status, summary, l.CreatedAt)
	return mapErr(err)
}

// ListByJob returns the newest entries of job, newest first.
func (r *SystemLogRepo) ListByJob(ctx context.Context, tx repository.Tx, job string, limit int) ([]*model.SystemLog, error) {
	const q = `
SELECT id, job, status, summary, created_at
  FROM system_logs
 WHERE job=$1
 ORDER BY id DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, job, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.SystemLog
	for rows.Next() {
		var (
			l   model.SystemLog
			raw []byte
		)
		if err := rows.Scan(&l.ID, &l.Job, &l.Status, &raw, &l.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		if len(raw) > 0 {
			var sum model.JobResult
			if err := json.Unmarshal(raw, &sum); err == nil {
				l.Summary = &sum
			}
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
