package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_id, plan_name, status, payment_status, payment_id, preference_id,
       amount, created_at, expires_at, updated_at, discord_role_assigned, rust_permission_assigned`

const subColumnsQualified = `s.id, s.user_id, s.plan_id, s.plan_name, s.status, s.payment_status, s.payment_id, s.preference_id,
       s.amount, s.created_at, s.expires_at, s.updated_at, s.discord_role_assigned, s.rust_permission_assigned`

// Save upserts by id. A second active row for the same user violates
// subscriptions_one_active_per_user and comes back as domain.ErrActiveSubscription.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  plan_id=$3, plan_name=$4, status=$5, payment_status=$6, payment_id=$7, preference_id=$8,
  amount=$9, expires_at=$11, updated_at=$12, discord_role_assigned=$13, rust_permission_assigned=$14;`

	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.PlanName, string(s.Status), s.PaymentStatus, s.PaymentID, s.PreferenceID,
		s.Amount, s.CreatedAt, s.ExpiresAt, s.UpdatedAt, s.DiscordRoleAssigned, s.RustPermissionAssigned)
	if err = mapErr(err); err == domain.ErrAlreadyExists {
		return domain.ErrActiveSubscription
	}
	return err
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.queryOne(ctx, tx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1;`, id)
}

func (r *subscriptionRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Subscription, error) {
	return r.queryOne(ctx, tx, `SELECT `+subColumns+` FROM subscriptions WHERE payment_id=$1 ORDER BY created_at DESC LIMIT 1;`, paymentID)
}

func (r *subscriptionRepo) FindByPreferenceID(ctx context.Context, tx repository.Tx, preferenceID string) (*model.Subscription, error) {
	return r.queryOne(ctx, tx, `SELECT `+subColumns+` FROM subscriptions WHERE preference_id=$1 ORDER BY created_at DESC LIMIT 1;`, preferenceID)
}

func (r *subscriptionRepo) FindLatestPendingByUser(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='pending'
 ORDER BY (plan_id=$2) DESC, created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID, planID)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE user_id=$1 AND status='active'
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status='pending' OR payment_status='pending'
 ORDER BY created_at DESC
 LIMIT $1;`
	return r.queryMany(ctx, tx, q, limit)
}

func (r *subscriptionRepo) ListExpired(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status='active' AND expires_at < $1
 ORDER BY expires_at ASC
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) ListUnprovisioned(ctx context.Context, tx repository.Tx, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subColumnsQualified + `
  FROM subscriptions s
  JOIN users u ON u.id = s.user_id
 WHERE s.status='active'
   AND ((NOT s.discord_role_assigned AND u.discord_id IS NOT NULL)
     OR (NOT s.rust_permission_assigned AND u.steam_id IS NOT NULL))
 ORDER BY s.updated_at ASC
 LIMIT $1;`
	return r.queryMany(ctx, tx, q, limit)
}

func (r *subscriptionRepo) SetProvisioned(ctx context.Context, tx repository.Tx, id string, target model.ProvisionTarget, assigned bool) error {
	var q string
	switch target {
	case model.TargetDiscord:
		q = `UPDATE subscriptions SET discord_role_assigned=$2, updated_at=$3 WHERE id=$1;`
	case model.TargetGameServer:
		q = `UPDATE subscriptions SET rust_permission_assigned=$2, updated_at=$3 WHERE id=$1;`
	default:
		return domain.ErrInvalidArgument
	}
	tag, err := execSQL(ctx, r.pool, tx, q, id, assigned, time.Now())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

// LockUser takes a transaction-scoped advisory lock on the user id.
func (r *subscriptionRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	ptx, ok := tx.(pgx.Tx)
	if !ok {
		return nil
	}
	_, err := ptx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64("user:"+userID))
	return mapErr(err)
}

// ---- helpers ----

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	s, err := scanSub(row)
	if err == domain.ErrNotFound {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s, err
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	var (
		s      model.Subscription
		status string
	)
	err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &status, &s.PaymentStatus, &s.PaymentID, &s.PreferenceID,
		&s.Amount, &s.CreatedAt, &s.ExpiresAt, &s.UpdatedAt, &s.DiscordRoleAssigned, &s.RustPermissionAssigned)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}
