package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (id, email, discord_id, steam_id, role, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  email=$2, discord_id=$3, steam_id=$4, role=$5, updated_at=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.DiscordID, u.SteamID, string(u.Role), u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `
SELECT id, email, discord_id, steam_id, role, created_at, updated_at
  FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DiscordID, &u.SteamID, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err = mapErr(err); err == domain.ErrNotFound {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (r *PostgresUserRepo) UpdateRole(ctx context.Context, tx repository.Tx, id string, role model.Role) error {
	if !role.Valid() {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE users SET role=$2, updated_at=$3 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(role), time.Now())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
