package repository

import (
	"context"

	"rust-vip-platform/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	UpdateRole(ctx context.Context, tx Tx, id string, role model.Role) error
}
