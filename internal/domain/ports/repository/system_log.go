package repository

import (
	"context"

	"rust-vip-platform/internal/domain/model"
)

type SystemLogRepository interface {
	Insert(ctx context.Context, tx Tx, l *model.SystemLog) error
}
