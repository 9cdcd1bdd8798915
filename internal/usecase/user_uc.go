package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes the account operations used by the HTTP layer.
type UserUseCase interface {
	Get(ctx context.Context, id string) (*model.User, error)
	// LinkAccounts sets the Discord and/or Steam ids of the user. Nil leaves
	// the current value, an empty string unlinks. An active subscription is
	// provisioned to the new accounts by the next pending sweep.
	LinkAccounts(ctx context.Context, id string, discordID, steamID *string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) LinkAccounts(ctx context.Context, id string, discordID, steamID *string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.LinkAccounts")()

	var user *model.User
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if discordID != nil {
			usr.DiscordID = nonEmpty(*discordID)
		}
		if steamID != nil {
			usr.SteamID = nonEmpty(*steamID)
		}
		usr.UpdatedAt = time.Now()
		if err := u.users.Save(ctx, tx, usr); err != nil {
			u.log.Error().Err(err).Str("user_id", id).Msg("failed to link accounts")
			return err
		}
		user = usr
		return nil
	})
	return user, err
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
