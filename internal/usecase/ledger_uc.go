// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/metrics"
)

// LedgerUseCase owns every write to the subscription ledger. Writes for one
// user run in a transaction holding that user's lock.
type LedgerUseCase struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewLedgerUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *LedgerUseCase {
	l := logger.With().Str("component", "LedgerUseCase").Logger()
	return &LedgerUseCase{users: users, subs: subs, tm: tm, log: &l}
}

// ApplyApproved records an approved payment: the matching subscription is
// looked up by payment id, then by the user's newest pending checkout, and
// created when neither exists. The row becomes active for 30 days and any
// other active row of the user is closed as expired. A payment whose row has
// already expired or been cancelled is not applied again and yields
// domain.ErrPaymentConsumed.
func (uc *LedgerUseCase) ApplyApproved(ctx context.Context, p *model.ApprovedPayment) (*model.Subscription, *model.User, error) {
	if p == nil || p.UserID == "" || p.PlanID == "" {
		return nil, nil, domain.ErrInvalidArgument
	}

	var (
		sub  *model.Subscription
		user *model.User
	)
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.subs.LockUser(ctx, tx, p.UserID); err != nil {
			return err
		}
		u, err := uc.users.FindByID(ctx, tx, p.UserID)
		if err != nil {
			return err
		}

		s, err := uc.lookup(ctx, tx, p)
		if err != nil {
			return err
		}
		now := time.Now()
		if s == nil {
			s = &model.Subscription{
				ID:        uuid.NewString(),
				UserID:    p.UserID,
				Status:    model.SubscriptionStatusPending,
				CreatedAt: now,
			}
		}

		active, err := uc.subs.FindActiveByUser(ctx, tx, p.UserID)
		if err != nil && !errors.Is(err, domain.ErrSubscriptionNotFound) {
			return err
		}
		if active != nil && active.ID != s.ID {
			active.Expire(now)
			if err := uc.subs.Save(ctx, tx, active); err != nil {
				return err
			}
			uc.log.Info().Str("subscription_id", active.ID).Str("user_id", p.UserID).Msg("superseded active subscription")
		}

		s.PlanID = p.PlanID
		s.PlanName = model.PlanDisplayName(p.PlanID)
		s.Activate(p.PaymentID, p.Status, p.Amount, now)
		if err := uc.subs.Save(ctx, tx, s); err != nil {
			return err
		}

		if role := u.RoleAfterActivation(model.PlanRole(p.PlanID)); role != u.Role {
			if err := uc.users.UpdateRole(ctx, tx, u.ID, role); err != nil {
				return err
			}
			u.Role = role
		}
		sub, user = s, u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.IncSubscriptionTransition(model.SubscriptionStatusActive)
	uc.log.Info().Str("subscription_id", sub.ID).Str("user_id", user.ID).Str("payment_id", p.PaymentID).Time("expires_at", *sub.ExpiresAt).Msg("subscription active")
	return sub, user, nil
}

func (uc *LedgerUseCase) lookup(ctx context.Context, tx repository.Tx, p *model.ApprovedPayment) (*model.Subscription, error) {
	s, err := uc.subs.FindByPaymentID(ctx, tx, p.PaymentID)
	if err == nil {
		if s.IsClosed() {
			return nil, fmt.Errorf("subscription %s is %s: %w", s.ID, s.Status, domain.ErrPaymentConsumed)
		}
		return s, nil
	}
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}
	s, err = uc.subs.FindLatestPendingByUser(ctx, tx, p.UserID, p.PlanID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return nil, err
	}
	return nil, nil
}

// MarkCancelled closes a pending subscription whose payment the provider
// rejected or cancelled. Rows that are no longer pending are left alone.
func (uc *LedgerUseCase) MarkCancelled(ctx context.Context, subscriptionID, paymentStatus string) (*model.Subscription, error) {
	var sub *model.Subscription
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if err := uc.subs.LockUser(ctx, tx, s.UserID); err != nil {
			return err
		}
		if s.Status != model.SubscriptionStatusPending {
			sub = s
			return nil
		}
		s.Cancel(paymentStatus, time.Now())
		if err := uc.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		metrics.IncSubscriptionTransition(model.SubscriptionStatusCancelled)
		sub = s
		return nil
	})
	return sub, err
}

// Expire closes an active subscription past its expiry and drops the user's
// VIP role. It returns the user so access can be revoked.
func (uc *LedgerUseCase) Expire(ctx context.Context, subscriptionID string) (*model.Subscription, *model.User, error) {
	var (
		sub  *model.Subscription
		user *model.User
	)
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := uc.subs.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if err := uc.subs.LockUser(ctx, tx, s.UserID); err != nil {
			return err
		}
		u, err := uc.users.FindByID(ctx, tx, s.UserID)
		if err != nil {
			return err
		}
		now := time.Now()
		if !s.IsExpiredAt(now) {
			return domain.ErrInvalidArgument
		}
		s.Expire(now)
		if err := uc.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		if role := u.RoleAfterExpiry(); role != u.Role {
			if err := uc.users.UpdateRole(ctx, tx, u.ID, role); err != nil {
				return err
			}
			u.Role = role
		}
		sub, user = s, u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.IncSubscriptionTransition(model.SubscriptionStatusExpired)
	return sub, user, nil
}

// SetProvisioned records the outcome of a provisioning call on the row.
func (uc *LedgerUseCase) SetProvisioned(ctx context.Context, subscriptionID string, target model.ProvisionTarget, assigned bool) error {
	return uc.subs.SetProvisioned(ctx, repository.NoTX, subscriptionID, target, assigned)
}
