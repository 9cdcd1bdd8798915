// File: internal/usecase/expiry_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
)

// ExpiryUseCase closes subscriptions past their expiry and revokes access.
type ExpiryUseCase struct {
	subs         repository.SubscriptionRepository
	ledger       *LedgerUseCase
	provisioning *ProvisioningUseCase
	runner       *jobRunner
	log          *zerolog.Logger
}

func NewExpiryUseCase(
	subs repository.SubscriptionRepository,
	ledger *LedgerUseCase,
	provisioning *ProvisioningUseCase,
	locker repository.Locker,
	logs repository.SystemLogRepository,
	cfg SweepConfig,
	logger *zerolog.Logger,
) *ExpiryUseCase {
	l := logger.With().Str("component", "ExpiryUseCase").Logger()
	return &ExpiryUseCase{
		subs:         subs,
		ledger:       ledger,
		provisioning: provisioning,
		runner:       &jobRunner{locker: locker, logs: logs, cfg: cfg.withDefaults(), log: &l},
		log:          &l,
	}
}

// ExpireDue moves every active subscription with expires_at in the past to
// expired and removes the role and the game permission. A failing item is
// reported and the sweep moves on.
func (uc *ExpiryUseCase) ExpireDue(ctx context.Context) (*model.JobResult, error) {
	return uc.runner.run(ctx, model.JobExpireSubscriptions, uc.sweep)
}

func (uc *ExpiryUseCase) sweep(ctx context.Context, deadline time.Time, res *model.JobResult) error {
	due, err := uc.subs.ListExpired(ctx, repository.NoTX, time.Now(), uc.runner.cfg.BatchSize)
	if err != nil {
		return err
	}

	itemCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for _, s := range due {
		if timedOut(deadline, res) {
			return nil
		}
		res.Checked++
		d := model.JobDetail{SubscriptionID: s.ID, UserID: s.UserID, PaymentID: s.PaymentIDOrEmpty()}

		sub, user, err := uc.ledger.Expire(itemCtx, s.ID)
		if err != nil {
			d.Status, d.Message = model.DetailError, err.Error()
			res.Add(d)
			continue
		}
		summary := uc.provisioning.Revoke(itemCtx, user, sub)
		d.Status = model.DetailExpired
		d.Provisioning = summary.Errors()
		res.Processed++
		res.Add(d)
	}
	return nil
}
