// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
)

// referenceSkew is how much older than its subscription row a payment found
// by external reference may be and still count.
const referenceSkew = time.Hour

// ReconcileUseCase re-checks pending subscriptions against the provider to
// recover from missed or out-of-order webhooks, then retries provisioning
// that failed for active subscriptions.
type ReconcileUseCase struct {
	subs          repository.SubscriptionRepository
	users         repository.UserRepository
	gateway       adapter.PaymentGateway
	notifications *PaymentNotificationUseCase
	ledger        *LedgerUseCase
	provisioning  *ProvisioningUseCase
	runner        *jobRunner
	log           *zerolog.Logger
}

func NewReconcileUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	notifications *PaymentNotificationUseCase,
	ledger *LedgerUseCase,
	provisioning *ProvisioningUseCase,
	locker repository.Locker,
	logs repository.SystemLogRepository,
	cfg SweepConfig,
	logger *zerolog.Logger,
) *ReconcileUseCase {
	l := logger.With().Str("component", "ReconcileUseCase").Logger()
	return &ReconcileUseCase{
		subs:          subs,
		users:         users,
		gateway:       gateway,
		notifications: notifications,
		ledger:        ledger,
		provisioning:  provisioning,
		runner:        &jobRunner{locker: locker, logs: logs, cfg: cfg.withDefaults(), log: &l},
		log:           &l,
	}
}

// CheckPending runs one reconciliation sweep. A sweep that finds the lock
// taken returns a result with AlreadyRunning set and no error.
func (uc *ReconcileUseCase) CheckPending(ctx context.Context) (*model.JobResult, error) {
	return uc.runner.run(ctx, model.JobCheckPending, uc.sweep)
}

func (uc *ReconcileUseCase) sweep(ctx context.Context, deadline time.Time, res *model.JobResult) error {
	pending, err := uc.subs.ListPending(ctx, repository.NoTX, uc.runner.cfg.BatchSize)
	if err != nil {
		return err
	}

	itemCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for _, sub := range pending {
		if timedOut(deadline, res) {
			return nil
		}
		res.Checked++
		d := uc.reconcile(itemCtx, sub)
		if d.Status == model.DetailActivated || d.Status == model.DetailCancelled {
			res.Processed++
		}
		res.Add(d)
	}

	uc.repairProvisioning(itemCtx, deadline, res)
	return nil
}

func (uc *ReconcileUseCase) reconcile(ctx context.Context, sub *model.Subscription) model.JobDetail {
	d := model.JobDetail{SubscriptionID: sub.ID, UserID: sub.UserID, PaymentID: sub.PaymentIDOrEmpty()}

	payment, owner, err := uc.findPayment(ctx, sub)
	if err != nil {
		d.Status, d.Message = model.DetailError, err.Error()
		return d
	}
	if payment == nil {
		d.Status, d.Message = model.DetailPending, "no payment yet"
		return d
	}
	d.PaymentID = payment.ID

	switch {
	case owner != nil:
		if _, err := uc.ledger.MarkCancelled(ctx, sub.ID, model.PaymentStatusSuperseded); err != nil {
			d.Status, d.Message = model.DetailError, err.Error()
			return d
		}
		d.Status, d.Message = model.DetailCancelled, "payment already applied to subscription "+owner.ID
	case payment.Approved():
		out, err := uc.notifications.Reprocess(ctx, model.Notification{ID: payment.ID, Topic: model.TopicPayment})
		if err != nil {
			d.Status, d.Message = model.DetailError, err.Error()
			return d
		}
		if !out.Result.Success {
			d.Status, d.Message = model.DetailError, out.Result.Message
			return d
		}
		d.Status = model.DetailActivated
		if out.Provisioning != nil {
			d.Provisioning = out.Provisioning.Errors()
		}
	case model.IsTerminalFailure(payment.Status):
		if _, err := uc.ledger.MarkCancelled(ctx, sub.ID, payment.Status); err != nil {
			d.Status, d.Message = model.DetailError, err.Error()
			return d
		}
		d.Status = model.DetailCancelled
	default:
		d.Status, d.Message = model.DetailPending, payment.Status
	}
	return d
}

// findPayment uses the stored payment id when there is one, otherwise the
// newest payment carrying the row's external reference. Approved payments
// win over newer non-approved ones unless another row already holds them.
// When the only candidate is an approved payment held by another row, that
// row is returned as owner.
func (uc *ReconcileUseCase) findPayment(ctx context.Context, sub *model.Subscription) (*model.PaymentInfo, *model.Subscription, error) {
	if id := sub.PaymentIDOrEmpty(); id != "" {
		p, err := uc.gateway.GetPayment(ctx, id)
		return p, nil, err
	}
	found, err := uc.gateway.SearchPaymentsByReference(ctx, sub.ExternalReference())
	if err != nil {
		return nil, nil, err
	}
	notBefore := sub.CreatedAt.Add(-referenceSkew)
	var (
		newest, claimed *model.PaymentInfo
		owner           *model.Subscription
	)
	for i := range found {
		p := &found[i]
		if !p.DateCreated.IsZero() && p.DateCreated.Before(notBefore) {
			continue
		}
		if p.Approved() {
			holder, err := uc.subs.FindByPaymentID(ctx, repository.NoTX, p.ID)
			switch {
			case errors.Is(err, domain.ErrSubscriptionNotFound):
				return p, nil, nil
			case err != nil:
				return nil, nil, err
			case holder.ID == sub.ID:
				return p, nil, nil
			}
			if claimed == nil {
				claimed, owner = p, holder
			}
			continue
		}
		if newest == nil {
			newest = p
		}
	}
	if newest != nil {
		return newest, nil, nil
	}
	return claimed, owner, nil
}

func (uc *ReconcileUseCase) repairProvisioning(ctx context.Context, deadline time.Time, res *model.JobResult) {
	if time.Now().After(deadline) {
		return
	}
	subs, err := uc.subs.ListUnprovisioned(ctx, repository.NoTX, uc.runner.cfg.BatchSize)
	if err != nil {
		uc.log.Warn().Err(err).Msg("failed to list unprovisioned subscriptions")
		return
	}
	for _, sub := range subs {
		if timedOut(deadline, res) {
			return
		}
		user, err := uc.users.FindByID(ctx, repository.NoTX, sub.UserID)
		if err != nil {
			res.Add(model.JobDetail{SubscriptionID: sub.ID, UserID: sub.UserID, Status: model.DetailError, Message: err.Error()})
			continue
		}
		summary := uc.provisioning.GrantMissing(ctx, user, sub)
		if errs := summary.Errors(); len(errs) > 0 {
			res.Add(model.JobDetail{SubscriptionID: sub.ID, UserID: sub.UserID, Status: model.DetailError, Message: "provisioning retry failed", Provisioning: errs})
		}
	}
}
