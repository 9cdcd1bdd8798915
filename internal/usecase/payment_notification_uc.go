// File: internal/usecase/payment_notification_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/logging"
)

// NotificationOutcome is everything that happened for one notification.
type NotificationOutcome struct {
	Result         model.ProcessResult     `json:"result"`
	SubscriptionID string                  `json:"subscriptionId,omitempty"`
	Provisioning   *model.ProvisionSummary `json:"provisioning,omitempty"`
}

// PaymentNotificationUseCase runs the full chain for a notification:
// processor, ledger write, both provisioning calls, and finally the
// processed marker. Concurrent deliveries of the same notification share
// one execution.
type PaymentNotificationUseCase struct {
	processor    *NotificationProcessor
	ledger       *LedgerUseCase
	provisioning *ProvisioningUseCase
	inflight     singleflight.Group
	log          *zerolog.Logger
}

func NewPaymentNotificationUseCase(processor *NotificationProcessor, ledger *LedgerUseCase, provisioning *ProvisioningUseCase, logger *zerolog.Logger) *PaymentNotificationUseCase {
	l := logger.With().Str("component", "PaymentNotificationUseCase").Logger()
	return &PaymentNotificationUseCase{processor: processor, ledger: ledger, provisioning: provisioning, log: &l}
}

// Handle processes a provider notification, short-circuiting on the
// processed marker.
func (uc *PaymentNotificationUseCase) Handle(ctx context.Context, n model.Notification) (*NotificationOutcome, error) {
	return uc.do(ctx, n, ProcessOptions{})
}

// Reprocess ignores the processed marker. Used by admins and the pending
// sweep.
func (uc *PaymentNotificationUseCase) Reprocess(ctx context.Context, n model.Notification) (*NotificationOutcome, error) {
	return uc.do(ctx, n, ProcessOptions{Force: true})
}

func (uc *PaymentNotificationUseCase) do(ctx context.Context, n model.Notification, opts ProcessOptions) (*NotificationOutcome, error) {
	key := n.IdempotencyKey()
	if opts.Force {
		key = "force:" + key
	}
	v, err, shared := uc.inflight.Do(key, func() (any, error) {
		return uc.run(ctx, n, opts)
	})
	if shared {
		uc.log.Debug().Str("key", key).Msg("joined in-flight notification")
	}
	if err != nil {
		return nil, err
	}
	return v.(*NotificationOutcome), nil
}

func (uc *PaymentNotificationUseCase) run(ctx context.Context, n model.Notification, opts ProcessOptions) (*NotificationOutcome, error) {
	ctx = logging.WithPaymentID(ctx, n.ID)
	log := logging.With(ctx, uc.log)

	res, err := uc.processor.Process(ctx, n, opts)
	if err != nil {
		log.Error().Err(err).Str("topic", n.Topic).Msg("notification processing failed")
		return nil, err
	}
	out := &NotificationOutcome{Result: res}
	if !res.Success || res.AlreadyProcessed {
		log.Info().Bool("success", res.Success).Str("message", res.Message).Str("status", res.Status).Msg("notification produced no activation")
		return out, nil
	}

	sub, user, err := uc.ledger.ApplyApproved(ctx, res.Data)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.Warn().Str("user_id", res.Data.UserID).Msg("approved payment for unknown user")
			out.Result = model.ProcessResult{Message: domain.ErrUserNotFound.Error(), Status: res.Status, Data: res.Data}
			return out, nil
		}
		if errors.Is(err, domain.ErrPaymentConsumed) {
			log.Info().Err(err).Str("user_id", res.Data.UserID).Msg("payment already used")
			out.Result = model.ProcessResult{Message: domain.ErrPaymentConsumed.Error(), Status: res.Status, Data: res.Data}
			if err := uc.processor.Complete(ctx, n); err != nil {
				log.Warn().Err(err).Msg("failed to record processed marker")
			}
			return out, nil
		}
		log.Error().Err(err).Str("user_id", res.Data.UserID).Msg("ledger write failed")
		return nil, err
	}
	out.SubscriptionID = sub.ID

	summary := uc.provisioning.Grant(ctx, user, sub)
	out.Provisioning = &summary

	if err := uc.processor.Complete(ctx, n); err != nil {
		log.Warn().Err(err).Msg("failed to record processed marker")
	}
	log.Info().Str("subscription_id", sub.ID).Str("user_id", user.ID).Bool("provisioned", summary.AllOK()).Msg("payment applied")
	return out, nil
}
