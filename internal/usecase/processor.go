// File: internal/usecase/processor.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
)

// ProcessOptions tunes a single Process call.
type ProcessOptions struct {
	// Force skips the processed-marker check (admin reprocess, sweeps).
	Force bool
}

// NotificationProcessor turns a provider notification into an approved
// payment, or a non-success result explaining why there is none. It only
// reads from the provider; ledger writes and provisioning belong to the
// caller.
type NotificationProcessor struct {
	gateway adapter.PaymentGateway
	markers repository.MarkerStore
	log     *zerolog.Logger
}

func NewNotificationProcessor(gateway adapter.PaymentGateway, markers repository.MarkerStore, logger *zerolog.Logger) *NotificationProcessor {
	l := logger.With().Str("component", "NotificationProcessor").Logger()
	return &NotificationProcessor{gateway: gateway, markers: markers, log: &l}
}

// Process returns an error only when the payment state could not be read;
// every business outcome is a ProcessResult.
func (p *NotificationProcessor) Process(ctx context.Context, n model.Notification, opts ProcessOptions) (model.ProcessResult, error) {
	if !n.Valid() {
		return model.ProcessResult{Message: model.MsgMissingID}, nil
	}

	if !opts.Force {
		seen, err := p.markers.Seen(ctx, n.IdempotencyKey())
		if err != nil {
			p.log.Warn().Err(err).Str("key", n.IdempotencyKey()).Msg("marker lookup failed; processing anyway")
		}
		if seen {
			return model.ProcessResult{Success: true, Message: model.MsgAlreadyProcessed, AlreadyProcessed: true}, nil
		}
	}

	paymentID := n.ID
	switch n.Topic {
	case model.TopicPayment:
	case model.TopicMerchantOrder:
		order, err := p.gateway.GetMerchantOrder(ctx, n.ID)
		if err != nil {
			return model.ProcessResult{}, fmt.Errorf("fetch merchant order %s: %w", n.ID, err)
		}
		approved, ok := order.FirstApproved()
		if !ok {
			return model.ProcessResult{Message: model.MsgNoApprovedPayment, Status: order.Status}, nil
		}
		paymentID = approved.ID
	default:
		return model.ProcessResult{Message: model.MsgUnsupportedTopic}, nil
	}

	payment, err := p.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return model.ProcessResult{}, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	if !payment.Approved() {
		return model.ProcessResult{Message: model.MsgPaymentNotApproved, Status: payment.Status}, nil
	}

	userID, planID := payment.ResolveOwner()
	if userID == "" || planID == "" {
		p.log.Warn().Str("payment_id", payment.ID).Str("external_reference", payment.ExternalReference).Msg("approved payment without owner")
		return model.ProcessResult{Message: model.MsgUnresolvableOwner, Status: payment.Status}, nil
	}

	return model.ProcessResult{
		Success: true,
		Status:  payment.Status,
		Data: &model.ApprovedPayment{
			UserID:        userID,
			PlanID:        planID,
			PaymentID:     payment.ID,
			Status:        payment.Status,
			Amount:        payment.Amount,
			Date:          payment.Date(),
			PaymentMethod: payment.PaymentMethodID,
		},
	}, nil
}

// Complete records n as fully processed.
func (p *NotificationProcessor) Complete(ctx context.Context, n model.Notification) error {
	return p.markers.Mark(ctx, n.IdempotencyKey())
}
