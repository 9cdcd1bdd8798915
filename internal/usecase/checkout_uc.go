// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
)

// CheckoutConfig holds what a payment preference needs besides the plan.
type CheckoutConfig struct {
	PublicURL     string
	Currency      string
	ExcludedTypes []string
	Installments  int
}

// CheckoutSession is handed back to the browser to redirect the buyer.
type CheckoutSession struct {
	SubscriptionID string `json:"subscriptionId"`
	PreferenceID   string `json:"preferenceId"`
	InitPoint      string `json:"init_point"`
}

// CheckoutUseCase opens a provider checkout for a plan and records the
// pending subscription the webhook will later activate.
type CheckoutUseCase struct {
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	cfg     CheckoutConfig
	log     *zerolog.Logger
}

func NewCheckoutUseCase(users repository.UserRepository, subs repository.SubscriptionRepository, gateway adapter.PaymentGateway, cfg CheckoutConfig, logger *zerolog.Logger) *CheckoutUseCase {
	l := logger.With().Str("component", "CheckoutUseCase").Logger()
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &CheckoutUseCase{users: users, subs: subs, gateway: gateway, cfg: cfg, log: &l}
}

func (uc *CheckoutUseCase) Start(ctx context.Context, userID, planID string) (*CheckoutSession, error) {
	plan, ok := model.LookupPlan(planID)
	if !ok {
		return nil, domain.ErrUnknownPlan
	}
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	ref := model.BuildExternalReference(user.ID, plan.ID)
	req := model.PreferenceRequest{
		Title:             plan.Name,
		PlanID:            plan.ID,
		UserID:            user.ID,
		UnitPrice:         plan.Price,
		Currency:          uc.cfg.Currency,
		ExternalReference: ref,
		NotificationURL:   uc.cfg.PublicURL + "/api/webhooks/payment",
		SuccessURL:        uc.cfg.PublicURL + "/vip/success",
		FailureURL:        uc.cfg.PublicURL + "/vip/failure",
		PendingURL:        uc.cfg.PublicURL + "/vip/pending",
		ExcludedTypes:     uc.cfg.ExcludedTypes,
		Installments:      uc.cfg.Installments,
		Metadata:          map[string]any{"user_id": user.ID, "plan_id": plan.ID},
	}
	pref, err := uc.gateway.CreatePreference(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	sub, err := model.NewPendingSubscription(uuid.NewString(), user.ID, plan, pref.ID)
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}

	uc.log.Info().Str("user_id", user.ID).Str("plan_id", plan.ID).Str("preference_id", pref.ID).Msg("checkout started")
	return &CheckoutSession{SubscriptionID: sub.ID, PreferenceID: pref.ID, InitPoint: pref.InitPoint}, nil
}
