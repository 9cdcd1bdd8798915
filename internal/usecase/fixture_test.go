//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/adapters/payment"
	"rust-vip-platform/internal/infra/cache"
	"rust-vip-platform/internal/usecase"
)

// fixture wires every use case over in-memory collaborators.
type fixture struct {
	users   *MockUserRepo
	subs    *MockSubscriptionRepo
	logs    *MockSystemLogRepo
	locker  *MockLocker
	markers *cache.MarkerSet
	store   *payment.NoopPaymentGateway
	gateway *MockPaymentGateway
	discord *MockProvisioner
	game    *MockProvisioner

	processor     *usecase.NotificationProcessor
	ledger        *usecase.LedgerUseCase
	provisioning  *usecase.ProvisioningUseCase
	notifications *usecase.PaymentNotificationUseCase
	reconcile     *usecase.ReconcileUseCase
	expiry        *usecase.ExpiryUseCase
}

func newFixture(t *testing.T, sweep usecase.SweepConfig) *fixture {
	t.Helper()
	logger := newTestLogger()

	f := &fixture{
		users:   NewMockUserRepo(),
		logs:    &MockSystemLogRepo{},
		locker:  NewMockLocker(),
		markers: cache.NewMarkerSet(1000),
		store:   payment.NewNoopPaymentGateway(),
		discord: NewMockProvisioner(model.TargetDiscord),
		game:    NewMockProvisioner(model.TargetGameServer),
	}
	f.subs = NewMockSubscriptionRepo(f.users)
	f.gateway = &MockPaymentGateway{PaymentGateway: f.store}

	f.processor = usecase.NewNotificationProcessor(f.gateway, f.markers, logger)
	f.ledger = usecase.NewLedgerUseCase(f.users, f.subs, NewMockTxManager(), logger)
	f.provisioning = usecase.NewProvisioningUseCase(f.discord, f.game, f.users, f.subs, logger)
	f.notifications = usecase.NewPaymentNotificationUseCase(f.processor, f.ledger, f.provisioning, logger)
	f.reconcile = usecase.NewReconcileUseCase(f.subs, f.users, f.gateway, f.notifications, f.ledger, f.provisioning, f.locker, f.logs, sweep, logger)
	f.expiry = usecase.NewExpiryUseCase(f.subs, f.ledger, f.provisioning, f.locker, f.logs, sweep, logger)
	return f
}

func approvedPayment(id, ref string, amount float64) model.PaymentInfo {
	approved := time.Now()
	return model.PaymentInfo{
		ID:                id,
		Status:            model.PaymentStatusApproved,
		ExternalReference: ref,
		Amount:            amount,
		Currency:          "BRL",
		DateCreated:       approved.Add(-time.Minute),
		DateApproved:      &approved,
		PaymentMethodID:   "pix",
	}
}

func paymentWithStatus(id, ref, status string) model.PaymentInfo {
	return model.PaymentInfo{ID: id, Status: status, ExternalReference: ref, Amount: 19.9, DateCreated: time.Now()}
}

// seedPending stores a pending checkout row created at createdAt.
func (f *fixture) seedPending(t *testing.T, id, userID, planID, paymentID string, createdAt time.Time) *model.Subscription {
	t.Helper()
	plan, ok := model.LookupPlan(planID)
	if !ok {
		t.Fatalf("unknown plan %s", planID)
	}
	sub, err := model.NewPendingSubscription(id, userID, plan, "pref-"+id)
	if err != nil {
		t.Fatalf("failed to build subscription: %v", err)
	}
	sub.CreatedAt = createdAt
	if paymentID != "" {
		sub.PaymentID = &paymentID
	}
	if err := f.subs.Save(context.Background(), repository.NoTX, sub); err != nil {
		t.Fatalf("failed to seed subscription: %v", err)
	}
	return sub
}

// seedActive stores an active row expiring at expiresAt.
func (f *fixture) seedActive(t *testing.T, id, userID, planID string, expiresAt time.Time) *model.Subscription {
	t.Helper()
	sub := f.seedPending(t, id, userID, planID, "pay-"+id, expiresAt.Add(-model.SubscriptionDuration))
	sub.Status = model.SubscriptionStatusActive
	sub.PaymentStatus = model.PaymentStatusApproved
	sub.ExpiresAt = &expiresAt
	sub.DiscordRoleAssigned = true
	sub.RustPermissionAssigned = true
	if err := f.subs.Save(context.Background(), repository.NoTX, sub); err != nil {
		t.Fatalf("failed to seed active subscription: %v", err)
	}
	return sub
}
