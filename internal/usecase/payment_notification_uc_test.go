//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/usecase"
)

func TestPaymentNotificationUseCase_Handle(t *testing.T) {
	ctx := context.Background()
	n := model.Notification{ID: "123", Topic: model.TopicPayment}

	t.Run("should activate the pending checkout and provision both systems", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.seedPending(t, "sub-1", "u1", "vip-plus", "", time.Now().Add(-time.Minute))
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))

		// --- Act ---
		out, err := f.notifications.Handle(ctx, n)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.Result.Success || out.SubscriptionID != "sub-1" {
			t.Fatalf("unexpected outcome: %+v", out)
		}
		sub := f.subs.Get("sub-1")
		if sub.Status != model.SubscriptionStatusActive || sub.PaymentIDOrEmpty() != "123" || sub.PlanName != "VIP Plus" {
			t.Errorf("unexpected subscription: %+v", sub)
		}
		if sub.ExpiresAt == nil || time.Until(*sub.ExpiresAt) < 29*24*time.Hour {
			t.Errorf("expected expiry about 30 days out, got %v", sub.ExpiresAt)
		}
		if !sub.DiscordRoleAssigned || !sub.RustPermissionAssigned {
			t.Error("expected both provisioning flags to be set")
		}
		user, _ := f.users.FindByID(ctx, nil, "u1")
		if user.Role != model.RoleVIPPlus {
			t.Errorf("expected role vip-plus, got %s", user.Role)
		}
		if f.discord.CallCount(model.ActionAdd) != 1 || f.game.CallCount(model.ActionAdd) != 1 {
			t.Error("expected one add call per system")
		}
		if seen, _ := f.markers.Seen(ctx, n.IdempotencyKey()); !seen {
			t.Error("expected the notification to be marked processed")
		}
	})

	t.Run("should not provision again on a replay", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))
		if _, err := f.notifications.Handle(ctx, n); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}

		out, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.Result.AlreadyProcessed || out.Result.Message != model.MsgAlreadyProcessed {
			t.Errorf("expected already processed, got %+v", out.Result)
		}
		if f.discord.CallCount(model.ActionAdd) != 1 || f.game.CallCount(model.ActionAdd) != 1 {
			t.Error("expected no new provisioning calls")
		}
		if f.subs.Count() != 1 {
			t.Errorf("expected a single ledger row, got %d", f.subs.Count())
		}
	})

	t.Run("should create the ledger row when no checkout exists", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.store.PutPayment(approvedPayment("123", "u1|vip-basic", 19.9))

		out, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		sub := f.subs.Get(out.SubscriptionID)
		if sub == nil || sub.Status != model.SubscriptionStatusActive || sub.PlanName != "VIP Básico" || sub.Amount != 19.9 {
			t.Errorf("unexpected subscription: %+v", sub)
		}
	})

	t.Run("should supersede the previous active subscription", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.seedActive(t, "old", "u1", "vip-basic", time.Now().Add(5*24*time.Hour))
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))

		out, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if old := f.subs.Get("old"); old.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected the old row to be expired, got %s", old.Status)
		}
		if sub := f.subs.Get(out.SubscriptionID); sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected the new row to be active, got %s", sub.Status)
		}
	})

	t.Run("should keep going when one provisioning call fails", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))
		f.discord.ResultFunc = func(a model.ProvisionAction, id string) model.ProvisionResult {
			r := model.ProvisionFailure(model.TargetDiscord, a, model.ProvisionRejected, "missing permissions")
			r.StatusCode = 403
			return r
		}

		out, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Provisioning == nil || out.Provisioning.Discord.OK() || !out.Provisioning.GameServer.OK() {
			t.Fatalf("unexpected provisioning summary: %+v", out.Provisioning)
		}
		sub := f.subs.Get(out.SubscriptionID)
		if sub.DiscordRoleAssigned || !sub.RustPermissionAssigned {
			t.Errorf("unexpected flags discord=%v game=%v", sub.DiscordRoleAssigned, sub.RustPermissionAssigned)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected the subscription to stay active, got %s", sub.Status)
		}
	})

	t.Run("should not mark a payment for an unknown user", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutPayment(approvedPayment("123", "ghost|vip-plus", 39.9))

		out, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Result.Success {
			t.Errorf("expected a non-success outcome, got %+v", out.Result)
		}
		if seen, _ := f.markers.Seen(ctx, n.IdempotencyKey()); seen {
			t.Error("expected no processed marker")
		}
		if f.discord.CallCount(model.ActionAdd) != 0 {
			t.Error("expected no provisioning")
		}
	})

	t.Run("should not reopen an expired subscription when its payment is delivered again", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.seedActive(t, "s1", "u1", "vip-basic", time.Now().Add(-time.Hour))
		f.store.PutPayment(approvedPayment("pay-s1", "u1|vip-basic", 19.9))
		if _, err := f.expiry.ExpireDue(ctx); err != nil {
			t.Fatalf("expiry sweep failed: %v", err)
		}
		replay := model.Notification{ID: "pay-s1", Topic: model.TopicPayment}

		// --- Act ---
		out, err := f.notifications.Handle(ctx, replay)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Result.Success || out.Result.Message != domain.ErrPaymentConsumed.Error() {
			t.Errorf("expected a payment already used outcome, got %+v", out.Result)
		}
		if s := f.subs.Get("s1"); s.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected s1 to stay expired, got %s", s.Status)
		}
		if f.subs.Count() != 1 {
			t.Errorf("expected no new ledger row, got %d rows", f.subs.Count())
		}
		if f.discord.CallCount(model.ActionAdd) != 0 || f.game.CallCount(model.ActionAdd) != 0 {
			t.Error("expected no provisioning for a used payment")
		}
		user, _ := f.users.FindByID(ctx, nil, "u1")
		if user.Role != model.RoleUser {
			t.Errorf("expected role user, got %s", user.Role)
		}
	})

	t.Run("should not reopen a cancelled subscription", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.seedPending(t, "s1", "u1", "vip-plus", "123", time.Now().Add(-time.Minute))
		if _, err := f.ledger.MarkCancelled(ctx, "s1", model.PaymentStatusRejected); err != nil {
			t.Fatalf("failed to cancel: %v", err)
		}
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))

		out, err := f.notifications.Handle(ctx, n)

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Result.Success {
			t.Errorf("expected a non-success outcome, got %+v", out.Result)
		}
		if s := f.subs.Get("s1"); s.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected s1 to stay cancelled, got %s", s.Status)
		}
	})

	t.Run("should provision once for concurrent duplicate deliveries", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.notifications.Handle(ctx, n); err != nil {
					t.Errorf("delivery failed: %v", err)
				}
			}()
		}
		wg.Wait()

		if got := f.discord.CallCount(model.ActionAdd); got != 1 {
			t.Errorf("expected 1 discord add, got %d", got)
		}
		if f.subs.Count() != 1 {
			t.Errorf("expected a single ledger row, got %d", f.subs.Count())
		}
	})
}

func TestPaymentNotificationUseCase_Reprocess(t *testing.T) {
	ctx := context.Background()
	n := model.Notification{ID: "123", Topic: model.TopicPayment}

	t.Run("should run again without extending the expiry", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))
		first, err := f.notifications.Handle(ctx, n)
		if err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		expiresAt := *f.subs.Get(first.SubscriptionID).ExpiresAt

		// --- Act ---
		out, err := f.notifications.Reprocess(ctx, n)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Result.AlreadyProcessed || out.SubscriptionID != first.SubscriptionID {
			t.Errorf("unexpected outcome: %+v", out)
		}
		if got := *f.subs.Get(first.SubscriptionID).ExpiresAt; !got.Equal(expiresAt) {
			t.Errorf("expected expiry %v to be kept, got %v", expiresAt, got)
		}
		if f.discord.CallCount(model.ActionAdd) != 2 {
			t.Error("expected provisioning to be repeated")
		}
	})

	t.Run("should refuse a payment whose subscription already expired", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t, usecase.SweepConfig{})
		seedUser(f.users, "u1")
		f.seedActive(t, "s1", "u1", "vip-plus", time.Now().Add(-time.Minute))
		f.store.PutPayment(approvedPayment("pay-s1", "u1|vip-plus", 39.9))
		if _, err := f.expiry.ExpireDue(ctx); err != nil {
			t.Fatalf("expiry sweep failed: %v", err)
		}

		// --- Act ---
		out, err := f.notifications.Reprocess(ctx, model.Notification{ID: "pay-s1", Topic: model.TopicPayment})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Result.Success {
			t.Errorf("expected a non-success outcome, got %+v", out.Result)
		}
		if s := f.subs.Get("s1"); s.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected s1 to stay expired, got %s", s.Status)
		}
		if f.discord.CallCount(model.ActionAdd) != 0 {
			t.Error("expected no provisioning")
		}
	})
}
