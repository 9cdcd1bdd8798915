//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/usecase"
)

func TestNotificationProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the approved payment with owner from the reference", func(t *testing.T) {
		// --- Arrange ---
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutPayment(approvedPayment("123", "u1|vip-plus", 39.9))

		// --- Act ---
		res, err := f.processor.Process(ctx, model.Notification{ID: "123", Topic: model.TopicPayment}, usecase.ProcessOptions{})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !res.Success || res.Data == nil {
			t.Fatalf("expected success with data, got %+v", res)
		}
		d := res.Data
		if d.UserID != "u1" || d.PlanID != "vip-plus" || d.PaymentID != "123" || d.Amount != 39.9 || d.Status != "approved" || d.PaymentMethod != "pix" {
			t.Errorf("unexpected data: %+v", d)
		}
		if d.Date.IsZero() {
			t.Error("expected the approval date to be set")
		}
	})

	t.Run("should fall back to metadata when the reference is missing", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		p := approvedPayment("124", "", 19.9)
		p.Metadata = map[string]any{"user_id": "u2", "plan_id": "vip-basic"}
		f.store.PutPayment(p)

		res, err := f.processor.Process(ctx, model.Notification{ID: "124", Topic: model.TopicPayment}, usecase.ProcessOptions{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !res.Success || res.Data.UserID != "u2" || res.Data.PlanID != "vip-basic" {
			t.Errorf("expected owner from metadata, got %+v", res)
		}
	})

	t.Run("should report an unresolvable owner", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutPayment(approvedPayment("125", "no-delimiter", 19.9))

		res, err := f.processor.Process(ctx, model.Notification{ID: "125", Topic: model.TopicPayment}, usecase.ProcessOptions{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Success || res.Message != model.MsgUnresolvableOwner {
			t.Errorf("expected unresolvable owner, got %+v", res)
		}
	})

	t.Run("should return the provider status when not approved", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutPayment(paymentWithStatus("126", "u1|vip-basic", model.PaymentStatusPending))

		res, err := f.processor.Process(ctx, model.Notification{ID: "126", Topic: model.TopicPayment}, usecase.ProcessOptions{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Success || res.Status != model.PaymentStatusPending || res.Message != model.MsgPaymentNotApproved {
			t.Errorf("expected pending non-success, got %+v", res)
		}
	})

	t.Run("should report a merchant order without approved payments", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutMerchantOrder(model.MerchantOrder{
			ID:       "555",
			Status:   "opened",
			Payments: []model.OrderPayment{{ID: "1", Status: "rejected"}},
		})

		res, err := f.processor.Process(ctx, model.Notification{ID: "555", Topic: model.TopicMerchantOrder}, usecase.ProcessOptions{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Success || res.Message != model.MsgNoApprovedPayment || res.Status != "opened" {
			t.Errorf("expected no approved payment, got %+v", res)
		}
	})

	t.Run("should follow a merchant order to its first approved payment", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutMerchantOrder(model.MerchantOrder{
			ID:     "556",
			Status: "closed",
			Payments: []model.OrderPayment{
				{ID: "1", Status: "rejected"},
				{ID: "2", Status: "approved"},
				{ID: "3", Status: "approved"},
			},
		})
		f.store.PutPayment(approvedPayment("2", "u1|vip-plus", 39.9))

		res, err := f.processor.Process(ctx, model.Notification{ID: "556", Topic: model.TopicMerchantOrder}, usecase.ProcessOptions{})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !res.Success || res.Data.PaymentID != "2" {
			t.Errorf("expected payment 2, got %+v", res)
		}
	})

	t.Run("should short-circuit on the processed marker unless forced", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		f.store.PutPayment(approvedPayment("127", "u1|vip-plus", 39.9))
		n := model.Notification{ID: "127", Topic: model.TopicPayment}
		if err := f.processor.Complete(ctx, n); err != nil {
			t.Fatalf("failed to mark: %v", err)
		}

		res, _ := f.processor.Process(ctx, n, usecase.ProcessOptions{})
		if !res.Success || !res.AlreadyProcessed || res.Message != model.MsgAlreadyProcessed {
			t.Errorf("expected already processed, got %+v", res)
		}

		res, _ = f.processor.Process(ctx, n, usecase.ProcessOptions{Force: true})
		if res.AlreadyProcessed || res.Data == nil {
			t.Errorf("expected forced processing, got %+v", res)
		}
	})

	t.Run("should fail when the payment cannot be read", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})
		boom := errors.New("provider down")
		f.gateway.GetPaymentFunc = func(ctx context.Context, id string) (*model.PaymentInfo, error) { return nil, boom }

		_, err := f.processor.Process(ctx, model.Notification{ID: "128", Topic: model.TopicPayment}, usecase.ProcessOptions{})
		if !errors.Is(err, boom) {
			t.Errorf("expected the provider error, got %v", err)
		}
	})

	t.Run("should reject unknown topics and missing ids", func(t *testing.T) {
		f := newFixture(t, usecase.SweepConfig{})

		res, _ := f.processor.Process(ctx, model.Notification{ID: "1", Topic: "chargebacks"}, usecase.ProcessOptions{})
		if res.Success || res.Message != model.MsgUnsupportedTopic {
			t.Errorf("expected unsupported topic, got %+v", res)
		}
		res, _ = f.processor.Process(ctx, model.Notification{Topic: model.TopicPayment}, usecase.ProcessOptions{})
		if res.Success || res.Message != model.MsgMissingID {
			t.Errorf("expected missing id, got %+v", res)
		}
	})
}
