package repository

import (
	"context"
	"time"

	"rust-vip-platform/internal/domain/model"
)

// SubscriptionRepository is the port for the subscription ledger.
type SubscriptionRepository interface {
	// Save inserts or updates the row by id.
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Subscription, error)
	FindByPreferenceID(ctx context.Context, tx Tx, preferenceID string) (*model.Subscription, error)
	// FindLatestPendingByUser returns the newest pending row of the user,
	// preferring rows for planID when one exists.
	FindLatestPendingByUser(ctx context.Context, tx Tx, userID, planID string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)

	// ListPending returns rows whose status or payment_status is pending,
	// newest first.
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.Subscription, error)
	// ListExpired returns active rows whose expires_at is before now.
	ListExpired(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)

	// ListUnprovisioned returns active rows with a provisioning flag still
	// false for an account the user has linked, least recently touched first.
	ListUnprovisioned(ctx context.Context, tx Tx, limit int) ([]*model.Subscription, error)

	SetProvisioned(ctx context.Context, tx Tx, id string, target model.ProvisionTarget, assigned bool) error

	// LockUser serializes ledger writes for one user until tx ends. It is a
	// no-op outside a transaction.
	LockUser(ctx context.Context, tx Tx, userID string) error
}
