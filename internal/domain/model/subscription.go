package model

import (
	"time"

	"rust-vip-platform/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// SubscriptionDuration is how long an approved payment keeps VIP active.
const SubscriptionDuration = 30 * 24 * time.Hour

// Subscription is a row of the ledger. Rows are never deleted; they only move
// to expired or cancelled.
type Subscription struct {
	ID                     string
	UserID                 string
	PlanID                 string
	PlanName               string
	Status                 SubscriptionStatus
	PaymentStatus          string // as reported by the provider
	PaymentID              *string
	PreferenceID           *string
	Amount                 float64
	CreatedAt              time.Time
	ExpiresAt              *time.Time
	UpdatedAt              time.Time
	DiscordRoleAssigned    bool
	RustPermissionAssigned bool
}

// NewPendingSubscription records a checkout that has not been paid yet.
func NewPendingSubscription(id, userID string, plan Plan, preferenceID string) (*Subscription, error) {
	if id == "" || userID == "" || plan.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	s := &Subscription{
		ID:            id,
		UserID:        userID,
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Status:        SubscriptionStatusPending,
		PaymentStatus: PaymentStatusPending,
		Amount:        plan.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if preferenceID != "" {
		s.PreferenceID = &preferenceID
	}
	return s, nil
}

// Activate moves the subscription to active for the given approved payment.
// Re-activating with the payment that already activated it keeps the
// original expiry so replays do not extend access.
func (s *Subscription) Activate(paymentID, paymentStatus string, amount float64, now time.Time) {
	sameActivation := s.Status == SubscriptionStatusActive && s.PaymentIDOrEmpty() == paymentID && s.ExpiresAt != nil
	if paymentID != "" {
		s.PaymentID = &paymentID
	}
	s.PaymentStatus = paymentStatus
	if amount > 0 {
		s.Amount = amount
	}
	s.Status = SubscriptionStatusActive
	if !sameActivation {
		exp := now.Add(SubscriptionDuration)
		s.ExpiresAt = &exp
	}
	s.UpdatedAt = now
}

func (s *Subscription) Cancel(paymentStatus string, now time.Time) {
	s.Status = SubscriptionStatusCancelled
	s.PaymentStatus = paymentStatus
	s.UpdatedAt = now
}

func (s *Subscription) Expire(now time.Time) {
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = now
}

func (s *Subscription) IsPending() bool {
	return s.Status == SubscriptionStatusPending || s.PaymentStatus == PaymentStatusPending
}

// IsClosed reports rows that can never become active again.
func (s *Subscription) IsClosed() bool {
	return s.Status == SubscriptionStatusExpired || s.Status == SubscriptionStatusCancelled
}

func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

func (s *Subscription) PaymentIDOrEmpty() string { return deref(s.PaymentID) }

// ExternalReference rebuilds the reference string sent to the provider at
// checkout time.
func (s *Subscription) ExternalReference() string {
	return BuildExternalReference(s.UserID, s.PlanID)
}
