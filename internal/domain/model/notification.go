package model

import (
	"strings"
	"time"
)

const (
	TopicPayment       = "payment"
	TopicMerchantOrder = "merchant_order"
)

// Notification is the normalized form of a provider callback.
type Notification struct {
	ID    string
	Topic string
}

// NormalizeTopic folds the topic spellings used across notification channels
// ("payment", "payment.created", "merchant_order", "topic_merchant_order_wh")
// onto the two topics the processor understands.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	switch {
	case strings.Contains(t, "merchant_order"):
		return TopicMerchantOrder
	case strings.HasPrefix(t, "payment"):
		return TopicPayment
	}
	return t
}

// IdempotencyKey is the marker key "topic:id".
func (n Notification) IdempotencyKey() string { return n.Topic + ":" + n.ID }

func (n Notification) Valid() bool { return n.ID != "" && n.Topic != "" }

// ApprovedPayment is what the processor hands back for an approved payment.
type ApprovedPayment struct {
	UserID        string    `json:"userId"`
	PlanID        string    `json:"planId"`
	PaymentID     string    `json:"paymentId"`
	Status        string    `json:"status"`
	Amount        float64   `json:"amount"`
	Date          time.Time `json:"date"`
	PaymentMethod string    `json:"payment_method"`
}

// ProcessResult is a business outcome, never an error: non-success results
// still produce a 200 for the provider.
type ProcessResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Status  string           `json:"status,omitempty"` // provider status when not approved
	Data    *ApprovedPayment `json:"data,omitempty"`

	// AlreadyProcessed is set when the idempotency marker short-circuited.
	AlreadyProcessed bool `json:"-"`
}

const (
	MsgAlreadyProcessed   = "already processed"
	MsgNoApprovedPayment  = "no approved payment in order"
	MsgPaymentNotApproved = "payment not approved"
	MsgUnresolvableOwner  = "could not resolve user or plan from payment"
	MsgUnsupportedTopic   = "unsupported topic"
	MsgMissingID          = "notification id not found"
)
