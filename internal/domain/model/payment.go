package model

import (
	"fmt"
	"strings"
	"time"
)

// Provider payment statuses. Only the ones the ledger reacts to are listed.
const (
	PaymentStatusApproved  = "approved"
	PaymentStatusPending   = "pending"
	PaymentStatusInProcess = "in_process"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"

	// PaymentStatusSuperseded marks a checkout closed because its payment
	// was applied to another row of the same user.
	PaymentStatusSuperseded = "superseded"
)

// IsTerminalFailure reports statuses after which a pending subscription is
// cancelled.
func IsTerminalFailure(status string) bool {
	switch strings.ToLower(status) {
	case PaymentStatusRejected, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentInfo is the provider's view of a single payment.
type PaymentInfo struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            float64
	Currency          string
	DateCreated       time.Time
	DateApproved      *time.Time
	PaymentMethodID   string
	Metadata          map[string]any
}

func (p *PaymentInfo) Approved() bool { return strings.EqualFold(p.Status, PaymentStatusApproved) }

// Date is the most meaningful timestamp of the payment.
func (p *PaymentInfo) Date() time.Time {
	if p.DateApproved != nil {
		return *p.DateApproved
	}
	return p.DateCreated
}

type OrderPayment struct {
	ID     string
	Status string
	Amount float64
}

// MerchantOrder groups the payments made against a single checkout.
type MerchantOrder struct {
	ID                string
	Status            string
	ExternalReference string
	Payments          []OrderPayment
}

// FirstApproved returns the first payment of the order with status approved.
func (o *MerchantOrder) FirstApproved() (OrderPayment, bool) {
	for _, p := range o.Payments {
		if strings.EqualFold(p.Status, PaymentStatusApproved) {
			return p, true
		}
	}
	return OrderPayment{}, false
}

// PreferenceRequest carries everything needed to open a checkout.
type PreferenceRequest struct {
	Title             string
	PlanID            string
	UserID            string
	UnitPrice         float64
	Currency          string
	ExternalReference string
	NotificationURL   string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	ExcludedTypes     []string
	Installments      int
	Metadata          map[string]any
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

const externalReferenceSep = "|"

func BuildExternalReference(userID, planID string) string {
	return userID + externalReferenceSep + planID
}

// ParseExternalReference splits "<userId>|<planId>". ok is false when the
// delimiter is absent.
func ParseExternalReference(ref string) (userID, planID string, ok bool) {
	i := strings.Index(ref, externalReferenceSep)
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(ref[:i]), strings.TrimSpace(ref[i+1:]), true
}

// ResolveOwner finds the user and plan a payment belongs to, using the
// external reference first and the metadata fields as fallback.
func (p *PaymentInfo) ResolveOwner() (userID, planID string) {
	if u, pl, ok := ParseExternalReference(p.ExternalReference); ok {
		userID, planID = u, pl
	}
	if userID == "" {
		userID = metaString(p.Metadata, "user_id", "userId")
	}
	if planID == "" {
		planID = metaString(p.Metadata, "plan_id", "planId")
	}
	return userID, planID
}

func metaString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return fmt.Sprintf("%.0f", t)
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}
