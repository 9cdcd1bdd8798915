package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"rust-vip-platform/internal/domain/model"
)

// PaymentGateway is the hex port for the payment provider. Lookups may be
// served from a short-lived cache; failures after retries are returned as
// errors because provisioning must not run on an unknown payment state.
type PaymentGateway interface {
	Name() string

	GetPayment(ctx context.Context, id string) (*model.PaymentInfo, error)
	GetMerchantOrder(ctx context.Context, id string) (*model.MerchantOrder, error)
	// SearchPaymentsByReference returns payments carrying the external
	// reference, newest first.
	SearchPaymentsByReference(ctx context.Context, externalReference string) ([]model.PaymentInfo, error)
	CreatePreference(ctx context.Context, req model.PreferenceRequest) (*model.Preference, error)
}

// ProviderError is a non-2xx answer from an external API.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

// Transient reports whether retrying the same request may succeed.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports a 404 from any provider.
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
