// File: internal/infra/adapters/payment/mercadopago_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/infra/cache"
	"rust-vip-platform/internal/infra/metrics"
	"rust-vip-platform/internal/infra/retry"
)

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

const providerName = "mercadopago"

// MercadoPagoGateway implements adapter.PaymentGateway over the Mercado Pago
// REST API. Lookups whose outcome can no longer change are cached for a
// short TTL; every call goes through the retry policy.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
	policy      retry.Policy
	payments    *cache.Bounded[string, model.PaymentInfo]
	orders      *cache.Bounded[string, model.MerchantOrder]
	log         *zerolog.Logger
}

func NewMercadoPagoGateway(cfg config.MercadoPagoConfig, cacheCfg config.CacheConfig, policy retry.Policy, logger *zerolog.Logger) (*MercadoPagoGateway, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid mercadopago base url %q: %v", cfg.BaseURL, err)
	}
	gwLog := logger.With().Str("component", "MercadoPagoGateway").Logger()
	return &MercadoPagoGateway{
		accessToken: cfg.AccessToken,
		baseURL:     base,
		client:      &http.Client{Timeout: cfg.Timeout},
		policy:      policy,
		payments:    cache.NewBounded[string, model.PaymentInfo](cacheCfg.Size, cacheCfg.PaymentTTL),
		orders:      cache.NewBounded[string, model.MerchantOrder](cacheCfg.Size, cacheCfg.OrderTTL),
		log:         &gwLog,
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return providerName }

// ---- wire types ----

type mpPayment struct {
	ID                json.Number    `json:"id"`
	Status            string         `json:"status"`
	StatusDetail      string         `json:"status_detail"`
	ExternalReference string         `json:"external_reference"`
	TransactionAmount float64        `json:"transaction_amount"`
	CurrencyID        string         `json:"currency_id"`
	DateCreated       *time.Time     `json:"date_created"`
	DateApproved      *time.Time     `json:"date_approved"`
	PaymentMethodID   string         `json:"payment_method_id"`
	Metadata          map[string]any `json:"metadata"`
}

func (p mpPayment) toModel() model.PaymentInfo {
	out := model.PaymentInfo{
		ID:                p.ID.String(),
		Status:            strings.ToLower(p.Status),
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		Amount:            p.TransactionAmount,
		Currency:          p.CurrencyID,
		DateApproved:      p.DateApproved,
		PaymentMethodID:   p.PaymentMethodID,
		Metadata:          p.Metadata,
	}
	if p.DateCreated != nil {
		out.DateCreated = *p.DateCreated
	}
	return out
}

type mpMerchantOrder struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	Payments          []struct {
		ID                json.Number `json:"id"`
		Status            string      `json:"status"`
		TransactionAmount float64     `json:"transaction_amount"`
	} `json:"payments"`
}

func (o mpMerchantOrder) toModel() model.MerchantOrder {
	out := model.MerchantOrder{
		ID:                o.ID.String(),
		Status:            o.Status,
		ExternalReference: o.ExternalReference,
	}
	for _, p := range o.Payments {
		out.Payments = append(out.Payments, model.OrderPayment{
			ID:     p.ID.String(),
			Status: strings.ToLower(p.Status),
			Amount: p.TransactionAmount,
		})
	}
	return out
}

// ---- lookups ----

func (g *MercadoPagoGateway) GetPayment(ctx context.Context, id string) (*model.PaymentInfo, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	if p, ok := g.payments.Get(id); ok {
		metrics.IncCacheRequest("payment", true)
		return &p, nil
	}
	metrics.IncCacheRequest("payment", false)

	var raw mpPayment
	if err := g.do(ctx, "get_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	p := raw.toModel()
	if p.Approved() || model.IsTerminalFailure(p.Status) {
		g.payments.Add(id, p)
	}
	return &p, nil
}

func (g *MercadoPagoGateway) GetMerchantOrder(ctx context.Context, id string) (*model.MerchantOrder, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	if o, ok := g.orders.Get(id); ok {
		metrics.IncCacheRequest("merchant_order", true)
		return &o, nil
	}
	metrics.IncCacheRequest("merchant_order", false)

	var raw mpMerchantOrder
	if err := g.do(ctx, "get_merchant_order", http.MethodGet, "/merchant_orders/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	o := raw.toModel()
	if _, ok := o.FirstApproved(); ok {
		g.orders.Add(id, o)
	}
	return &o, nil
}

func (g *MercadoPagoGateway) SearchPaymentsByReference(ctx context.Context, externalReference string) ([]model.PaymentInfo, error) {
	if externalReference == "" {
		return nil, domain.ErrInvalidArgument
	}
	q := url.Values{}
	q.Set("external_reference", externalReference)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	var out struct {
		Results []mpPayment `json:"results"`
	}
	if err := g.do(ctx, "search_payments", http.MethodGet, "/v1/payments/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	res := make([]model.PaymentInfo, 0, len(out.Results))
	for _, p := range out.Results {
		res = append(res, p.toModel())
	}
	return res, nil
}

// CreatePreference opens a checkout. The same idempotency key is sent on
// every retry so the provider creates at most one preference.
func (g *MercadoPagoGateway) CreatePreference(ctx context.Context, req model.PreferenceRequest) (*model.Preference, error) {
	type item struct {
		ID         string  `json:"id"`
		Title      string  `json:"title"`
		Quantity   int     `json:"quantity"`
		UnitPrice  float64 `json:"unit_price"`
		CurrencyID string  `json:"currency_id"`
	}
	type excluded struct {
		ID string `json:"id"`
	}
	excl := make([]excluded, 0, len(req.ExcludedTypes))
	for _, t := range req.ExcludedTypes {
		excl = append(excl, excluded{ID: t})
	}
	payload := map[string]any{
		"items": []item{{
			ID:         req.PlanID,
			Title:      req.Title,
			Quantity:   1,
			UnitPrice:  req.UnitPrice,
			CurrencyID: req.Currency,
		}},
		"back_urls": map[string]string{
			"success": req.SuccessURL,
			"failure": req.FailureURL,
			"pending": req.PendingURL,
		},
		"auto_return":        "approved",
		"notification_url":   req.NotificationURL,
		"external_reference": req.ExternalReference,
		"payment_methods": map[string]any{
			"excluded_payment_types": excl,
			"installments":           req.Installments,
		},
		"metadata": req.Metadata,
	}

	var out struct {
		ID               string `json:"id"`
		InitPoint        string `json:"init_point"`
		SandboxInitPoint string `json:"sandbox_init_point"`
	}
	if err := g.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.InitPoint == "" {
		return nil, fmt.Errorf("mercadopago create preference: empty response")
	}
	return &model.Preference{ID: out.ID, InitPoint: out.InitPoint, SandboxInitPoint: out.SandboxInitPoint}, nil
}

// do performs one API call under the retry policy and decodes a 2xx body
// into out.
func (g *MercadoPagoGateway) do(ctx context.Context, op, method, path string, body, out any) error {
	if g.accessToken == "" {
		return fmt.Errorf("mercadopago %s: %w", op, domain.ErrNotConfigured)
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("mercadopago %s: marshal: %w", op, err)
		}
		payload = b
	}
	idemKey := uuid.NewString()

	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Idempotency-Key", idemKey)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			metrics.ObservePaymentAPICall(op, "transport_error", time.Since(start).Milliseconds())
			return err
		}
		defer resp.Body.Close()
		metrics.ObservePaymentAPICall(op, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start).Milliseconds())

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &adapter.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Body: string(b)}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("mercadopago %s: decode: %w", op, err))
		}
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		g.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).Msg("payment api call failed; retrying")
	})
	if err != nil {
		g.log.Error().Err(err).Str("op", op).Msg("payment api call failed")
	}
	return err
}
