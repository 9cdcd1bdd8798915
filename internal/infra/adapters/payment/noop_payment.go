package payment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. Payments
// and orders are seeded with PutPayment / PutMerchantOrder.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	payments map[string]model.PaymentInfo
	orders   map[string]model.MerchantOrder
	prefs    map[string]model.PreferenceRequest
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		payments: make(map[string]model.PaymentInfo),
		orders:   make(map[string]model.MerchantOrder),
		prefs:    make(map[string]model.PreferenceRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) PutPayment(p model.PaymentInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[p.ID] = p
}

func (g *NoopPaymentGateway) PutMerchantOrder(o model.MerchantOrder) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[o.ID] = o
}

// Preference returns the request that created preference id.
func (g *NoopPaymentGateway) Preference(id string) (model.PreferenceRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.prefs[id]
	return r, ok
}

func (g *NoopPaymentGateway) GetPayment(ctx context.Context, id string) (*model.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[id]
	if !ok {
		return nil, &adapter.ProviderError{Provider: "noop", Op: "get_payment", StatusCode: 404, Body: "payment not found"}
	}
	return &p, nil
}

func (g *NoopPaymentGateway) GetMerchantOrder(ctx context.Context, id string) (*model.MerchantOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, &adapter.ProviderError{Provider: "noop", Op: "get_merchant_order", StatusCode: 404, Body: "order not found"}
	}
	return &o, nil
}

func (g *NoopPaymentGateway) SearchPaymentsByReference(ctx context.Context, externalReference string) ([]model.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.PaymentInfo
	for _, p := range g.payments {
		if p.ExternalReference == externalReference {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateCreated.After(out[j].DateCreated) })
	return out, nil
}

func (g *NoopPaymentGateway) CreatePreference(ctx context.Context, req model.PreferenceRequest) (*model.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-pref-%d", g.seq)
	g.prefs[id] = req
	return &model.Preference{
		ID:        id,
		InitPoint: "https://example.test/checkout/" + id,
	}, nil
}
