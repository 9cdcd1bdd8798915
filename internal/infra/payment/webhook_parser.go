// File: internal/infra/payment/webhook_parser.go
package payment

import (
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"rust-vip-platform/internal/domain/model"
)

// Strategy extracts a notification from one request shape. It returns false
// when the shape does not match; strategies never fail loudly.
type Strategy struct {
	Name    string
	Extract func(q url.Values, body gjson.Result) (model.Notification, bool)
}

// DefaultStrategies is the extraction order for provider callbacks: query
// string IPN first, then the JSON envelopes, then the redirect fallback.
var DefaultStrategies = []Strategy{
	{Name: "query", Extract: fromQuery},
	{Name: "action_envelope", Extract: fromActionEnvelope},
	{Name: "resource_envelope", Extract: fromResourceEnvelope},
	{Name: "flat_envelope", Extract: fromFlatEnvelope},
	{Name: "merchant_order_envelope", Extract: fromMerchantOrderEnvelope},
	{Name: "payment_envelope", Extract: fromPaymentEnvelope},
	{Name: "query_payment_id", Extract: fromQueryPaymentID},
}

// Parser normalizes provider callbacks into a {id, topic} pair.
type Parser struct {
	strategies []Strategy
}

func NewParser(strategies ...Strategy) *Parser {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Parser{strategies: strategies}
}

// Parse tries each strategy in order. The name of the matching strategy is
// returned for logging.
func (p *Parser) Parse(query url.Values, body []byte) (model.Notification, string, bool) {
	var doc gjson.Result
	if len(body) > 0 && gjson.ValidBytes(body) {
		doc = gjson.ParseBytes(body)
	}
	for _, s := range p.strategies {
		if n, ok := s.Extract(query, doc); ok && n.Valid() {
			return n, s.Name, true
		}
	}
	return model.Notification{}, "", false
}

func notification(id, topic string) (model.Notification, bool) {
	id = strings.TrimSpace(id)
	topic = model.NormalizeTopic(topic)
	if id == "" || topic == "" {
		return model.Notification{}, false
	}
	return model.Notification{ID: id, Topic: topic}, true
}

// ?id=123&topic=payment or ?data.id=123&type=payment
func fromQuery(q url.Values, _ gjson.Result) (model.Notification, bool) {
	id := firstNonEmpty(q.Get("id"), q.Get("data.id"))
	topic := firstNonEmpty(q.Get("topic"), q.Get("type"))
	return notification(id, topic)
}

// {"action":"payment.updated","type":"payment","data":{"id":"123"}}
// data may also be a bare id or a resource path.
func fromActionEnvelope(_ url.Values, body gjson.Result) (model.Notification, bool) {
	data := body.Get("data")
	if !data.Exists() {
		return model.Notification{}, false
	}
	var id string
	switch {
	case data.IsObject():
		id = data.Get("id").String()
	default:
		id = lastPathSegment(data.String())
	}
	topic := firstNonEmpty(body.Get("type").String(), body.Get("topic").String(), actionTopic(body.Get("action").String()))
	return notification(id, topic)
}

// {"resource":"https://api.mercadopago.com/merchant_orders/555","topic":"merchant_order"}
func fromResourceEnvelope(_ url.Values, body gjson.Result) (model.Notification, bool) {
	res := body.Get("resource")
	if !res.Exists() {
		return model.Notification{}, false
	}
	return notification(lastPathSegment(res.String()), firstNonEmpty(body.Get("topic").String(), body.Get("type").String()))
}

// {"id":"123","type":"payment"}
func fromFlatEnvelope(_ url.Values, body gjson.Result) (model.Notification, bool) {
	id := body.Get("id")
	if !id.Exists() || id.IsObject() || id.IsArray() {
		return model.Notification{}, false
	}
	return notification(id.String(), firstNonEmpty(body.Get("type").String(), body.Get("topic").String()))
}

// {"merchant_order_id":"555"}
func fromMerchantOrderEnvelope(_ url.Values, body gjson.Result) (model.Notification, bool) {
	return notification(body.Get("merchant_order_id").String(), model.TopicMerchantOrder)
}

// {"payment_id":"123"}
func fromPaymentEnvelope(_ url.Values, body gjson.Result) (model.Notification, bool) {
	return notification(body.Get("payment_id").String(), model.TopicPayment)
}

// Redirect-URL fallback: ?payment_id=123&status=approved
func fromQueryPaymentID(q url.Values, _ gjson.Result) (model.Notification, bool) {
	return notification(q.Get("payment_id"), model.TopicPayment)
}

// "payment.created" -> "payment"
func actionTopic(action string) string {
	if i := strings.IndexByte(action, '.'); i > 0 {
		return action[:i]
	}
	return ""
}

func lastPathSegment(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
