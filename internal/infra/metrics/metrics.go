// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhooksTotal,
		paymentAPICallsTotal,
		paymentAPILatency,
	)
}

var (
	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment notifications received, by topic and outcome.",
		},
		[]string{"topic", "outcome"}, // outcome: processed|duplicate|ignored|unauthorized|unparsed|error
	)

	paymentAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_api_calls_total",
			Help: "Calls made to the payment provider API, including retries.",
		},
		[]string{"op", "result"},
	)

	paymentAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_api_latency_ms",
			Help:    "Payment provider call latency in milliseconds.",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"op"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncWebhook(topic, outcome string) {
	if topic == "" {
		topic = "unknown"
	}
	webhooksTotal.WithLabelValues(norm(topic), norm(outcome)).Inc()
}

func ObservePaymentAPICall(op, result string, latencyMs int64) {
	paymentAPICallsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	paymentAPILatency.WithLabelValues(norm(op)).Observe(float64(latencyMs))
}
