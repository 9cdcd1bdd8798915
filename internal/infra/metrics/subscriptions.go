package metrics

import (
	"rust-vip-platform/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionTransitionsTotal,
	)
}

var subscriptionTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Ledger status transitions, by target status.",
	},
	[]string{"status"}, // 'pending', 'active', 'expired', 'cancelled'
)

func IncSubscriptionTransition(status model.SubscriptionStatus) {
	subscriptionTransitionsTotal.WithLabelValues(string(status)).Inc()
}
