package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"rust-vip-platform/internal/domain/model"
)

func init() { register(provisioningTotal) }

var provisioningTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "provisioning_total",
		Help: "Provisioning calls by target, action and result kind.",
	},
	[]string{"target", "action", "kind"},
)

func ObserveProvision(r model.ProvisionResult) {
	provisioningTotal.WithLabelValues(string(r.Target), string(r.Action), string(r.Kind)).Inc()
}
