package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Lookup cache hits and misses.",
	},
	[]string{"cache", "result"}, // cache="payment"|"merchant_order", result="hit"|"miss"
)

func IncCacheRequest(cacheName string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequestsTotal.WithLabelValues(norm(cacheName), result).Inc()
}
