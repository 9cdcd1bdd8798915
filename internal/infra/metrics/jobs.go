package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, sweepItemsTotal) }

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Sweep executions, labeled by job and outcome.",
		},
		[]string{"job", "outcome"}, // outcome: ok|partial|timeout|already_running|failed
	)

	sweepItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_items_total",
			Help: "Items handled by sweeps, labeled by job and per-item status.",
		},
		[]string{"job", "status"},
	)
)

func IncSweepRun(job, outcome string) {
	sweepRunsTotal.WithLabelValues(norm(job), norm(outcome)).Inc()
}

func IncSweepItem(job, status string) {
	sweepItemsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
