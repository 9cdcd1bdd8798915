package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain/model"
)

// SweepFunc is one run of a batch job, e.g. ReconcileUseCase.CheckPending.
type SweepFunc func(ctx context.Context) (*model.JobResult, error)

// SweepWorker triggers a sweep on a fixed interval. It is the in-process
// alternative to calling the cron endpoints from an external scheduler; both
// paths share the job lock so they never overlap.
type SweepWorker struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	log      *zerolog.Logger
}

func NewSweepWorker(name string, interval time.Duration, sweep SweepFunc, logger *zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "SweepWorker").Str("job", name).Logger()
	return &SweepWorker{name: name, interval: interval, sweep: sweep, log: &l}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SweepWorker) tick(ctx context.Context) {
	res, err := w.sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("sweep failed")
		return
	}
	if res.AlreadyRunning {
		w.log.Debug().Msg("sweep skipped; another run holds the lock")
		return
	}
	if res.Checked > 0 {
		w.log.Info().
			Int("checked", res.Checked).
			Int("processed", res.Processed).
			Int("errors", res.Errors).
			Bool("timed_out", res.TimedOut).
			Msg("sweep finished")
	}
}
