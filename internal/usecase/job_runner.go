// File: internal/usecase/job_runner.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/domain"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/logging"
	"rust-vip-platform/internal/infra/metrics"
)

// SweepConfig bounds one sweep run.
type SweepConfig struct {
	BatchSize  int
	TimeBudget time.Duration
	LockTTL    time.Duration
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 28 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = time.Minute
	}
	return c
}

// jobRunner wraps a sweep body with the advisory lock, the wall-clock
// budget, metrics and the system_logs audit row.
type jobRunner struct {
	locker repository.Locker
	logs   repository.SystemLogRepository
	cfg    SweepConfig
	log    *zerolog.Logger
}

type sweepBody func(ctx context.Context, deadline time.Time, res *model.JobResult) error

func (r *jobRunner) run(ctx context.Context, job string, body sweepBody) (*model.JobResult, error) {
	start := time.Now()
	res := model.NewJobResult(job, start)
	ctx = logging.WithJob(ctx, job)
	log := logging.With(ctx, r.log)

	token, err := r.locker.TryLock(ctx, job, r.cfg.LockTTL)
	if errors.Is(err, domain.ErrAlreadyRunning) {
		res.AlreadyRunning = true
		log.Info().Msg("sweep already running; skipping")
		r.finish(ctx, res, start)
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locker.Unlock(context.WithoutCancel(ctx), job, token); err != nil {
			log.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	deadline := start.Add(r.cfg.TimeBudget)
	bodyErr := body(ctx, deadline, res)
	r.finish(ctx, res, start)
	if bodyErr != nil {
		log.Error().Err(bodyErr).Msg("sweep aborted")
		return res, bodyErr
	}
	log.Info().Int("checked", res.Checked).Int("processed", res.Processed).Int("errors", res.Errors).Str("outcome", res.Outcome()).Msg("sweep finished")
	return res, nil
}

func (r *jobRunner) finish(ctx context.Context, res *model.JobResult, start time.Time) {
	res.DurationMs = time.Since(start).Milliseconds()
	metrics.IncSweepRun(res.Job, res.Outcome())
	for _, d := range res.Details {
		metrics.IncSweepItem(res.Job, d.Status)
	}
	entry := &model.SystemLog{Job: res.Job, Status: res.Outcome(), Summary: res, CreatedAt: time.Now()}
	if err := r.logs.Insert(context.WithoutCancel(ctx), repository.NoTX, entry); err != nil {
		r.log.Warn().Err(err).Str("job", res.Job).Msg("failed to write system log")
	}
}

// timedOut appends the timeout marker once the budget is spent.
func timedOut(deadline time.Time, res *model.JobResult) bool {
	if time.Now().Before(deadline) {
		return false
	}
	res.TimedOut = true
	res.Add(model.JobDetail{Status: model.DetailTimeout, Message: "time budget exhausted"})
	return true
}
