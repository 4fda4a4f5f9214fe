package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
	"github.com/angelmondragon/quotedesk-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// Service runs the registered jobs in order once per interval while holding
// the cycle lease. A failed job is logged and the next one still runs; the
// lease is renewed between jobs and the cycle stops if it was lost.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Skipped bool
	Ran     []string
	Failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("cron service needs a logger")
	case params.Lock == nil:
		return nil, errors.New("cron service needs a lock")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      params.Now,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// RunOnce runs a single cycle for `cron-worker -once`.
func (s *Service) RunOnce(ctx context.Context) error {
	_, err := s.Cycle(ctx)
	return err
}

// Run cycles immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "interval", s.interval.String()), "cron service started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Cycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle takes the lease and runs every job once. Job failures are reported in
// the result, not as an error.
func (s *Service) Cycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		s.metrics.ObserveCycle(metrics.CronOutcomeFailed)
		return report, fmt.Errorf("cron lease: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron lease held by another replica")
		s.metrics.ObserveCycle(metrics.CronOutcomeSkipped)
		report.Skipped = true
		return report, nil
	}
	defer func() {
		// release with a fresh context so shutdown still frees the lease
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx); err != nil {
			s.logg.Error(ctx, "cron lease release failed", err)
		}
	}()

	jobs := s.registry.Jobs()
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if i > 0 {
			if err := s.renew(ctx); err != nil {
				s.metrics.ObserveCycle(metrics.CronOutcomeFailed)
				return report, err
			}
		}
		report.Ran = append(report.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			report.Failed = append(report.Failed, job.Name())
		}
	}

	outcome := metrics.CronOutcomeOK
	if len(report.Failed) > 0 {
		outcome = metrics.CronOutcomeFailed
	}
	s.metrics.ObserveCycle(outcome)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(report.Ran),
		"failed_jobs": report.Failed,
	}), "cron cycle complete")
	return report, nil
}

func (s *Service) renew(ctx context.Context) error {
	ok, err := s.lock.Renew(ctx)
	if err != nil {
		return fmt.Errorf("cron lease renew: %w", err)
	}
	if !ok {
		return ErrLeaseLost
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := s.now()
	err := job.Run(jobCtx)
	finished := s.now()
	took := finished.Sub(start)
	s.metrics.ObserveRun(job.Name(), took, finished, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "cron job done")
	return nil
}
