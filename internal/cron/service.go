package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/metrics"
)

const defaultInterval = 10 * time.Minute

// ServiceParams configure the cron service. CycleTimeout bounds the jobs of
// one cycle; the worker sets it just under the lock TTL so a slow sweep is
// cut off before another worker can take over the same orders.
type ServiceParams struct {
	Logger       *logger.Logger
	Registry     *Registry
	Lock         Lock
	Metrics      *metrics.CronJobMetrics
	Interval     time.Duration
	CycleTimeout time.Duration
}

// Service runs the registered maintenance jobs on a fixed cadence, one
// worker instance at a time.
type Service struct {
	logg         *logger.Logger
	registry     *Registry
	lock         Lock
	metrics      *metrics.CronJobMetrics
	interval     time.Duration
	cycleTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Lock == nil:
		return nil, fmt.Errorf("lock required")
	}
	svc := &Service{
		logg:         params.Logger,
		registry:     params.Registry,
		lock:         params.Lock,
		metrics:      params.Metrics,
		interval:     params.Interval,
		cycleTimeout: params.CycleTimeout,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// Run executes a cycle immediately and then on every tick until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce runs every registered job once under the worker lock. Job failures
// are logged and counted; only lock errors are returned.
func (s *Service) RunOnce(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.skipCycle(ctx)
		return nil
	}
	defer s.release(ctx)

	cycleCtx := ctx
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	jobs := s.registry.Jobs()
	s.logg.Info(s.logg.WithField(ctx, "jobs", len(jobs)), "cron cycle starting")
	ran := 0
	for _, job := range jobs {
		if cycleCtx.Err() != nil {
			break
		}
		s.runJob(cycleCtx, job)
		ran++
	}
	if ran < len(jobs) {
		s.logg.Warn(s.logg.WithField(ctx, "jobs_not_run", len(jobs)-ran), "cron cycle cut short")
		return nil
	}
	s.logg.Info(ctx, "cron cycle complete")
	return nil
}

func (s *Service) skipCycle(ctx context.Context) {
	s.metrics.IncSkipped()
	holder, err := s.lock.Holder(ctx)
	if err != nil {
		holder = "unknown"
	}
	s.logg.Info(s.logg.WithField(ctx, "lock_holder", holder), "cron lock held elsewhere, skipping cycle")
}

func (s *Service) release(ctx context.Context) {
	err := s.lock.Release(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ErrLockLost):
		s.logg.Warn(ctx, "cron lock expired during the cycle; raise the lock ttl")
	case err != nil:
		s.logg.Error(ctx, "cron lock release failed", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return
	}
	s.logg.Info(jobCtx, "cron job done")
}
