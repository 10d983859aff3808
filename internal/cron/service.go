package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	"github.com/angelmondragon/fieldops-backend/pkg/metrics"
)

const (
	defaultInterval   = 24 * time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service. Interval and JobTimeout fall back
// to defaults when zero.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Report summarises one cycle.
type Report struct {
	Skipped bool
	Ran     int
	Failed  int
}

// Service runs the registered jobs once per interval while holding the
// cluster-wide cron lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry, _ = NewRegistry()
	}
	svc := &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	if svc.jobTimeout <= 0 {
		svc.jobTimeout = defaultJobTimeout
	}
	return svc, nil
}

// RunOnce executes a single cycle and returns the combined job errors so the
// one-shot worker can exit non-zero.
func (s *Service) RunOnce(ctx context.Context) error {
	_, err := s.cycle(ctx)
	return err
}

// Run executes a cycle immediately and then every interval until ctx ends.
// Job failures are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.cycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with failures", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) (Report, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("acquire cron lock: %w", err)
	}
	if !acquired {
		s.logg.Info(ctx, "cron lock held by another instance; cycle skipped")
		return Report{Skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	var (
		report Report
		errs   error
	)
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		report.Ran++
		if err := s.runJob(ctx, job); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ran":    report.Ran,
		"failed": report.Failed,
	}), "cron cycle complete")
	return report, errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx, cancel := context.WithTimeout(s.logg.WithJob(ctx, job.Name()), s.jobTimeout)
	defer cancel()

	started := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(started)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	s.metrics.ObserveDuration(job.Name(), elapsed)
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(jobCtx, "cron job failed", err)
		return err
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(jobCtx, "cron job done")
	return nil
}
