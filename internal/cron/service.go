package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the cadence of entries registered without one.
	Interval time.Duration
}

// Service executes registered jobs, each on its own cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	lastRun  map[string]time.Time
	now      func() time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		lastRun:  map[string]time.Time{},
		now:      time.Now,
	}, nil
}

// Run executes every job once, then ticks at the shortest cadence until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) tick() time.Duration {
	tick := s.interval
	for _, entry := range s.registry.Entries() {
		if every := s.cadence(entry); every < tick {
			tick = every
		}
	}
	return tick
}

func (s *Service) cadence(entry Entry) time.Duration {
	if entry.Every > 0 {
		return entry.Every
	}
	return s.interval
}

func (s *Service) due(entry Entry, now time.Time) bool {
	last, ok := s.lastRun[entry.Job.Name()]
	return !ok || now.Sub(last) >= s.cadence(entry)
}

// runCycle runs due local jobs directly and due shared jobs under the cluster lock.
func (s *Service) runCycle(ctx context.Context) error {
	now := s.now()
	var shared []Entry
	for _, entry := range s.registry.Entries() {
		if !s.due(entry, now) {
			continue
		}
		if entry.Local {
			s.runJob(ctx, entry.Job, now)
			continue
		}
		shared = append(shared, entry)
	}
	if len(shared) == 0 {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping shared jobs")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, entry := range shared {
		s.runJob(ctx, entry.Job, now)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job, now time.Time) {
	s.lastRun[job.Name()] = now
	jobCtx := s.logg.WithFields(ctx, map[string]any{
		"job":   job.Name(),
		"event": "cron.job",
	})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveRun(job.Name(), duration, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}
