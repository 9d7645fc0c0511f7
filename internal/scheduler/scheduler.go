// Package scheduler runs periodic jobs: gateway polling and the trash retention sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is a scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler wraps gocron
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// New creates a stopped scheduler
func New(logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With("component", "scheduler")
	s, err := gocron.NewScheduler(gocron.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Every runs job at a fixed interval, skipping runs while the previous one is still going
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for job %s", interval, name)
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		s.task(name, job),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("scheduled job", "job", name, "interval", interval)
	return nil
}

// Cron runs job on a cron expression (five fields)
func (s *Scheduler) Cron(name, expr string, job Job) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		s.task(name, job),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("scheduled job", "job", name, "cron", expr)
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs
func (s *Scheduler) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) task(name string, job Job) gocron.Task {
	return gocron.NewTask(func(ctx context.Context) {
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
	})
}
