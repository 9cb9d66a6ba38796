// Package scheduler runs the cache maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Jobs is the work the scheduler triggers. *engine.Engine satisfies it.
type Jobs interface {
	Sweep(ctx context.Context) (int, error)
	Prewarm(ctx context.Context) error
}

// Scheduler manages the cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	jobs Jobs
	ctx  context.Context
	log  *slog.Logger
}

// New creates a Scheduler. Cron expressions carry a leading seconds field.
// Jobs run with ctx and a run that is still going when its next tick fires
// is skipped.
func New(ctx context.Context, jobs Jobs, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		jobs: jobs,
		ctx:  ctx,
		log:  log.With("component", "scheduler"),
	}
}

// Register adds the sweep and prewarm jobs. An empty expression disables
// that job.
func (s *Scheduler) Register(sweepCron, prewarmCron string) error {
	if sweepCron != "" {
		if _, err := s.Cron.AddFunc(sweepCron, s.RunSweep); err != nil {
			return fmt.Errorf("register sweep job: %w", err)
		}
	}
	if prewarmCron != "" {
		if _, err := s.Cron.AddFunc(prewarmCron, s.RunPrewarm); err != nil {
			return fmt.Errorf("register prewarm job: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunSweep deletes expired cache entries.
func (s *Scheduler) RunSweep() {
	removed, err := s.jobs.Sweep(s.ctx)
	if err != nil {
		s.log.Error("cache sweep failed", "error", err)
		return
	}
	s.log.Info("cache sweep done", "removed", removed)
}

// RunPrewarm fetches today's index series ahead of the first request.
func (s *Scheduler) RunPrewarm() {
	if err := s.jobs.Prewarm(s.ctx); err != nil {
		s.log.Error("index prewarm failed", "error", err)
		return
	}
	s.log.Info("index prewarm done")
}
