package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Run is the outcome of one scheduled prune.
type Run struct {
	Started time.Time
	Took    time.Duration
	Deleted int64
	Err     error

	// Next is when the following run is due, zero if the schedule stopped.
	Next time.Time
}

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	pruner *Pruner
	cron   *cron.Cron
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	schedule cron.Schedule
	entry    cron.EntryID
	last     *Run
}

// NewScheduler creates a scheduler for pruner.
func NewScheduler(pruner *Pruner) *Scheduler {
	return &Scheduler{
		pruner: pruner,
		cron:   cron.New(),
		logger: pruner.logger.With("component", "audit.retention.scheduler"),
	}
}

// Start schedules pruning with the pruner's PruneSchedule, a standard
// five-field cron expression. An empty schedule does nothing. Scheduling
// ends when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expr := s.pruner.config.PruneSchedule
	if expr == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("retention scheduler already running")
	}

	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	s.schedule = sched
	s.entry = s.cron.Schedule(sched, cron.FuncJob(func() { s.run(ctx) }))

	s.cron.Start()
	s.running = true
	s.logger.Info("retention scheduler started",
		"schedule", expr,
		"retention_days", s.pruner.config.Days,
		"max_records", s.pruner.config.MaxRecords,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	r := Run{Started: s.pruner.now()}
	r.Deleted, r.Err = s.pruner.Prune(ctx)
	r.Took = s.pruner.now().Sub(r.Started)

	if r.Err != nil {
		s.logger.Error("scheduled pruning failed", "error", r.Err)
	} else {
		s.logger.Debug("scheduled pruning completed", "deleted_count", r.Deleted)
	}

	s.mu.Lock()
	if s.running {
		r.Next = s.schedule.Next(time.Now())
	}
	s.last = &r
	s.mu.Unlock()

	if s.pruner.onRun != nil {
		s.pruner.onRun(r)
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entry)
	s.logger.Info("retention scheduler stopped")
}

// IsRunning reports whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.schedule.Next(time.Now())
	return &next
}

// LastRun returns the most recent scheduled run, or nil before the first.
func (s *Scheduler) LastRun() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}
