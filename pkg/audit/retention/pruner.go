package retention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/audit/export"
	"mercator-hq/adjudicator/pkg/config"
)

// Pruner enforces the retention policy on audit records.
type Pruner struct {
	storage     audit.Storage
	config      config.RetentionConfig
	archivePath string
	now         func() time.Time
	logger      *slog.Logger
	scheduler   *Scheduler
	onRun       func(Run)
	create      func(path string) (io.WriteCloser, error)
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithArchive exports records to a JSON file in dir before deleting them.
func WithArchive(dir string) Option {
	return func(p *Pruner) { p.archivePath = dir }
}

// WithClock sets the time source used for the age cutoff.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) { p.logger = logger }
}

// WithRunHook is called after every scheduled prune, from the scheduler's
// goroutine.
func WithRunHook(fn func(Run)) Option {
	return func(p *Pruner) { p.onRun = fn }
}

// NewPruner creates a pruner for storage.
func NewPruner(storage audit.Storage, cfg config.RetentionConfig, opts ...Option) *Pruner {
	p := &Pruner{
		storage: storage,
		config:  cfg,
		now:     time.Now,
		logger:  slog.Default(),
		create:  func(path string) (io.WriteCloser, error) { return os.Create(path) },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "audit.retention")
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes records older than the retention period, then the oldest
// records beyond MaxRecords. It returns the number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.Days > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return total, p.retentionError(fmt.Errorf("prune by age failed: %w", err))
		}
		total += deleted
		p.logger.Debug("pruned records by age", "deleted_count", deleted, "retention_days", p.config.Days)
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return total, p.retentionError(fmt.Errorf("prune by count failed: %w", err))
		}
		total += deleted
		p.logger.Debug("pruned records by count", "deleted_count", deleted, "max_records", p.config.MaxRecords)
	}

	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}

func (p *Pruner) retentionError(err error) error {
	return audit.NewRetentionError(p.config.Days, p.config.MaxRecords, err)
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.Days)
	q := &audit.Query{EndTime: &cutoff}

	if p.archivePath != "" {
		records, err := p.storage.Query(ctx, &audit.Query{EndTime: &cutoff, SortOrder: "asc"})
		if err != nil {
			return 0, err
		}
		if err := p.archive(ctx, "age", records); err != nil {
			return 0, err
		}
	}

	return p.storage.Delete(ctx, q)
}

func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	count, err := p.storage.Count(ctx, &audit.Query{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	if count <= p.config.MaxRecords {
		return 0, nil
	}

	excess := count - p.config.MaxRecords
	p.logger.Info("record count exceeds limit, pruning oldest",
		"current_count", count,
		"max_records", p.config.MaxRecords,
		"to_delete", excess,
	)

	if p.archivePath != "" {
		records, err := p.storage.Query(ctx, &audit.Query{SortOrder: "asc", Limit: int(excess)})
		if err != nil {
			return 0, err
		}
		if err := p.archive(ctx, "count", records); err != nil {
			return 0, err
		}
	}

	return p.storage.DeleteOldest(ctx, p.config.MaxRecords)
}

func (p *Pruner) archive(ctx context.Context, reason string, records []*audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.archivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("audit-%s-%s.json", reason, p.now().UTC().Format("2006-01-02-150405.000"))
	path := filepath.Join(p.archivePath, name)
	f, err := p.create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	// The archive must be complete on disk before any record is deleted.
	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to archive records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close archive file: %w", err)
	}

	p.logger.Info("audit records archived", "archive_file", path, "record_count", len(records))
	return nil
}

// Start runs Prune on the configured cron schedule until ctx is cancelled
// or Stop is called.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}

// LastRun returns the most recent scheduled run, or nil.
func (p *Pruner) LastRun() *Run {
	return p.scheduler.LastRun()
}
