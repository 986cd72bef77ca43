package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReloadFunc loads and validates the catalog at catalogPath. A non-nil
// error makes the poller roll the clone back to the last good commit.
type ReloadFunc func(catalogPath string) error

// PollerStats counts polls and the reloads they triggered.
type PollerStats struct {
	PollCount         int64
	SuccessfulReloads int64
	FailedReloads     int64
	Rollbacks         int64
	SkippedPolls      int64
	LastReload        time.Time
	LastReloadTook    time.Duration
}

// Poller pulls a catalog repository on an interval and reloads when a
// catalog file changed. Rapid successive changes collapse into a single
// reload after the debounce interval.
type Poller struct {
	repo     *Repository
	interval time.Duration
	timeout  time.Duration
	debounce time.Duration
	reloadFn ReloadFunc
	logger   *slog.Logger

	mu            sync.RWMutex
	running       bool
	stopCh        chan struct{}
	done          chan struct{}
	lastCommitSHA string
	stats         PollerStats

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewPoller creates a poller for repo. Git operations are bounded by timeout.
func NewPoller(repo *Repository, interval, timeout time.Duration, reloadFn ReloadFunc) *Poller {
	return &Poller{
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		debounce: 100 * time.Millisecond,
		reloadFn: reloadFn,
		logger:   slog.Default().With("component", "catalog.git"),
	}
}

// WithLogger sets the logger.
func (p *Poller) WithLogger(logger *slog.Logger) *Poller {
	p.logger = logger.With("component", "catalog.git")
	return p
}

// WithDebounce sets how long the poller waits for further commits before
// reloading. Zero reloads synchronously.
func (p *Poller) WithDebounce(d time.Duration) *Poller {
	p.debounce = d
	return p
}

// Start records the current commit and begins polling in the background.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller already running")
	}
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	head, err := p.repo.HeadRevision()
	if err != nil {
		return fmt.Errorf("failed to get initial revision: %w", err)
	}
	p.lastCommitSHA = head.SHA
	p.running = true
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})

	p.logger.Info("poller started",
		"poll_interval", p.interval,
		"catalog_revision", head.Short())

	go p.loop(ctx, p.stopCh, p.done)
	return nil
}

// Stop halts polling and cancels any pending reload.
func (p *Poller) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("poller not running")
	}
	close(p.stopCh)
	done := p.done
	p.running = false
	p.mu.Unlock()

	<-done

	p.debounceMu.Lock()
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceMu.Unlock()

	p.logger.Info("poller stopped")
	return nil
}

// IsRunning reports whether the poller is polling.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.check(ctx); err != nil {
				p.logger.Error("error checking for changes", "error", err)
			}
		}
	}
}

// ForceCheck pulls immediately instead of waiting for the next tick.
func (p *Poller) ForceCheck(ctx context.Context) error {
	if !p.IsRunning() {
		return fmt.Errorf("poller not running")
	}
	return p.check(ctx)
}

func (p *Poller) check(ctx context.Context) error {
	p.mu.Lock()
	p.stats.PollCount++
	p.mu.Unlock()

	pullCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.repo.Pull(pullCtx)
	if err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	if !result.Moved() {
		return nil
	}

	p.logger.Info("detected changes",
		"from_sha", short(result.From),
		"to_sha", short(result.To),
		"changed_files", len(result.Files),
		"catalog_files", len(result.CatalogFiles))

	if len(result.CatalogFiles) == 0 {
		p.mu.Lock()
		p.stats.SkippedPolls++
		p.lastCommitSHA = result.To
		p.mu.Unlock()
		p.logger.Info("no catalog files changed, skipping reload")
		return nil
	}

	if p.debounce <= 0 {
		return p.reload(result.To)
	}

	p.debounceMu.Lock()
	defer p.debounceMu.Unlock()
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	sha := result.To
	p.debounceTimer = time.AfterFunc(p.debounce, func() {
		if err := p.reload(sha); err != nil {
			p.logger.Error("reload failed", "error", err)
		}
	})
	return nil
}

func (p *Poller) reload(newSHA string) error {
	start := time.Now()
	p.logger.Info("reloading catalog", "commit_sha", short(newSHA))

	err := p.reloadFn(p.repo.CatalogPath())

	p.mu.Lock()
	p.stats.LastReloadTook = time.Since(start)
	p.stats.LastReload = time.Now()
	previous := p.lastCommitSHA
	if err == nil {
		p.stats.SuccessfulReloads++
		p.lastCommitSHA = newSHA
	} else {
		p.stats.FailedReloads++
	}
	p.mu.Unlock()

	if err == nil {
		p.logger.Info("catalog reloaded",
			"from_sha", short(previous),
			"to_sha", short(newSHA),
			"duration", time.Since(start))
		return nil
	}

	p.logger.Error("catalog rejected, rolling back",
		"error", err,
		"current_sha", short(newSHA),
		"rollback_to", short(previous))

	if rbErr := p.repo.Rollback(previous); rbErr != nil {
		return fmt.Errorf("catalog rejected and rollback failed: %w (rollback: %v)", err, rbErr)
	}
	p.mu.Lock()
	p.stats.Rollbacks++
	p.mu.Unlock()

	return fmt.Errorf("catalog rejected at %s: %w", short(newSHA), err)
}

// LastCommitSHA returns the commit the active catalog was loaded from.
func (p *Poller) LastCommitSHA() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCommitSHA
}

// Stats returns a copy of the poller counters.
func (p *Poller) Stats() PollerStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}
