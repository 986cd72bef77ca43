package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/adjudicator/pkg/catalog/git"
	"mercator-hq/adjudicator/pkg/config"
	"mercator-hq/adjudicator/pkg/rdl/ast"
	"mercator-hq/adjudicator/pkg/rdl/compiler"
	"mercator-hq/adjudicator/pkg/rdl/parser"
	"mercator-hq/adjudicator/pkg/rdl/validator"
	"mercator-hq/adjudicator/pkg/rules"
)

// ReloadObserver is told about every load attempt, e.g. to update metrics.
type ReloadObserver interface {
	ObserveReload(status string, catalog *rules.Catalog)
}

// Reload statuses passed to a ReloadObserver.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// snapshot is everything built from one successful load.
type snapshot struct {
	catalog *rules.Catalog
	tests   []*ast.Test
	files   []string
	commit  string
}

// Stats describes the manager's state.
type Stats struct {
	Catalog       rules.Stats
	Files         int
	Commit        string
	LastLoad      time.Time
	LastError     string
	Reloads       int64
	FailedReloads int64
}

// Manager owns the active catalog. Readers get an immutable snapshot via
// Current; reloads build a complete new catalog and swap it in atomically,
// so evaluations in flight keep the catalog they started with.
type Manager struct {
	cfg       *config.CatalogConfig
	loader    *Loader
	validator *validator.Validator
	compiler  *compiler.Compiler
	logger    *slog.Logger
	observer  ReloadObserver

	current atomic.Pointer[snapshot]

	// mu serializes loads and guards the fields below.
	mu            sync.Mutex
	lastLoad      time.Time
	lastErr       error
	reloads       int64
	failedReloads int64

	repo *git.Repository

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithObserver registers a reload observer.
func WithObserver(o ReloadObserver) Option {
	return func(m *Manager) { m.observer = o }
}

// WithEngineLimits applies expression cost and condition depth limits.
func WithEngineLimits(cfg config.EngineConfig) Option {
	return func(m *Manager) {
		if cfg.ExpressionCostLimit > 0 {
			m.compiler.WithCostLimit(cfg.ExpressionCostLimit)
		}
		if cfg.MaxConditionDepth > 0 {
			m.loader.parser.WithMaxDepth(cfg.MaxConditionDepth)
		}
	}
}

// New creates a manager for cfg. Nothing is loaded until Load is called.
func New(cfg *config.CatalogConfig, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	comp, err := compiler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		loader:    NewLoader(cfg.Extensions, cfg.MaxFileSize, parser.NewParser()),
		validator: validator.NewValidator().WithSharedPriority(cfg.AllowSharedPriority),
		compiler:  comp,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "catalog.manager")

	if cfg.Mode == "git" {
		repo, err := git.NewRepository(&cfg.Git, cfg.Extensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create git repository: %w", err)
		}
		m.repo = repo
	}

	return m, nil
}

// Load loads the catalog from the configured source. In git mode the
// repository is cloned first if needed.
func (m *Manager) Load() error {
	return m.load("load")
}

// Reload rebuilds the catalog from the source. On failure the previous
// catalog stays active and the error is kept as LastError.
func (m *Manager) Reload() error {
	return m.load("reload")
}

func (m *Manager) load(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	path := m.cfg.Path
	var commit string

	if m.repo != nil {
		if err := m.ensureClone(); err != nil {
			return m.fail(op, start, err)
		}
		path = m.repo.CatalogPath()
		if c, err := m.repo.HeadRevision(); err == nil {
			commit = c.SHA
		}
	}

	m.logger.Info("loading catalog", "op", op, "path", path)

	snap, err := m.build(path)
	if err != nil {
		return m.fail(op, start, err)
	}
	snap.commit = commit

	m.current.Store(snap)
	m.lastLoad = time.Now()
	m.lastErr = nil
	if op == "reload" {
		m.reloads++
	}
	if m.observer != nil {
		m.observer.ObserveReload(StatusSuccess, snap.catalog)
	}

	stats := snap.catalog.Stats()
	m.logger.Info("catalog loaded",
		"op", op,
		"name", snap.catalog.Name(),
		"version", snap.catalog.Version(),
		"rules", stats.Rules,
		"files", len(snap.files),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *Manager) fail(op string, start time.Time, err error) error {
	m.lastErr = err
	if op == "reload" {
		m.failedReloads++
	}
	if m.observer != nil {
		m.observer.ObserveReload(StatusFailure, nil)
	}

	if m.current.Load() != nil {
		m.logger.Error("catalog load failed, keeping previous catalog",
			"op", op, "error", err, "duration_ms", time.Since(start).Milliseconds())
	} else {
		m.logger.Error("catalog load failed",
			"op", op, "error", err, "duration_ms", time.Since(start).Milliseconds())
	}
	return err
}

// build runs the full pipeline: parse, validate, compile, load.
func (m *Manager) build(path string) (*snapshot, error) {
	files, err := m.loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := m.validator.Validate(files...); err != nil {
		return nil, err
	}

	opts := []rules.LoadOption{rules.WithName(m.cfg.Name)}
	if m.cfg.AllowSharedPriority {
		opts = append(opts, rules.AllowSharedPriority())
	}
	catalog, err := m.compiler.Build(files, opts...)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{catalog: catalog}
	for _, f := range files {
		snap.tests = append(snap.tests, f.Tests...)
		snap.files = append(snap.files, f.SourceFile)
	}
	return snap, nil
}

func (m *Manager) ensureClone() error {
	if _, err := m.repo.HeadRevision(); err == nil {
		return nil
	}
	ctx := context.Background()
	if m.cfg.Git.Poll.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Git.Poll.Timeout)
		defer cancel()
	}
	m.logger.Info("cloning catalog repository",
		"repository", m.cfg.Git.Repository,
		"branch", m.cfg.Git.Branch)
	return m.repo.Clone(ctx)
}

// Current returns the active catalog, or nil before the first successful load.
func (m *Manager) Current() *rules.Catalog {
	if s := m.current.Load(); s != nil {
		return s.catalog
	}
	return nil
}

// Version returns the active catalog version, or "".
func (m *Manager) Version() string {
	if c := m.Current(); c != nil {
		return c.Version()
	}
	return ""
}

// Tests returns the test cases embedded in the active catalog files.
func (m *Manager) Tests() []*ast.Test {
	if s := m.current.Load(); s != nil {
		return s.tests
	}
	return nil
}

// LastError returns the error of the most recent failed load, cleared by
// the next successful one.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Stats returns a summary of the manager's state.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		LastLoad:      m.lastLoad,
		Reloads:       m.reloads,
		FailedReloads: m.failedReloads,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	if s := m.current.Load(); s != nil {
		st.Catalog = s.catalog.Stats()
		st.Files = len(s.files)
		st.Commit = s.commit
	}
	return st
}

// Watch reloads the catalog when its source changes, until ctx is
// cancelled or Close is called. File mode uses fsnotify and needs
// catalog.watch enabled; git mode polls the repository.
func (m *Manager) Watch(ctx context.Context) error {
	m.watchMu.Lock()
	if m.watchCancel != nil {
		m.watchMu.Unlock()
		return fmt.Errorf("watch already started")
	}
	if m.Current() == nil {
		m.watchMu.Unlock()
		return ErrNotLoaded
	}
	ctx, cancel := context.WithCancel(ctx)
	m.watchCancel = cancel
	m.watchDone = make(chan struct{})
	done := m.watchDone
	m.watchMu.Unlock()

	defer func() {
		m.watchMu.Lock()
		if m.watchDone == done {
			m.watchCancel = nil
			m.watchDone = nil
		}
		m.watchMu.Unlock()
		cancel()
		close(done)
	}()

	if m.repo != nil {
		return m.watchGit(ctx)
	}
	return m.watchFiles(ctx)
}

func (m *Manager) watchFiles(ctx context.Context) error {
	if !m.cfg.Watch {
		return fmt.Errorf("catalog watching is not enabled in configuration")
	}

	fw, err := NewFileWatcher(m.cfg.Path, m.cfg.DebounceInterval, m.loader.IsCatalogFile, m.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	return fw.Watch(ctx, m.Reload)
}

func (m *Manager) watchGit(ctx context.Context) error {
	if !m.cfg.Git.Poll.Enabled {
		return fmt.Errorf("git polling is not enabled in configuration")
	}

	poller := git.NewPoller(m.repo, m.cfg.Git.Poll.Interval, m.cfg.Git.Poll.Timeout,
		func(string) error { return m.Reload() }).
		WithLogger(m.logger).
		WithDebounce(m.cfg.DebounceInterval)

	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start git poller: %w", err)
	}
	<-ctx.Done()
	return poller.Stop()
}

// Close stops watching and waits for the watch loop to exit.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	cancel, done := m.watchCancel, m.watchDone
	m.watchCancel = nil
	m.watchMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.logger.Info("catalog manager closed")
	return nil
}

// Repository returns the git repository in git mode, or nil.
func (m *Manager) Repository() *git.Repository {
	return m.repo
}
