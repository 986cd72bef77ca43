package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/adjudicator/pkg/config"
)

var errLimitReached = errors.New("limit reached")

// Repository manages a local clone of a catalog repository.
type Repository struct {
	config     *config.GitCatalogConfig
	extensions []string
	localPath  string
	auth       AuthProvider
	repo       *gogit.Repository
	mu         sync.RWMutex
	stats      RepositoryStats
}

// NewRepository creates a repository manager. Files with one of extensions
// under cfg.Path are catalog files; nil means ".yaml" and ".yml".
func NewRepository(cfg *config.GitCatalogConfig, extensions []string) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}

	auth, err := NewAuthProvider(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	localPath := cfg.Clone.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "adjudicator-catalog")
	}
	if len(extensions) == 0 {
		extensions = config.DefaultCatalogExtensions()
	}

	return &Repository{
		config:     cfg,
		extensions: extensions,
		localPath:  localPath,
		auth:       auth,
	}, nil
}

// Clone clones the repository, or opens an existing clone at the local path
// unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.stats.CloneDuration = time.Since(start)
	}()

	if r.config.Clone.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to clean existing repository: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:           r.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		SingleBranch:  r.config.Clone.Depth > 0,
		Depth:         r.config.Clone.Depth,
		Auth:          auth,
	}

	cloneCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, r.localPath, false, opts)
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	r.repo = repo
	return nil
}

// Pull fetches and merges new commits from origin and reports which
// catalog files they touched.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() {
		r.stats.PullDuration = time.Since(start)
		r.stats.LastPull = time.Now()
	}()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Clone() first")
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	fromSHA := ref.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := r.auth.Auth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.config.Branch),
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedPulls++
		return nil, fmt.Errorf("failed to pull: %w", err)
	}
	r.stats.SuccessfulPulls++

	newRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get new HEAD: %w", err)
	}
	toSHA := newRef.Hash().String()

	r.stats.Head = toSHA

	result := &PullResult{From: fromSHA, To: toSHA}
	if !result.Moved() {
		return result, nil
	}

	changed, err := r.changedFiles(fromSHA, toSHA)
	if err != nil {
		return nil, fmt.Errorf("failed to get changed files: %w", err)
	}
	result.Files = changed
	for _, f := range changed {
		if r.inCatalog(f) {
			result.CatalogFiles = append(result.CatalogFiles, f)
		}
	}
	return result, nil
}

// inCatalog reports whether a repository-relative path is a catalog file
// under the configured catalog directory.
func (r *Repository) inCatalog(rel string) bool {
	if !r.IsCatalogFile(rel) {
		return false
	}
	dir := strings.Trim(filepath.ToSlash(filepath.Clean(r.config.Path)), "/")
	if dir == "" || dir == "." {
		return true
	}
	return strings.HasPrefix(filepath.ToSlash(rel), dir+"/")
}

// HeadRevision returns the revision checked out in the clone.
func (r *Repository) HeadRevision() (*Revision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Clone() first")
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return r.revision(commit), nil
}

// CatalogFiles lists the catalog files under the configured path, sorted.
// Hidden files and directories are skipped.
func (r *Repository) CatalogFiles() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root := filepath.Join(r.localPath, r.config.Path)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("catalog path does not exist: %w", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && r.IsCatalogFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// IsCatalogFile reports whether path has a catalog file extension.
func (r *Repository) IsCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range r.extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// ChangedFiles returns the paths changed between two commits.
func (r *Repository) ChangedFiles(fromSHA, toSHA string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.changedFiles(fromSHA, toSHA)
}

func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized")
	}

	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get from commit: %w", err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("failed to get to commit: %w", err)
	}

	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get from tree: %w", err)
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get to tree: %w", err)
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	var files []string
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else if change.From.Name != "" {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// Rollback checks out targetSHA, which must exist in the local history.
func (r *Repository) Rollback(targetSHA string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	hash := plumbing.NewHash(targetSHA)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("target commit not found: %w", err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout commit %s: %w", short(targetSHA), err)
	}
	return nil
}

// History returns up to limit commits reachable from HEAD, newest first.
func (r *Repository) History(limit int) ([]*Revision, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized")
	}

	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	iter, err := r.repo.Log(&gogit.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to get commit log: %w", err)
	}

	var history []*Revision
	err = iter.ForEach(func(c *object.Commit) error {
		if len(history) >= limit {
			return errLimitReached
		}
		history = append(history, r.revision(c))
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, fmt.Errorf("failed to iterate commits: %w", err)
	}
	return history, nil
}

// Stats returns a copy of the repository counters.
func (r *Repository) Stats() RepositoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// LocalPath returns where the repository is cloned.
func (r *Repository) LocalPath() string {
	return r.localPath
}

// CatalogPath returns the catalog directory inside the clone.
func (r *Repository) CatalogPath() string {
	return filepath.Join(r.localPath, r.config.Path)
}

func (r *Repository) revision(c *object.Commit) *Revision {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return &Revision{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Committed: c.Committer.When,
		Subject:   subject,
		Branch:    r.config.Branch,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Poll.Timeout > 0 {
		return context.WithTimeout(ctx, r.config.Poll.Timeout)
	}
	return context.WithCancel(ctx)
}
