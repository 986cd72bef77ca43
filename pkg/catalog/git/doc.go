// Package git serves rule catalogs from a Git repository.
//
// A Repository clones the configured branch, lists catalog files under the
// configured path, and pulls new commits. A Poller pulls periodically and
// calls a reload callback when catalog files change. When the reload fails,
// the working tree is checked out at the last good commit again so the files
// on disk keep matching the active catalog.
//
//	repo, err := git.NewRepository(&cfg.Catalog.Git, cfg.Catalog.Extensions)
//	if err := repo.Clone(ctx); err != nil { ... }
//	poller := git.NewPoller(repo, cfg.Catalog.Git.Poll.Interval, cfg.Catalog.Git.Poll.Timeout, reload)
//	if err := poller.Start(ctx); err != nil { ... }
//	defer poller.Stop()
package git
