package git

import (
	"time"
)

// Revision identifies the commit a catalog was built from. It is kept next
// to the catalog version so a decision can be traced back to the change
// that introduced its rule.
type Revision struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Committed time.Time `json:"committed"`
	Subject   string    `json:"subject"`
	Branch    string    `json:"branch"`
}

// Short returns the first 8 characters of the commit hash.
func (r *Revision) Short() string {
	return short(r.SHA)
}

// PullResult describes what a pull brought in.
type PullResult struct {
	From string
	To   string

	// Files are all paths changed between From and To.
	Files []string

	// CatalogFiles are the changed paths that are catalog files under the
	// configured catalog directory. Only these warrant a reload.
	CatalogFiles []string
}

// Moved reports whether HEAD changed.
func (p *PullResult) Moved() bool {
	return p.From != p.To
}

// RepositoryStats counts git operations on a catalog clone.
type RepositoryStats struct {
	CloneDuration   time.Duration
	PullDuration    time.Duration
	LastPull        time.Time
	Head            string
	FailedPulls     int64
	SuccessfulPulls int64
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
