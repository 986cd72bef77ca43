package query

import (
	"fmt"
	"strings"

	"mercator-hq/adjudicator/pkg/audit"
	"mercator-hq/adjudicator/pkg/rules"
)

const (
	// DefaultLimit is the number of records returned when a query sets none.
	DefaultLimit = 100

	// MaxLimit caps the records returned by one query.
	MaxLimit = 10000
)

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// Limits bounds query paging. Zero fields use the package defaults.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

func (l Limits) max() int {
	if l.MaxLimit > 0 {
		return l.MaxLimit
	}
	return MaxLimit
}

func (l Limits) def() int {
	if l.DefaultLimit > 0 {
		return l.DefaultLimit
	}
	return DefaultLimit
}

// Validate returns a QueryError if any parameter of q is invalid.
func Validate(q *audit.Query, limits Limits) error {
	if q.Limit < 0 {
		return audit.NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > limits.max() {
		return audit.NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", limits.max(), q.Limit))
	}
	if q.Offset < 0 {
		return audit.NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return audit.NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return audit.NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}

	if q.Outcome != "" && q.Outcome != "NONE" {
		if !rules.Outcome(q.Outcome).Valid() {
			return audit.NewQueryError(q, fmt.Errorf("invalid outcome: %s", q.Outcome))
		}
	}

	switch q.Status {
	case "", "success", "error":
	default:
		return audit.NewQueryError(q, fmt.Errorf("invalid status: %s (must be 'success' or 'error')", q.Status))
	}

	return nil
}

// ApplyDefaults fills in the default limit and sort order and normalizes
// the outcome filter to upper case.
func ApplyDefaults(q *audit.Query, limits Limits) {
	if q.Limit == 0 {
		q.Limit = limits.def()
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
	q.Outcome = strings.ToUpper(q.Outcome)
}

// Prepare applies defaults and validates q.
func Prepare(q *audit.Query, limits Limits) error {
	ApplyDefaults(q, limits)
	return Validate(q, limits)
}
