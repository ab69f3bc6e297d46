package search

import (
	"time"

	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
)

const (
	// allowedFutureSkew pads the default window end so events stamped
	// slightly ahead of this host's clock still match.
	allowedFutureSkew = 10 * time.Minute

	// retentionDays is the hard retention floor for the analytical store.
	retentionDays = 90
)

// queryWindow is the effective [start, end) interval of one search.
type queryWindow struct {
	start time.Time
	end   time.Time
}

// resolveWindow derives the query window from explicit date filters, the
// retention floor and the clock. explicitEnd reports whether the caller
// bounded the end (the relational fast path only applies when it did not).
// empty short-circuits the search: either the requested range lies entirely
// before retention, or the clamped window is degenerate.
func resolveWindow(now time.Time, req *Request) (win queryWindow, explicitEnd, empty bool) {
	end := minNonZero(req.DateTo, timeBound(req.Filters, "date", true))
	explicitEnd = !end.IsZero()
	if !explicitEnd {
		end = now.Add(allowedFutureSkew)
	}

	retention := now.AddDate(0, 0, -retentionDays)
	if !req.RetentionWindowStart.IsZero() && req.RetentionWindowStart.After(retention) {
		retention = req.RetentionWindowStart
	}

	start := maxNonZero(req.DateFrom, retention, timeBound(req.Filters, "date", false))
	if end.Before(retention) {
		end = retention
	}

	if start.Equal(retention) && end.Equal(retention) {
		// Both bounds were trimmed to the retention floor: the entire
		// requested range is outside retention.
		return queryWindow{}, explicitEnd, true
	}
	if !start.Before(end) {
		return queryWindow{}, explicitEnd, true
	}

	return queryWindow{start: start, end: end}, explicitEnd, false
}

// timeBound finds the most restrictive explicit time bound on the named
// field: the minimum over upper-bound operators when upper is true, the
// maximum over lower-bound operators otherwise. Zero time when absent.
func timeBound(filters []filter.Filter, name string, upper bool) time.Time {
	var found time.Time
	for _, f := range filters {
		if f.Key() != name {
			continue
		}
		if upper && !f.Op().Less() || !upper && !f.Op().Greater() {
			continue
		}
		t, ok := f.Value().(time.Time)
		if !ok {
			continue
		}
		if found.IsZero() || (upper && t.Before(found)) || (!upper && t.After(found)) {
			found = t
		}
	}
	return found
}

func minNonZero(ts ...time.Time) time.Time {
	var m time.Time
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if m.IsZero() || t.Before(m) {
			m = t
		}
	}
	return m
}

func maxNonZero(ts ...time.Time) time.Time {
	var m time.Time
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if m.IsZero() || t.After(m) {
			m = t
		}
	}
	return m
}
