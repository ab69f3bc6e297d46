package search

import (
	"context"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

// GroupStore is the relational-store contract consumed by the executor.
// Implementations apply only the relational predicates they understand;
// analytical-only predicates are verified by the analytical side.
type GroupStore interface {
	// Candidates returns up to limit matching group identifiers in
	// ascending identifier order. The executor passes its candidate cap
	// plus one so an over-cap result is detectable.
	Candidates(ctx context.Context, projects []int64, filters []filter.Filter, limit int) ([]int64, error)

	// FilterExisting returns the subset of ids that match the relational
	// predicates, preserving no particular order.
	FilterExisting(ctx context.Context, projects []int64, filters []filter.Filter, ids []int64) ([]int64, error)

	// CountMatching counts how many of ids match the relational predicates.
	CountMatching(ctx context.Context, projects []int64, filters []filter.Filter, ids []int64) (int, error)

	// Hydrate loads groups by identifier; missing identifiers are silently
	// absent from the map.
	Hydrate(ctx context.Context, ids []int64) (map[int64]group.Group, error)

	// RecentFirst is the pure relational fast path: recency-ordered
	// pagination without touching the analytical store. Only valid when the
	// query has no environment scope, no cursor bisection and no
	// analytical-only predicates.
	RecentFirst(ctx context.Context, projects []int64, filters []filter.Filter, limit int, cur *cursor.Cursor, countHits bool) (result.Page, error)
}

// EventStore is the analytical-store contract: one grouped, ranked (or
// sampled) query returning scored rows and the totals-after-having count.
type EventStore interface {
	Query(ctx context.Context, q *db.AggregateQuery) ([]result.ScoredRow, int, error)
}

// ReleaseResolver resolves a human-readable release label to the store's
// numeric identifier. Returns domain.ErrNotFound when the label is unknown.
type ReleaseResolver interface {
	ResolveVersion(ctx context.Context, projectID int64, version string) (int64, error)
}

// EstimateCache is an optional TTL cache for sampling-based hit estimates,
// keyed by the deterministic query fingerprint. Failures degrade to
// recomputation, never to query failure.
type EstimateCache interface {
	Get(ctx context.Context, key string) (hits int, ok bool, err error)
	Set(ctx context.Context, key string, hits int) error
}
