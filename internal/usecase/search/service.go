// Package search implements federated ranked search over a relational group
// store and an analytical event store.
//
// Neither store can answer a mixed query alone: the relational side owns
// mutable triage state (status, assignment, bookmarks) with no fast
// aggregation over events, the analytical side owns immutable event history
// with no arbitrary-predicate joins back to groups. The executor splits
// predicates between the stores, bridges identifiers, and grows the
// analytical search radius in chunks until a page of verified results is
// collected or the time budget runs out.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain"
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
	"github.com/kailas-cloud/groupdex/internal/domain/search/sortby"
	"github.com/kailas-cloud/groupdex/internal/metrics"
)

const defaultLimit = 100

// Options are the externally supplied tuning knobs, read once per query.
type Options struct {
	// MaxCandidates caps the relational pre-filter; above it the executor
	// falls back to full analytical filtering with relational post-checks.
	MaxCandidates int
	// ChunkGrowth multiplies the chunk limit each iteration.
	ChunkGrowth float64
	// MaxChunkSize caps the per-iteration analytical limit.
	MaxChunkSize int
	// MaxTime is the soft wall-clock budget for the chunked loop. It is
	// checked between iterations only; an in-flight store call is never
	// cancelled by the loop.
	MaxTime time.Duration
	// SampleSize is the hit-estimation sample size. ~96 samples bound the
	// estimate within +/-10% at 95% confidence at the worst-case 50% hit
	// ratio (normal-approximation interval), so keep it configurable.
	SampleSize int
}

func (o Options) withDefaults() Options {
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 1000
	}
	if o.ChunkGrowth < 1 {
		o.ChunkGrowth = 1.5
	}
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = 10000
	}
	if o.MaxTime <= 0 {
		o.MaxTime = 10 * time.Second
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 100
	}
	return o
}

// Request is one search query. Filters are never mutated by the executor.
type Request struct {
	Projects     []int64
	Environments []int64 // empty = no environment scope
	Filters      []filter.Filter
	Sort         sortby.Key
	Limit        int
	Cursor       *cursor.Cursor
	CountHits    bool

	DateFrom time.Time // zero = unset
	DateTo   time.Time // zero = unset
	// RetentionWindowStart raises the 90-day retention floor when set.
	RetentionWindowStart time.Time
}

// Service executes federated searches. Safe for concurrent use: all mutable
// state is per-query.
type Service struct {
	groups   GroupStore
	events   EventStore
	releases ReleaseResolver
	cache    EstimateCache
	dialect  *Dialect
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a search service for the given dialect.
func New(groups GroupStore, events EventStore, dialect *Dialect, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		groups:  groups,
		events:  events,
		dialect: dialect,
		opts:    opts.withDefaults(),
		logger:  logger,
		now:     time.Now,
	}
}

// WithReleaseResolver enables release label resolution in dialect transforms.
func (s *Service) WithReleaseResolver(r ReleaseResolver) *Service {
	s.releases = r
	return s
}

// WithEstimateCache enables caching of sampling-based hit estimates.
func (s *Service) WithEstimateCache(c EstimateCache) *Service {
	s.cache = c
	return s
}

// withClock overrides the clock. Test hook.
func (s *Service) withClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// loopState threads the chunked loop's state between iterations explicitly.
type loopState struct {
	offset     int
	chunkLimit int
	candidates []int64
	tooMany    bool

	// rows is the accumulator: insertion-ordered (id, score) pairs. seen
	// enforces the first-seen-wins law across overlapping chunks.
	rows []result.ScoredRow
	seen map[int64]struct{}

	hits     *int
	hitsDone bool

	moreResults bool
}

// Query runs one federated search and returns a hydrated, paginated result.
//
// Store failures propagate as errors; empty-result conditions (window before
// retention, degenerate window, zero candidates) return the canonical empty
// page without touching the analytical store.
func (s *Service) Query(ctx context.Context, req *Request) (result.Page, error) {
	if len(req.Projects) == 0 {
		return result.Page{}, domain.ErrNoProjects
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	// Configuration inconsistency is fatal before any store call.
	sortField, err := s.dialect.SortField(req.Sort)
	if err != nil {
		return result.Page{}, err
	}

	started := time.Now()
	defer func() { metrics.SearchDuration.Observe(time.Since(started).Seconds()) }()

	now := s.now()
	win, explicitEnd, empty := resolveWindow(now, req)

	// The window ends at "now": if the sort is recency and nothing needs
	// the analytical store, the relational store answers directly.
	if !explicitEnd && s.relationalOnly(req) {
		page, err := s.groups.RecentFirst(ctx, req.Projects, req.Filters, limit, nil, req.CountHits)
		if err != nil {
			return result.Page{}, fmt.Errorf("recent-first fast path: %w", err)
		}
		return page, nil
	}

	if empty {
		return result.EmptyPage(req.CountHits), nil
	}

	tc := TransformContext{Projects: req.Projects, Environments: req.Environments, Releases: s.releases}
	cls, err := classifyFilters(ctx, s.dialect, req.Filters, tc)
	if err != nil {
		return result.Page{}, err
	}

	st := &loopState{chunkLimit: limit, seen: make(map[int64]struct{})}

	candidates, err := s.groups.Candidates(ctx, req.Projects, req.Filters, s.opts.MaxCandidates+1)
	if err != nil {
		return result.Page{}, fmt.Errorf("prefetch candidates: %w", err)
	}
	metrics.SearchCandidates.Observe(float64(len(candidates)))
	switch {
	case len(candidates) == 0:
		// No relational match can exist from this point on.
		metrics.SearchNoCandidates.Inc()
		return result.EmptyPage(req.CountHits), nil
	case len(candidates) > s.opts.MaxCandidates:
		// The pre-filter did not narrow the set enough to forward; let the
		// analytical store filter and sort, then post-verify relationally.
		metrics.SearchTooManyCandidates.Inc()
		st.tooMany = true
	default:
		st.candidates = candidates
	}

	page := paginate(nil, limit, req.Cursor, nil)
	numChunks := 0
	loopStart := s.now()

	for s.now().Sub(loopStart) < s.opts.MaxTime {
		numChunks++

		// Grow the search radius each iteration, up to the cap; with
		// forwarded candidates one call must be able to return them all.
		st.chunkLimit = int(float64(st.chunkLimit) * s.opts.ChunkGrowth)
		if st.chunkLimit > s.opts.MaxChunkSize {
			st.chunkLimit = s.opts.MaxChunkSize
		}
		if n := len(st.candidates); n > st.chunkLimit {
			st.chunkLimit = n
		}

		rows, total, err := s.eventSearch(ctx, eventSearchParams{
			win:       win,
			sortField: sortField,
			cursor:    req.Cursor,
			groupIDs:  st.candidates,
			limit:     st.chunkLimit,
			offset:    st.offset,
			cls:       cls,
			req:       req,
		})
		if err != nil {
			return result.Page{}, err
		}
		metrics.SearchResultRows.Observe(float64(len(rows)))

		count := len(rows)
		st.moreResults = count >= limit && st.offset+limit < total
		st.offset += count

		if count == 0 {
			break
		}

		if len(st.candidates) > 0 {
			// Forwarded candidates mean the analytical result already is
			// the full filtered set: the chunk limit was floored at the
			// candidate count, so one pass returns everything.
			st.rows = rows
		} else if err := s.postFilter(ctx, st, req, rows); err != nil {
			return result.Page{}, err
		}

		if !st.hitsDone {
			hits, err := s.calculateHits(ctx, st, cls, sortField, win, req, rows)
			if err != nil {
				return result.Page{}, err
			}
			st.hits, st.hitsDone = hits, true
		}

		page = paginate(st.rows, limit, req.Cursor, st.hits)

		if len(st.candidates) > 0 || len(page.IDs) >= limit || !st.moreResults {
			break
		}
	}
	metrics.SearchChunks.Observe(float64(numChunks))

	s.finalizeCursors(&page, limit, req, st)

	out, err := s.hydrate(ctx, page)
	if err != nil {
		return result.Page{}, err
	}

	s.logger.Debug("federated search finished",
		zap.Int("chunks", numChunks),
		zap.Int("results", len(out.Groups)),
		zap.Bool("too_many_candidates", st.tooMany),
	)
	return out, nil
}

// relationalOnly reports whether the query needs no analytical predicate or
// ordering at all: recency sort, no cursor, no environment scope, and every
// filter either relational-only or the date field.
func (s *Service) relationalOnly(req *Request) bool {
	if req.Cursor != nil || req.Sort != sortby.Date || len(req.Environments) != 0 {
		return false
	}
	for _, f := range req.Filters {
		if f.Key() == "date" {
			continue
		}
		if _, ok := s.dialect.IssueOnlyFields[f.Key()]; !ok {
			return false
		}
	}
	return true
}

// postFilter verifies a chunk's identifiers against the relational
// predicates and merges survivors into the accumulator, first-seen-wins.
func (s *Service) postFilter(ctx context.Context, st *loopState, req *Request, rows []result.ScoredRow) error {
	ids := make([]int64, len(rows))
	scores := make(map[int64]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		scores[r.ID] = r.Score
	}

	existing, err := s.groups.FilterExisting(ctx, req.Projects, req.Filters, ids)
	if err != nil {
		return fmt.Errorf("post-filter groups: %w", err)
	}

	for _, id := range existing {
		if _, dup := st.seen[id]; dup {
			// Chunks come from separate store reads outside any shared
			// transaction, so scores can drift between iterations and the
			// same group can reappear; keep the first-seen score.
			continue
		}
		st.seen[id] = struct{}{}
		st.rows = append(st.rows, result.ScoredRow{ID: id, Score: scores[id]})
	}
	return nil
}

// finalizeCursors corrects the has-more flags: the paginator only ever saw
// the merged in-memory slice, not the store-side result set.
func (s *Service) finalizeCursors(page *result.IDPage, limit int, req *Request, st *loopState) {
	if len(page.IDs) == limit && st.moreResults {
		// Exactly limit items can make the paginator believe the stream is
		// exhausted when the store says otherwise.
		page.Next.HasResults = true
	}
	if req.Cursor != nil && (!req.Cursor.IsPrev || len(page.IDs) > 0) {
		// The caller came from somewhere: going back is known to be possible.
		page.Prev.HasResults = true
	}
	if page.Hits == nil {
		page.Hits = st.hits
	}
}

// hydrate loads the final identifiers from the relational store, dropping
// any identifier deleted or merged since the analytical read.
func (s *Service) hydrate(ctx context.Context, page result.IDPage) (result.Page, error) {
	groups, err := s.groups.Hydrate(ctx, page.IDs)
	if err != nil {
		return result.Page{}, fmt.Errorf("hydrate groups: %w", err)
	}
	out := result.Page{
		Groups: make([]group.Group, 0, len(page.IDs)),
		Prev:   page.Prev,
		Next:   page.Next,
		Hits:   page.Hits,
	}
	for _, id := range page.IDs {
		if g, ok := groups[id]; ok {
			out.Groups = append(out.Groups, g)
		}
	}
	return out, nil
}

// eventSearchParams are the inputs of one analytical-store call.
type eventSearchParams struct {
	win       queryWindow
	sortField string
	cursor    *cursor.Cursor
	groupIDs  []int64
	limit     int
	offset    int
	sample    bool
	cls       classifiedFilters
	req       *Request
}

// buildEventQuery assembles the aggregate query per the dialect: row scope,
// having conditions (including the cursor inequality), the aggregate union
// of sort field, total, declared dependencies and having fields, and either
// ranked ordering or the deterministic sample.
func (s *Service) buildEventQuery(p eventSearchParams) (*db.AggregateQuery, error) {
	having := append([]db.Condition(nil), p.cls.having...)

	required := map[string]struct{}{p.sortField: {}, "total": {}}
	for _, dep := range s.dialect.DependencyAggregations[p.sortField] {
		required[dep] = struct{}{}
	}
	for _, h := range p.cls.having {
		required[h.Field] = struct{}{}
	}
	aliases := make([]string, 0, len(required))
	for alias := range required {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	aggregates := make([]db.Aggregate, 0, len(aliases))
	for _, alias := range aliases {
		agg, err := s.dialect.aggregate(alias)
		if err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}

	if p.cursor != nil {
		op := "<="
		if p.cursor.IsPrev {
			op = ">="
		}
		having = append(having, db.Condition{Field: p.sortField, Op: op, Value: p.cursor.Value})
	}

	var orderBy []string
	var seed string
	if p.sample {
		seed = db.SampleSeed(p.cls.conditions)
		orderBy = []string{"sample"}
	} else {
		// Descending score with ascending identifier tie-break keeps
		// pagination stable across repeated queries with equal scores.
		orderBy = []string{"-" + p.sortField, s.dialect.IssueField}
	}

	var groupIDs []int64
	if len(p.groupIDs) > 0 {
		groupIDs = append([]int64(nil), p.groupIDs...)
		sort.Slice(groupIDs, func(i, j int) bool { return groupIDs[i] < groupIDs[j] })
	}

	return &db.AggregateQuery{
		Start:        p.win.start,
		End:          p.win.end,
		Projects:     p.req.Projects,
		Environments: p.req.Environments,
		GroupIDs:     groupIDs,
		GroupKey:     s.dialect.IssueField,
		Conditions:   p.cls.conditions,
		Having:       having,
		Aggregates:   aggregates,
		OrderBy:      orderBy,
		Limit:        p.limit,
		Offset:       p.offset,
		Sample:       p.sample,
		SampleSeed:   seed,
		Totals:       true,
	}, nil
}

func (s *Service) eventSearch(ctx context.Context, p eventSearchParams) ([]result.ScoredRow, int, error) {
	q, err := s.buildEventQuery(p)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.events.Query(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("event search: %w", err)
	}
	return rows, total, nil
}
