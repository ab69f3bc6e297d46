package search

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

// calculateHits estimates the total hit count, once per query, by one of
// three strategies:
//
//  1. counting disabled: nil (unknown).
//  2. exact: forwarded candidates with no cursor bisection mean the single
//     analytical result set is the full filtered set; hits is its size.
//  3. sampling: candidates were discarded as too many, or a cursor slices
//     the visible window. Draw a deterministic hashed sample under the same
//     row/having filters, re-verify it relationally, and extrapolate by the
//     ratio against the sample query's exact total.
func (s *Service) calculateHits(
	ctx context.Context,
	st *loopState,
	cls classifiedFilters,
	sortField string,
	win queryWindow,
	req *Request,
	chunk []result.ScoredRow,
) (*int, error) {
	if !req.CountHits {
		return nil, nil
	}

	if !st.tooMany && req.Cursor == nil {
		hits := len(chunk)
		return &hits, nil
	}

	q, err := s.buildEventQuery(eventSearchParams{
		win:       win,
		sortField: sortField,
		limit:     s.opts.SampleSize,
		sample:    true,
		cls:       cls,
		req:       req,
	})
	if err != nil {
		return nil, err
	}

	key := "groupdex:hits:" + db.Fingerprint(q)
	if s.cache != nil {
		hits, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("hit estimate cache read failed", zap.Error(err))
		} else if ok {
			return &hits, nil
		}
	}

	rows, total, err := s.events.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sample search: %w", err)
	}

	// The sample returns all matching groups when fewer than SampleSize
	// exist, so small result sets get an exact count for free.
	hits := 0
	if len(rows) > 0 {
		ids := make([]int64, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		filtered, err := s.groups.CountMatching(ctx, req.Projects, req.Filters, ids)
		if err != nil {
			return nil, fmt.Errorf("count sampled matches: %w", err)
		}
		ratio := float64(filtered) / float64(len(rows))
		hits = int(math.Round(ratio * float64(total)))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, hits); err != nil {
			s.logger.Warn("hit estimate cache write failed", zap.Error(err))
		}
	}
	return &hits, nil
}
