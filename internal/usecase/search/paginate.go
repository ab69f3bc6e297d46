package search

import (
	"sort"

	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

// paginate slices one page out of the accumulated scored rows.
//
// Rows are ordered score-descending with identifier-ascending tie-break,
// matching the analytical store's ORDER BY, so in-memory and store-side
// ordering agree across repeated queries. The emitted cursors carry the
// boundary score and the offset within its equal-score run; HasResults is
// derived from the slice alone and may later be overridden by the federated
// loop, which knows store-side totals the paginator does not.
func paginate(rows []result.ScoredRow, limit int, cur *cursor.Cursor, knownHits *int) result.IDPage {
	sorted := make([]result.ScoredRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	pos := 0
	if cur != nil {
		pos = bisectScore(sorted, cur.Value) + cur.Offset
		if pos > len(sorted) {
			pos = len(sorted)
		}
	}

	var start, stop int
	if cur != nil && cur.IsPrev {
		stop = pos
		start = stop - limit
		if start < 0 {
			start = 0
		}
	} else {
		start = pos
		stop = start + limit
		if stop > len(sorted) {
			stop = len(sorted)
		}
	}
	if stop < start {
		stop = start
	}

	ids := make([]int64, 0, stop-start)
	for _, r := range sorted[start:stop] {
		ids = append(ids, r.ID)
	}

	prev := positionCursor(sorted, start, true)
	prev.HasResults = start > 0
	next := positionCursor(sorted, stop, false)
	next.HasResults = stop < len(sorted)

	return result.IDPage{IDs: ids, Prev: prev, Next: next, Hits: knownHits}
}

// bisectScore returns the first index whose score is <= value. Requires rows
// sorted score-descending.
func bisectScore(sorted []result.ScoredRow, value int64) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i].Score <= value })
}

// positionCursor encodes absolute position p as a cursor: the boundary score
// plus the offset from the first row sharing it, so bisect+offset re-derives
// exactly p on the next request.
func positionCursor(sorted []result.ScoredRow, p int, isPrev bool) cursor.Cursor {
	if len(sorted) == 0 {
		return cursor.Cursor{IsPrev: isPrev}
	}
	i := p
	if i >= len(sorted) {
		i = len(sorted) - 1
	}
	v := sorted[i].Score
	return cursor.Cursor{Value: v, Offset: p - bisectScore(sorted, v), IsPrev: isPrev}
}
