// Package result defines the value types flowing out of a search query.
package result

import (
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
)

// ScoredRow is one (group identifier, score) pair returned by the analytical
// store. The score type follows the sort aggregate: a millisecond-scaled
// timestamp, an event count, or the composite priority value.
type ScoredRow struct {
	ID    int64
	Score int64
}

// IDPage is one page of group identifiers with surrounding cursors, before
// hydration against the relational store. Hits is nil when counting was
// disabled or the estimate is unknown.
type IDPage struct {
	IDs  []int64
	Prev cursor.Cursor
	Next cursor.Cursor
	Hits *int
}

// Page is the final paginated result handed to the caller: hydrated groups
// in rank order plus prev/next cursors and the (possibly estimated) total
// hit count.
type Page struct {
	Groups []group.Group
	Prev   cursor.Cursor
	Next   cursor.Cursor
	Hits   *int
}

// EmptyPage is the canonical empty result. When counting was requested the
// hit count is a known zero, otherwise unknown.
func EmptyPage(countHits bool) Page {
	p := Page{Groups: []group.Group{}, Prev: cursor.Cursor{IsPrev: true}}
	if countHits {
		zero := 0
		p.Hits = &zero
	}
	return p
}
