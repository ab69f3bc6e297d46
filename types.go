package groupdex

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
	"github.com/kailas-cloud/groupdex/internal/domain/search/sortby"
	"github.com/kailas-cloud/groupdex/internal/usecase/search"
)

// Filter is one structured search predicate.
type Filter struct {
	Key   string
	Op    string // "=", "!=", ">", ">=", "<", "<=", "IN"
	Value any
	Tag   bool
}

// SearchRequest describes one federated search.
type SearchRequest struct {
	Projects     []int64
	Environments []int64 // empty = all environments
	Filters      []Filter
	Sort         string // "date" (default), "freq", "new", "priority"
	Limit        int
	Cursor       string // token from a previous SearchResult
	CountHits    bool

	DateFrom             time.Time
	DateTo               time.Time
	RetentionWindowStart time.Time
}

// Group is one hydrated issue group.
type Group struct {
	ID             int64
	ProjectID      int64
	Status         int
	AssigneeID     *int64
	FirstReleaseID *int64
	FirstSeen      time.Time
	LastSeen       time.Time
	ActiveAt       time.Time
	TimesSeen      int64
}

// SearchResult is one page of groups plus pagination tokens. Hits is nil
// when counting was not requested.
type SearchResult struct {
	Groups []Group

	PrevCursor     string
	PrevHasResults bool
	NextCursor     string
	NextHasResults bool

	Hits *int
}

func (r SearchRequest) toInternal() (*search.Request, error) {
	sortKey, err := sortby.Parse(r.Sort)
	if err != nil {
		return nil, fmt.Errorf("groupdex: %w", err)
	}

	filters := make([]filter.Filter, 0, len(r.Filters))
	for _, f := range r.Filters {
		ff, err := filter.New(f.Key, filter.Operator(f.Op), f.Value, f.Tag)
		if err != nil {
			return nil, fmt.Errorf("groupdex: %w", err)
		}
		filters = append(filters, ff)
	}

	q := &search.Request{
		Projects:             r.Projects,
		Environments:         r.Environments,
		Filters:              filters,
		Sort:                 sortKey,
		Limit:                r.Limit,
		CountHits:            r.CountHits,
		DateFrom:             r.DateFrom,
		DateTo:               r.DateTo,
		RetentionWindowStart: r.RetentionWindowStart,
	}
	if r.Cursor != "" {
		cur, err := cursor.Parse(r.Cursor)
		if err != nil {
			return nil, fmt.Errorf("groupdex: %w", err)
		}
		q.Cursor = &cur
	}
	return q, nil
}

func resultFromInternal(page result.Page) SearchResult {
	out := SearchResult{
		Groups:         make([]Group, 0, len(page.Groups)),
		PrevCursor:     page.Prev.String(),
		PrevHasResults: page.Prev.HasResults,
		NextCursor:     page.Next.String(),
		NextHasResults: page.Next.HasResults,
		Hits:           page.Hits,
	}
	for _, g := range page.Groups {
		out.Groups = append(out.Groups, Group{
			ID:             g.ID,
			ProjectID:      g.ProjectID,
			Status:         int(g.Status),
			AssigneeID:     g.AssigneeID,
			FirstReleaseID: g.FirstReleaseID,
			FirstSeen:      g.FirstSeen,
			LastSeen:       g.LastSeen,
			ActiveAt:       g.ActiveAt,
			TimesSeen:      g.TimesSeen,
		})
	}
	return out
}
