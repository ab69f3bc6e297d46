// Package event adapts the analytical store to the executor's contract.
package event

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

// store is the consumer interface for aggregate queries (ISP).
type store interface {
	Query(ctx context.Context, q *db.AggregateQuery) (*db.QueryResult, error)
}

// Repo implements usecase/search.EventStore.
type Repo struct {
	store store
}

// New creates an event repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Query runs one aggregate query and flattens the grouped rows into scored
// rows, taking the score from the query's ordering alias. The second return
// is the totals-after-having group count.
func (r *Repo) Query(ctx context.Context, q *db.AggregateQuery) ([]result.ScoredRow, int, error) {
	qr, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate query: %w", err)
	}

	alias := q.ScoreAlias()
	rows := make([]result.ScoredRow, 0, len(qr.Rows))
	for _, row := range qr.Rows {
		rows = append(rows, result.ScoredRow{ID: row.GroupID, Score: row.Values[alias]})
	}
	return rows, qr.Total, nil
}
