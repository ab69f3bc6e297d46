package event

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

type mockStore struct {
	res  *db.QueryResult
	err  error
	last *db.AggregateQuery
}

func (m *mockStore) Query(_ context.Context, q *db.AggregateQuery) (*db.QueryResult, error) {
	m.last = q
	return m.res, m.err
}

func TestQuery_FlattensByScoreAlias(t *testing.T) {
	store := &mockStore{res: &db.QueryResult{
		Rows: []db.Row{
			{GroupID: 1, Values: map[string]int64{"last_seen": 500, "total": 1}},
			{GroupID: 2, Values: map[string]int64{"last_seen": 400, "total": 1}},
		},
		Total: 7,
	}}
	repo := New(store)

	q := &db.AggregateQuery{OrderBy: []string{"-last_seen", "issue"}}
	rows, total, err := repo.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []result.ScoredRow{{ID: 1, Score: 500}, {ID: 2, Score: 400}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
	if total != 7 {
		t.Errorf("total = %d", total)
	}
}

func TestQuery_SampleAlias(t *testing.T) {
	store := &mockStore{res: &db.QueryResult{
		Rows: []db.Row{{GroupID: 9, Values: map[string]int64{"sample": 12345, "total": 1}}},
	}}
	repo := New(store)

	q := &db.AggregateQuery{Sample: true, OrderBy: []string{"sample"}}
	rows, _, err := repo.Query(context.Background(), q)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0].Score != 12345 {
		t.Errorf("rows = %v, want the sample value as score", rows)
	}
}

func TestQuery_ErrorWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	repo := New(&mockStore{err: boom})
	if _, _, err := repo.Query(context.Background(), &db.AggregateQuery{}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store error", err)
	}
}
