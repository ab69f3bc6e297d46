package search

import (
	"reflect"
	"testing"

	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

func scored(pairs ...int64) []result.ScoredRow {
	rows := make([]result.ScoredRow, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		rows = append(rows, result.ScoredRow{ID: pairs[i], Score: pairs[i+1]})
	}
	return rows
}

func pageIDs(p result.IDPage) []int64 { return p.IDs }

func TestPaginate_FirstPage(t *testing.T) {
	rows := scored(1, 100, 2, 90, 3, 90, 4, 90, 5, 80)

	p := paginate(rows, 2, nil, nil)
	if want := []int64{1, 2}; !reflect.DeepEqual(pageIDs(p), want) {
		t.Fatalf("ids = %v, want %v", p.IDs, want)
	}
	if p.Prev.HasResults {
		t.Error("no rows precede the first page")
	}
	if !p.Next.HasResults {
		t.Error("rows remain after the first page")
	}
	if p.Next.Value != 90 || p.Next.Offset != 1 {
		t.Errorf("next = %+v, want value 90 offset 1", p.Next)
	}
}

func TestPaginate_WalkForwardAndBack(t *testing.T) {
	rows := scored(1, 100, 2, 90, 3, 90, 4, 90, 5, 80)

	p1 := paginate(rows, 2, nil, nil)
	p2 := paginate(rows, 2, &p1.Next, nil)
	if want := []int64{3, 4}; !reflect.DeepEqual(pageIDs(p2), want) {
		t.Fatalf("page2 = %v, want %v", p2.IDs, want)
	}
	p3 := paginate(rows, 2, &p2.Next, nil)
	if want := []int64{5}; !reflect.DeepEqual(pageIDs(p3), want) {
		t.Fatalf("page3 = %v, want %v", p3.IDs, want)
	}
	if p3.Next.HasResults {
		t.Error("stream is exhausted after page3")
	}

	// Going back from page2 reproduces page1 exactly.
	back := paginate(rows, 2, &p2.Prev, nil)
	if !reflect.DeepEqual(pageIDs(back), pageIDs(p1)) {
		t.Fatalf("back = %v, want page1 %v", back.IDs, p1.IDs)
	}
	if back.Prev.HasResults {
		t.Error("nothing precedes page1")
	}
}

func TestPaginate_EqualScoreRunOffsets(t *testing.T) {
	// Every row shares one score; positions are carried purely by offsets.
	rows := scored(1, 50, 2, 50, 3, 50, 4, 50, 5, 50)

	var ids []int64
	cur := (*cursor.Cursor)(nil)
	for {
		p := paginate(rows, 2, cur, nil)
		ids = append(ids, p.IDs...)
		if !p.Next.HasResults {
			break
		}
		next := p.Next
		cur = &next
	}
	if want := []int64{1, 2, 3, 4, 5}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("walk = %v, want %v", ids, want)
	}
}

func TestPaginate_CursorPastEnd(t *testing.T) {
	rows := scored(1, 100, 2, 90)
	cur := &cursor.Cursor{Value: 90, Offset: 10}
	p := paginate(rows, 2, cur, nil)
	if len(p.IDs) != 0 {
		t.Fatalf("ids = %v, want empty", p.IDs)
	}
}

func TestPaginate_KnownHitsPassthrough(t *testing.T) {
	hits := 42
	p := paginate(scored(1, 10), 5, nil, &hits)
	if p.Hits == nil || *p.Hits != 42 {
		t.Fatalf("hits = %v, want 42", p.Hits)
	}
}

func TestPaginate_InputOrderIrrelevant(t *testing.T) {
	a := paginate(scored(3, 10, 1, 30, 2, 20), 3, nil, nil)
	b := paginate(scored(1, 30, 2, 20, 3, 10), 3, nil, nil)
	if !reflect.DeepEqual(a.IDs, b.IDs) {
		t.Fatalf("order-dependent pagination: %v vs %v", a.IDs, b.IDs)
	}
	if want := []int64{1, 2, 3}; !reflect.DeepEqual(a.IDs, want) {
		t.Fatalf("ids = %v, want %v", a.IDs, want)
	}
}
