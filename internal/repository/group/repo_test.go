package group

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/groupdex/internal/domain"
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
)

func pgBuilder() *builder     { return &builder{postgres: true} }
func sqliteBuilder() *builder { return &builder{} }

func TestBuilder_Placeholders(t *testing.T) {
	b := pgBuilder()
	b.projectScope([]int64{1, 2})
	if got := b.where(); got != "project_id IN ($1, $2)" {
		t.Errorf("postgres where = %q", got)
	}

	b = sqliteBuilder()
	b.projectScope([]int64{1, 2})
	if got := b.where(); got != "project_id IN (?, ?)" {
		t.Errorf("sqlite where = %q", got)
	}
	if len(b.args) != 2 || b.args[0] != int64(1) {
		t.Errorf("args = %v", b.args)
	}
}

func TestBuilder_StatusAndAssignment(t *testing.T) {
	b := sqliteBuilder()
	err := b.applyFilters([]filter.Filter{
		filter.MustNew("status", filter.OpEq, int64(0), false),
		filter.MustNew("assigned_to", filter.OpEq, int64(7), false),
	})
	if err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "status = ? AND assignee_id = ?" {
		t.Errorf("where = %q", got)
	}
}

func TestBuilder_Unassigned(t *testing.T) {
	b := sqliteBuilder()
	if err := b.applyFilters([]filter.Filter{filter.MustNew("unassigned", filter.OpEq, true, false)}); err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "assignee_id IS NULL" {
		t.Errorf("where = %q", got)
	}

	b = sqliteBuilder()
	if err := b.applyFilters([]filter.Filter{filter.MustNew("unassigned", filter.OpEq, false, false)}); err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "assignee_id IS NOT NULL" {
		t.Errorf("where = %q", got)
	}
}

func TestBuilder_MembershipSubqueries(t *testing.T) {
	b := pgBuilder()
	err := b.applyFilters([]filter.Filter{
		filter.MustNew("bookmarked_by", filter.OpEq, int64(3), false),
		filter.MustNew("subscribed_by", filter.OpEq, int64(3), false),
		filter.MustNew("first_release", filter.OpEq, "v1.0", false),
	})
	if err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	w := b.where()
	for _, want := range []string{"group_bookmarks", "group_subscriptions", "releases"} {
		if !strings.Contains(w, want) {
			t.Errorf("where missing %q: %q", want, w)
		}
	}
}

func TestBuilder_DateMapsToLastSeen(t *testing.T) {
	b := sqliteBuilder()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := b.applyFilters([]filter.Filter{
		filter.MustNew("date", filter.OpGte, ts, false),
		filter.MustNew("first_seen", filter.OpLt, ts, false),
	})
	if err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "last_seen >= ? AND first_seen < ?" {
		t.Errorf("where = %q", got)
	}
}

func TestBuilder_SkipsTagsAndUnknownFields(t *testing.T) {
	b := sqliteBuilder()
	err := b.applyFilters([]filter.Filter{
		filter.MustNew("server_name", filter.OpEq, "web-1", true),
		filter.MustNew("times_seen_rate", filter.OpGt, 5, false),
	})
	if err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "1=1" {
		t.Errorf("where = %q, want no clauses", got)
	}
}

func TestBuilder_InOperator(t *testing.T) {
	b := sqliteBuilder()
	err := b.applyFilters([]filter.Filter{
		filter.MustNew("status", filter.OpIn, []any{int64(0), int64(2)}, false),
	})
	if err != nil {
		t.Fatalf("applyFilters: %v", err)
	}
	if got := b.where(); got != "status IN (?, ?)" {
		t.Errorf("where = %q", got)
	}

	b = sqliteBuilder()
	err = b.applyFilters([]filter.Filter{
		filter.MustNew("status", filter.OpIn, "not-a-list", false),
	})
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("err = %v, want ErrInvalidFilter", err)
	}
}

func TestRecentCursors(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	groups := []group.Group{
		{ID: 1, LastSeen: base.Add(2 * time.Hour)},
		{ID: 2, LastSeen: base.Add(time.Hour)},
		{ID: 3, LastSeen: base.Add(time.Hour)},
	}

	prev, next := recentCursors(groups, nil, true)
	if prev.HasResults {
		t.Error("no cursor supplied: nothing precedes the first page")
	}
	if !next.HasResults {
		t.Error("hasMore must flow into the next cursor")
	}
	if next.Value != base.Add(time.Hour).UnixMilli() {
		t.Errorf("next.Value = %d", next.Value)
	}
	if next.Offset != 2 {
		t.Errorf("next.Offset = %d, want the trailing equal-value run length", next.Offset)
	}
	if prev.Value != base.Add(2*time.Hour).UnixMilli() || prev.Offset != 1 {
		t.Errorf("prev = %+v, want value of row 1 with offset 1", prev)
	}

	cur := &cursor.Cursor{Value: 123}
	prev, _ = recentCursors(groups, cur, false)
	if !prev.HasResults {
		t.Error("a supplied cursor means going back is possible")
	}
}

func TestRecentCursors_PrevSkipsBoundaryRun(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	// Second page of a limit-2 walk over four distinct timestamps. The prev
	// query re-scans from the boundary inclusively, so its offset must skip
	// the page's own leading row or paging back duplicates it.
	page2 := []group.Group{
		{ID: 3, LastSeen: base.Add(2 * time.Hour)},
		{ID: 4, LastSeen: base.Add(time.Hour)},
	}
	prev, _ := recentCursors(page2, &cursor.Cursor{Value: page2[0].LastSeen.UnixMilli()}, true)
	if prev.Value != page2[0].LastSeen.UnixMilli() {
		t.Errorf("prev.Value = %d, want the page's first last_seen", prev.Value)
	}
	if prev.Offset != 1 {
		t.Errorf("prev.Offset = %d, want 1 to step past the boundary row", prev.Offset)
	}

	// A page whose leading rows tie: the whole run must be skipped.
	tied := []group.Group{
		{ID: 5, LastSeen: base.Add(time.Hour)},
		{ID: 6, LastSeen: base.Add(time.Hour)},
		{ID: 7, LastSeen: base},
	}
	prev, _ = recentCursors(tied, &cursor.Cursor{Value: tied[0].LastSeen.UnixMilli()}, true)
	if prev.Offset != 2 {
		t.Errorf("prev.Offset = %d, want the leading run length 2", prev.Offset)
	}
}
