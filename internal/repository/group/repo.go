// Package group implements the relational group store over database/sql.
//
// It applies only the predicates the relational schema understands; filters
// on analytical-only fields (tags, aggregate counters) are skipped here and
// verified by the analytical side of the federated executor.
package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/groupdex/internal/domain"
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
)

// querier is the consumer interface over *sql.DB (ISP).
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo implements usecase/search.GroupStore and usecase/search.ReleaseResolver.
type Repo struct {
	db       querier
	postgres bool
}

// New creates a group repository. driver is "postgres" or "sqlite"; it only
// affects placeholder style and case-insensitive matching.
func New(db querier, driver string) *Repo {
	return &Repo{db: db, postgres: driver == "postgres"}
}

const groupColumns = "id, project_id, status, assignee_id, first_release_id, first_seen, last_seen, active_at, times_seen"

// Candidates returns up to limit matching identifiers, ascending.
func (r *Repo) Candidates(ctx context.Context, projects []int64, filters []filter.Filter, limit int) ([]int64, error) {
	b := r.newBuilder()
	b.projectScope(projects)
	if err := b.applyFilters(filters); err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT id FROM groups WHERE %s ORDER BY id LIMIT %d", b.where(), limit)
	rows, err := r.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// FilterExisting returns the subset of ids matching the relational predicates.
func (r *Repo) FilterExisting(ctx context.Context, projects []int64, filters []filter.Filter, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b := r.newBuilder()
	b.projectScope(projects)
	b.idScope(ids)
	if err := b.applyFilters(filters); err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT id FROM groups WHERE %s", b.where())
	rows, err := r.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return nil, fmt.Errorf("filter existing groups: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// CountMatching counts how many of ids match the relational predicates.
func (r *Repo) CountMatching(ctx context.Context, projects []int64, filters []filter.Filter, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	b := r.newBuilder()
	b.projectScope(projects)
	b.idScope(ids)
	if err := b.applyFilters(filters); err != nil {
		return 0, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM groups WHERE %s", b.where())
	var n int
	if err := r.db.QueryRowContext(ctx, q, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matching groups: %w", err)
	}
	return n, nil
}

// Hydrate loads groups by identifier; ids deleted since the analytical read
// are simply absent from the map.
func (r *Repo) Hydrate(ctx context.Context, ids []int64) (map[int64]group.Group, error) {
	out := make(map[int64]group.Group, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	b := r.newBuilder()
	b.idScope(ids)

	q := fmt.Sprintf("SELECT %s FROM groups WHERE %s", groupColumns, b.where())
	rows, err := r.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return nil, fmt.Errorf("hydrate groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hydrate groups: %w", err)
	}
	return out, nil
}

// RecentFirst serves the pure relational fast path: last-seen-descending
// pagination without touching the analytical store. Cursor values carry the
// boundary last_seen in epoch milliseconds.
func (r *Repo) RecentFirst(ctx context.Context, projects []int64, filters []filter.Filter, limit int, cur *cursor.Cursor, countHits bool) (result.Page, error) {
	b := r.newBuilder()
	b.projectScope(projects)
	if err := b.applyFilters(filters); err != nil {
		return result.Page{}, err
	}
	where := b.where()
	baseArgs := append([]any(nil), b.args...)

	order := "last_seen DESC, id ASC"
	offset := 0
	if cur != nil {
		boundary := time.UnixMilli(cur.Value).UTC()
		if cur.IsPrev {
			where += fmt.Sprintf(" AND last_seen >= %s", b.arg(boundary))
			order = "last_seen ASC, id DESC"
		} else {
			where += fmt.Sprintf(" AND last_seen <= %s", b.arg(boundary))
		}
		offset = cur.Offset
	}

	q := fmt.Sprintf("SELECT %s FROM groups WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		groupColumns, where, order, limit+1, offset)
	rows, err := r.db.QueryContext(ctx, q, b.args...)
	if err != nil {
		return result.Page{}, fmt.Errorf("recent groups: %w", err)
	}
	defer rows.Close()

	var groups []group.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return result.Page{}, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return result.Page{}, fmt.Errorf("recent groups: %w", err)
	}

	hasMore := len(groups) > limit
	if hasMore {
		groups = groups[:limit]
	}
	if cur != nil && cur.IsPrev {
		// The prev query walked the order backwards; restore it.
		for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
			groups[i], groups[j] = groups[j], groups[i]
		}
	}

	page := result.Page{Groups: groups}
	page.Prev, page.Next = recentCursors(groups, cur, hasMore)

	if countHits {
		cq := fmt.Sprintf("SELECT COUNT(*) FROM groups WHERE %s", b.where())
		var hits int
		if err := r.db.QueryRowContext(ctx, cq, baseArgs...).Scan(&hits); err != nil {
			return result.Page{}, fmt.Errorf("count recent groups: %w", err)
		}
		page.Hits = &hits
	}
	return page, nil
}

// ResolveVersion maps a release label to its identifier within a project.
func (r *Repo) ResolveVersion(ctx context.Context, projectID int64, version string) (int64, error) {
	b := r.newBuilder()
	q := fmt.Sprintf("SELECT id FROM releases WHERE project_id = %s AND version = %s",
		b.arg(projectID), b.arg(version))

	var id int64
	err := r.db.QueryRowContext(ctx, q, b.args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve release %q: %w", version, err)
	}
	return id, nil
}

// recentCursors derives prev/next for the fast path. The boundary value is
// the page-edge last_seen in milliseconds; each offset is the page's
// equal-value run length at that edge, so the inclusive >=/<= bound of the
// follow-up query skips exactly the rows already served.
func recentCursors(groups []group.Group, cur *cursor.Cursor, hasMore bool) (prev, next cursor.Cursor) {
	prev = cursor.Cursor{IsPrev: true, HasResults: cur != nil}
	next = cursor.Cursor{HasResults: hasMore}
	if len(groups) == 0 {
		return prev, next
	}

	first := groups[0].LastSeen.UnixMilli()
	prev.Value = first
	for i := 0; i < len(groups) && groups[i].LastSeen.UnixMilli() == first; i++ {
		prev.Offset++
	}

	last := groups[len(groups)-1].LastSeen.UnixMilli()
	next.Value = last
	for i := len(groups) - 1; i >= 0 && groups[i].LastSeen.UnixMilli() == last; i-- {
		next.Offset++
	}
	return prev, next
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group ids: %w", err)
	}
	return ids, nil
}

func scanGroup(rows *sql.Rows) (group.Group, error) {
	var g group.Group
	var assignee, firstRelease sql.NullInt64
	err := rows.Scan(&g.ID, &g.ProjectID, &g.Status, &assignee, &firstRelease,
		&g.FirstSeen, &g.LastSeen, &g.ActiveAt, &g.TimesSeen)
	if err != nil {
		return group.Group{}, fmt.Errorf("scan group: %w", err)
	}
	if assignee.Valid {
		g.AssigneeID = &assignee.Int64
	}
	if firstRelease.Valid {
		g.FirstReleaseID = &firstRelease.Int64
	}
	return g, nil
}

// builder accumulates WHERE clauses with driver-correct placeholders.
type builder struct {
	postgres bool
	clauses  []string
	args     []any
}

func (r *Repo) newBuilder() *builder {
	return &builder{postgres: r.postgres}
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	if b.postgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

func (b *builder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *builder) where() string {
	if len(b.clauses) == 0 {
		return "1=1"
	}
	return strings.Join(b.clauses, " AND ")
}

func (b *builder) projectScope(projects []int64) {
	ph := make([]string, len(projects))
	for i, p := range projects {
		ph[i] = b.arg(p)
	}
	b.add(fmt.Sprintf("project_id IN (%s)", strings.Join(ph, ", ")))
}

func (b *builder) idScope(ids []int64) {
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = b.arg(id)
	}
	b.add(fmt.Sprintf("id IN (%s)", strings.Join(ph, ", ")))
}

// applyFilters translates the relational predicates; fields the schema does
// not know are skipped, not rejected.
func (b *builder) applyFilters(filters []filter.Filter) error {
	for _, f := range filters {
		if f.IsTag() {
			continue
		}
		switch f.Key() {
		case "query":
			b.textSearch(f.Value())
		case "status":
			if err := b.compare("status", f); err != nil {
				return err
			}
		case "assigned_to":
			if err := b.compare("assignee_id", f); err != nil {
				return err
			}
		case "unassigned":
			if v, ok := f.Value().(bool); ok && !v {
				b.add("assignee_id IS NOT NULL")
			} else {
				b.add("assignee_id IS NULL")
			}
		case "bookmarked_by":
			b.add(fmt.Sprintf(
				"EXISTS (SELECT 1 FROM group_bookmarks b WHERE b.group_id = groups.id AND b.user_id = %s)",
				b.arg(f.Value())))
		case "subscribed_by":
			b.add(fmt.Sprintf(
				"EXISTS (SELECT 1 FROM group_subscriptions s WHERE s.group_id = groups.id AND s.user_id = %s AND s.is_active)",
				b.arg(f.Value())))
		case "active_at":
			if err := b.compare("active_at", f); err != nil {
				return err
			}
		case "first_seen", "date":
			// "date" predicates bound event recency; last_seen is the
			// relational stand-in.
			col := "first_seen"
			if f.Key() == "date" {
				col = "last_seen"
			}
			if err := b.compare(col, f); err != nil {
				return err
			}
		case "last_seen":
			if err := b.compare("last_seen", f); err != nil {
				return err
			}
		case "first_release":
			b.add(fmt.Sprintf(
				"first_release_id IN (SELECT id FROM releases WHERE releases.project_id = groups.project_id AND version = %s)",
				b.arg(f.Value())))
		case "times_seen":
			if err := b.compare("times_seen", f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) compare(column string, f filter.Filter) error {
	switch f.Op() {
	case filter.OpEq:
		b.add(fmt.Sprintf("%s = %s", column, b.arg(f.Value())))
	case filter.OpNeq:
		b.add(fmt.Sprintf("%s != %s", column, b.arg(f.Value())))
	case filter.OpGt:
		b.add(fmt.Sprintf("%s > %s", column, b.arg(f.Value())))
	case filter.OpGte:
		b.add(fmt.Sprintf("%s >= %s", column, b.arg(f.Value())))
	case filter.OpLt:
		b.add(fmt.Sprintf("%s < %s", column, b.arg(f.Value())))
	case filter.OpLte:
		b.add(fmt.Sprintf("%s <= %s", column, b.arg(f.Value())))
	case filter.OpIn:
		vals, ok := f.Value().([]any)
		if !ok {
			return fmt.Errorf("%w: %s IN wants a list, got %T", domain.ErrInvalidFilter, f.Key(), f.Value())
		}
		ph := make([]string, len(vals))
		for i, v := range vals {
			ph[i] = b.arg(v)
		}
		b.add(fmt.Sprintf("%s IN (%s)", column, strings.Join(ph, ", ")))
	default:
		return fmt.Errorf("%w: unsupported operator %q on %s", domain.ErrInvalidFilter, f.Op(), f.Key())
	}
	return nil
}

// textSearch matches the free-text query against the group message.
func (b *builder) textSearch(v any) {
	pattern := fmt.Sprintf("%%%v%%", v)
	if b.postgres {
		b.add(fmt.Sprintf("message ILIKE %s", b.arg(pattern)))
		return
	}
	// sqlite LIKE is case-insensitive for ASCII already
	b.add(fmt.Sprintf("message LIKE %s", b.arg(pattern)))
}
