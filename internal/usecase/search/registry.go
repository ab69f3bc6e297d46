package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/sortby"
)

// impossibleReleaseID is substituted when a release label resolves to
// nothing: the query then completes with zero matches instead of failing.
const impossibleReleaseID = int64(-1)

// AggregationDef is one analytical aggregate expression. When Arg is empty,
// Expr is a complete expression; otherwise Expr is a function name applied
// to Arg.
type AggregationDef struct {
	Expr string
	Arg  string
}

// TransformContext carries the per-query inputs a dialect transform may need.
type TransformContext struct {
	Projects     []int64
	Environments []int64
	Releases     ReleaseResolver
}

// TransformFunc lets a dialect rewrite a converted condition: rename the
// field for a table-alias scheme, convert date values to store literals, or
// resolve human-readable references to internal identifiers. It returns the
// rewritten condition and the effective field name used for having-clause
// classification.
type TransformFunc func(ctx context.Context, f filter.Filter, cond db.Condition, tc TransformContext) (db.Condition, string, error)

// Dialect is the fixed per-variant configuration of the search executor.
// The two instances differ in data (field maps, aggregate expressions, the
// transform hook), not control flow. Dialects are constructed once and read
// concurrently without synchronization; they must never be mutated.
type Dialect struct {
	Name       string
	TableAlias string

	// IssueField is the analytical group key (TableAlias + "issue").
	IssueField string

	// IssueOnlyFields have no analytical representation and are only ever
	// evaluated by the relational store.
	IssueOnlyFields map[string]struct{}

	SortStrategies         map[sortby.Key]string
	AggregationDefs        map[string]AggregationDef
	DependencyAggregations map[string][]string

	Transform TransformFunc
}

// SortField maps a logical sort key to its aggregation alias.
func (d *Dialect) SortField(key sortby.Key) (string, error) {
	f, ok := d.SortStrategies[key]
	if !ok {
		return "", fmt.Errorf("%w: %q in dialect %s", domain.ErrUnknownSort, key, d.Name)
	}
	return f, nil
}

// aggregate instantiates a registry entry under its alias.
func (d *Dialect) aggregate(alias string) (db.Aggregate, error) {
	def, ok := d.AggregationDefs[alias]
	if !ok {
		return db.Aggregate{}, fmt.Errorf("%w: %q in dialect %s", domain.ErrMissingAggregation, alias, d.Name)
	}
	return db.Aggregate{Expr: def.Expr, Arg: def.Arg, Alias: alias}, nil
}

// EventsDialect is the relational-primary variant: the analytical store
// holds the raw event rows and every triage field stays relational-only.
var EventsDialect = &Dialect{
	Name:       "events",
	IssueField: "issue",
	IssueOnlyFields: fieldSet(
		"query", "status", "bookmarked_by", "assigned_to", "unassigned",
		"subscribed_by", "active_at", "first_release", "first_seen",
	),
	SortStrategies: map[sortby.Key]string{
		sortby.Date:     "last_seen",
		sortby.Freq:     "times_seen",
		sortby.New:      "first_seen",
		sortby.Priority: "priority",
	},
	AggregationDefs: map[string]AggregationDef{
		"times_seen": {Expr: "count()"},
		"first_seen": {Expr: "multiply(toUInt64(min(timestamp)), 1000)"},
		"last_seen":  {Expr: "multiply(toUInt64(max(timestamp)), 1000)"},
		"priority":   {Expr: "toUInt64(plus(multiply(log(times_seen), 600), last_seen))"},
		// Only meaningful WITH TOTALS; yields 1 per individual group.
		"total": {Expr: "uniq", Arg: "issue"},
	},
	DependencyAggregations: map[string][]string{
		"priority": {"last_seen", "times_seen"},
	},
}

// GroupsDialect is the analytical-primary variant: the store exposes a
// joined groups+events layout under an "events." alias scheme, so more
// fields resolve analytically and date predicates need literal conversion.
var GroupsDialect = &Dialect{
	Name:       "groups",
	TableAlias: "events.",
	IssueField: "events.issue",
	IssueOnlyFields: fieldSet(
		"query", "bookmarked_by", "assigned_to", "unassigned", "subscribed_by",
	),
	SortStrategies: map[sortby.Key]string{
		sortby.Date:     "events.last_seen",
		sortby.Freq:     "times_seen",
		sortby.New:      "events.first_seen",
		sortby.Priority: "priority",
	},
	AggregationDefs: map[string]AggregationDef{
		"times_seen":        {Expr: "count()"},
		"events.first_seen": {Expr: "multiply(toUInt64(min(events.timestamp)), 1000)"},
		"events.last_seen":  {Expr: "multiply(toUInt64(max(events.timestamp)), 1000)"},
		"priority":          {Expr: "toUInt64(plus(multiply(log(times_seen), 600), `events.last_seen`))"},
		"total":             {Expr: "uniq", Arg: "events.issue"},
	},
	DependencyAggregations: map[string][]string{
		"priority": {"events.last_seen", "times_seen"},
	},
	Transform: transformGroupsFilter,
}

// transformGroupsFilter rewrites conditions for the joined-table layout.
func transformGroupsFilter(
	ctx context.Context, f filter.Filter, cond db.Condition, tc TransformContext,
) (db.Condition, string, error) {
	name := f.Key()

	switch name {
	case "active_at", "first_seen", "last_seen":
		// The joined layout stores these as datetimes, not millisecond
		// epochs; rewrite the value into the store's literal format.
		cond.Value = toDateTimeLiteral(cond.Value)
	}

	switch name {
	case "first_seen", "last_seen":
		// first_seen/last_seen live on the events side only when the query
		// is environment-scoped; otherwise the groups side is authoritative.
		alias := "groups."
		if len(tc.Environments) > 0 {
			alias = "events."
		}
		cond.Field = alias + cond.Field
		name = cond.Field
	case "first_release":
		version, ok := cond.Value.(string)
		if !ok {
			return db.Condition{}, "", fmt.Errorf("%w: first_release wants a version string", domain.ErrInvalidFilter)
		}
		cond.Field = "first_release_id"
		if tc.Releases == nil || len(tc.Projects) == 0 {
			cond.Value = impossibleReleaseID
			break
		}
		id, err := tc.Releases.ResolveVersion(ctx, tc.Projects[0], version)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			cond.Value = impossibleReleaseID
		case err != nil:
			return db.Condition{}, "", fmt.Errorf("resolve release %q: %w", version, err)
		default:
			cond.Value = id
		}
	}

	return cond, name, nil
}

// toDateTimeLiteral converts a time or millisecond epoch into the store's
// datetime literal form.
func toDateTimeLiteral(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05")
	case int64:
		return time.UnixMilli(t).UTC().Format("2006-01-02T15:04:05")
	case int:
		return time.UnixMilli(int64(t)).UTC().Format("2006-01-02T15:04:05")
	}
	return v
}

func fieldSet(names ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}
