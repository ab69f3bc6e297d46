// Package db defines the analytical-store query model shared by the search
// core and the concrete drivers.
package db

import (
	"context"
	"time"
)

// Store executes grouped aggregate queries against the analytical event store.
type Store interface {
	Query(ctx context.Context, q *AggregateQuery) (*QueryResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Condition is a store-native predicate, either on a row column (WHERE) or
// on an aggregation alias (HAVING).
type Condition struct {
	Field string
	Op    string
	Value any
}

// Aggregate instantiates a registry expression under an alias. When Arg is
// empty Expr is a complete expression ("count()"); otherwise it is a function
// name applied to Arg ("uniq(issue)").
type Aggregate struct {
	Expr  string
	Arg   string
	Alias string
}

// AggregateQuery describes one grouped, ranked query over the event store.
//
// In sampling mode the driver replaces ranked ordering with a deterministic
// hashed sample: it selects xxHash64(concat(SampleSeed, toString(group key)))
// as the "sample" column and orders by it ascending, and it skips FINAL:
// estimates tolerate unmerged duplicates in exchange for a cheaper scan.
type AggregateQuery struct {
	Start time.Time
	End   time.Time

	Projects     []int64
	Environments []int64 // empty = no environment scope
	GroupIDs     []int64 // optional identifier restriction, sorted

	GroupKey   string
	Conditions []Condition
	Having     []Condition
	Aggregates []Aggregate
	OrderBy    []string // "-alias" for descending
	Limit      int
	Offset     int

	Sample     bool
	SampleSeed string

	// Totals requests the exact row count with totals-after-having semantics.
	Totals bool
}

// ScoreAlias returns the alias whose value ranks the rows: the sample column
// in sampling mode, otherwise the primary order-by alias.
func (q *AggregateQuery) ScoreAlias() string {
	if q.Sample {
		return "sample"
	}
	if len(q.OrderBy) == 0 {
		return ""
	}
	alias := q.OrderBy[0]
	if len(alias) > 0 && alias[0] == '-' {
		alias = alias[1:]
	}
	return alias
}

// Row is one aggregated group row. Values holds every selected aggregate by
// alias; all aggregates in the fixed vocabulary produce 64-bit integers.
type Row struct {
	GroupID int64
	Values  map[string]int64
}

// QueryResult is the rows plus the exact total count of matching groups
// (counted after the having filter when Totals was requested).
type QueryResult struct {
	Rows  []Row
	Total int
}
