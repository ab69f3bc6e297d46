// Package filter defines structured search predicates.
//
// A Filter is a single predicate {key, operator, value}. Filters arrive
// already structured (no query-language parsing here) and are never mutated
// by the search core.
package filter

import (
	"fmt"
	"regexp"
)

// Operator is a comparison operator of a predicate.
type Operator string

const (
	OpEq  Operator = "="
	OpNeq Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpIn  Operator = "IN"
)

// valid reports whether the operator is one of the known comparison forms.
func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn:
		return true
	}
	return false
}

// Less reports whether the operator is an upper-bound comparison (< or <=).
func (o Operator) Less() bool { return o == OpLt || o == OpLte }

// Greater reports whether the operator is a lower-bound comparison (> or >=).
func (o Operator) Greater() bool { return o == OpGt || o == OpGte }

// Filter is a single immutable search predicate.
type Filter struct {
	key   string
	op    Operator
	value any
	isTag bool
}

// keyPattern bounds field and tag names to a plain identifier charset. Keys
// end up inside store-native queries, so anything outside this set is
// rejected up front rather than escaped downstream.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// New validates and creates a Filter.
func New(key string, op Operator, value any, isTag bool) (Filter, error) {
	if key == "" {
		return Filter{}, fmt.Errorf("filter key is required")
	}
	if !keyPattern.MatchString(key) {
		return Filter{}, fmt.Errorf("invalid filter key %q", key)
	}
	if !op.valid() {
		return Filter{}, fmt.Errorf("unknown operator %q for key %q", op, key)
	}
	if value == nil {
		return Filter{}, fmt.Errorf("value is required for key %q", key)
	}
	return Filter{key: key, op: op, value: value, isTag: isTag}, nil
}

// MustNew creates a Filter and panics on error. Intended for tests and fixtures.
func MustNew(key string, op Operator, value any, isTag bool) Filter {
	f, err := New(key, op, value, isTag)
	if err != nil {
		panic(err)
	}
	return f
}

// Key returns the field name the predicate targets.
func (f Filter) Key() string { return f.key }

// Op returns the comparison operator.
func (f Filter) Op() Operator { return f.op }

// Value returns the raw predicate value.
func (f Filter) Value() any { return f.value }

// IsTag reports whether the predicate targets a user-defined tag rather than
// a built-in field. Tag predicates never become having conditions even when
// a tag name collides with an aggregation alias.
func (f Filter) IsTag() bool { return f.isTag }
