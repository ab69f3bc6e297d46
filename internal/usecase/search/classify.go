package search

import (
	"context"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
)

// classifiedFilters is the analytical split of a predicate list: row
// conditions evaluated before aggregation and having conditions evaluated
// after it. Relational-only and date predicates are absent (date becomes
// window bounds, relational-only fields never reach the analytical store).
type classifiedFilters struct {
	conditions []db.Condition
	having     []db.Condition
}

// classifyFilters routes each predicate. A predicate becomes a having
// condition when its transformed field name matches an aggregation alias and
// the predicate is not a user tag; user tags always stay row conditions so a
// tag named like an aggregate cannot leak into the having clause.
// Pure function of its inputs (the transform hook may read external state
// for reference resolution but never mutates the filters).
func classifyFilters(
	ctx context.Context, d *Dialect, filters []filter.Filter, tc TransformContext,
) (classifiedFilters, error) {
	var cls classifiedFilters
	for _, f := range filters {
		if _, relationalOnly := d.IssueOnlyFields[f.Key()]; relationalOnly || f.Key() == "date" {
			continue
		}

		cond := convertFilter(f)
		name := f.Key()
		if d.Transform != nil {
			var err error
			cond, name, err = d.Transform(ctx, f, cond, tc)
			if err != nil {
				return classifiedFilters{}, err
			}
		}

		if _, isAggregate := d.AggregationDefs[name]; isAggregate && !f.IsTag() {
			cls.having = append(cls.having, cond)
		} else {
			cls.conditions = append(cls.conditions, cond)
		}
	}
	return cls, nil
}

// convertFilter translates a generic predicate into a store-native condition.
// The filter language is already structural, so the base translation is a
// field-for-field mapping; dialect transforms refine it.
func convertFilter(f filter.Filter) db.Condition {
	return db.Condition{Field: f.Key(), Op: string(f.Op()), Value: f.Value()}
}
