package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CanonicalConditions renders a condition set in a canonical textual form:
// one "field|op|value" clause per condition, joined by ";", in query order.
// The form is stable across processes so that hashed sampling is reproducible.
func CanonicalConditions(conds []Condition) string {
	var b strings.Builder
	for i, c := range conds {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s|%s|%v", c.Field, c.Op, c.Value)
	}
	return b.String()
}

// SampleSeed derives the deterministic sampling seed for a condition set:
// the first 8 hex characters of xxHash64 over the canonical serialization.
// The driver combines the seed with each group identifier server-side
// (xxHash64 again) and orders by the result, yielding a stable pseudo-random
// subset per distinct query shape.
func SampleSeed(conds []Condition) string {
	sum := xxhash.Sum64String(CanonicalConditions(conds))
	return fmt.Sprintf("%016x", sum)[:8]
}

// Fingerprint identifies a full query shape (conditions, having, scope and
// window) with a single hash. Used as the hit-estimate cache key. The window
// is bucketed to the minute: a default window ends at "now + skew", which
// would otherwise shift every second and make cache entries unreachable.
func Fingerprint(q *AggregateQuery) string {
	var b strings.Builder
	b.WriteString(CanonicalConditions(q.Conditions))
	b.WriteByte('#')
	b.WriteString(CanonicalConditions(q.Having))
	fmt.Fprintf(&b, "#p%v#e%v#%d#%d", q.Projects, q.Environments,
		q.Start.Truncate(time.Minute).Unix(), q.End.Truncate(time.Minute).Unix())
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
