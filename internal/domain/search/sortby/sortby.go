// Package sortby enumerates the logical sort orders a search can request.
package sortby

import "fmt"

// Key is a logical sort order. The set is fixed: each key maps 1:1 to an
// aggregation in the active search dialect.
type Key string

const (
	// Date orders by most recent event (last_seen).
	Date Key = "date"
	// Freq orders by event count (times_seen).
	Freq Key = "freq"
	// New orders by first event (first_seen).
	New Key = "new"
	// Priority orders by the composite recency+frequency score.
	Priority Key = "priority"
)

// Parse validates a raw string as a sort key.
func Parse(s string) (Key, error) {
	switch Key(s) {
	case Date, Freq, New, Priority:
		return Key(s), nil
	case "":
		return Date, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}
