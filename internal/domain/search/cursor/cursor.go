// Package cursor implements the opaque pagination token.
//
// A cursor addresses a position in the score-ordered result stream as
// (boundary score value, offset within the equal-score run, direction).
// The wire form is "value:offset:isPrev", e.g. "1517888878000:0:0".
package cursor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/groupdex/internal/domain"
)

// Cursor is a pagination token.
//
// For a forward ("next") cursor every result at or after the cursor has sort
// value <= Value; a "prev" cursor bounds the other direction. HasResults is
// a best-effort flag: the paginator sets it from the slice it sees, and the
// federated loop may later force it true using store-side knowledge.
type Cursor struct {
	Value      int64
	Offset     int
	IsPrev     bool
	HasResults bool
}

// String renders the wire form. HasResults is advisory and not encoded.
func (c Cursor) String() string {
	prev := 0
	if c.IsPrev {
		prev = 1
	}
	return fmt.Sprintf("%d:%d:%d", c.Value, c.Offset, prev)
}

// Parse decodes the wire form produced by String.
func Parse(s string) (Cursor, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Cursor{}, fmt.Errorf("%w: %q", domain.ErrInvalidCursor, s)
	}
	value, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: bad value in %q", domain.ErrInvalidCursor, s)
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return Cursor{}, fmt.Errorf("%w: bad offset in %q", domain.ErrInvalidCursor, s)
	}
	prev, err := strconv.Atoi(parts[2])
	if err != nil || (prev != 0 && prev != 1) {
		return Cursor{}, fmt.Errorf("%w: bad direction in %q", domain.ErrInvalidCursor, s)
	}
	return Cursor{Value: value, Offset: offset, IsPrev: prev == 1}, nil
}
