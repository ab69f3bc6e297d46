package cursor

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/groupdex/internal/domain"
)

func TestRoundTrip(t *testing.T) {
	cases := []Cursor{
		{},
		{Value: 1517888878000, Offset: 3},
		{Value: -5, Offset: 0, IsPrev: true},
	}
	for _, c := range cases {
		got, err := Parse(c.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.String(), err)
		}
		if got != c {
			t.Errorf("round trip %q: got %+v, want %+v", c.String(), got, c)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "1:2", "1:2:3:4", "x:0:0", "1:-1:0", "1:0:2", "1:x:0"} {
		if _, err := Parse(s); !errors.Is(err, domain.ErrInvalidCursor) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidCursor", s, err)
		}
	}
}

func TestString_DropsHasResults(t *testing.T) {
	a := Cursor{Value: 10, HasResults: true}
	b := Cursor{Value: 10}
	if a.String() != b.String() {
		t.Errorf("HasResults must not be encoded: %q vs %q", a.String(), b.String())
	}
}
