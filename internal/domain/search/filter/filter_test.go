package filter

import "testing"

func TestNew_Validation(t *testing.T) {
	if _, err := New("", OpEq, 1, false); err == nil {
		t.Error("empty key must fail")
	}
	if _, err := New("status", Operator("~="), 1, false); err == nil {
		t.Error("unknown operator must fail")
	}
	for _, key := range []string{"browser` = '' OR 1=1 --", "a b", `a\b`, "k'ey"} {
		if _, err := New(key, OpEq, 1, true); err == nil {
			t.Errorf("key %q must fail the identifier charset check", key)
		}
	}
	for _, key := range []string{"server_name", "events.last_seen", "ci:stage", "my-tag"} {
		if _, err := New(key, OpEq, 1, true); err != nil {
			t.Errorf("key %q must be accepted: %v", key, err)
		}
	}
	if _, err := New("status", OpEq, nil, false); err == nil {
		t.Error("nil value must fail")
	}

	f, err := New("status", OpIn, []any{1, 2}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Key() != "status" || f.Op() != OpIn || f.IsTag() {
		t.Errorf("filter = %+v", f)
	}
}

func TestOperator_Bounds(t *testing.T) {
	if !OpLt.Less() || !OpLte.Less() || OpGt.Less() || OpEq.Less() {
		t.Error("Less misclassifies operators")
	}
	if !OpGt.Greater() || !OpGte.Greater() || OpLt.Greater() || OpIn.Greater() {
		t.Error("Greater misclassifies operators")
	}
}
