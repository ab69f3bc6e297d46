package db

import (
	"testing"
	"time"
)

func TestSampleSeed_DeterministicPerShape(t *testing.T) {
	conds := []Condition{
		{Field: "server_name", Op: "=", Value: "web-1"},
		{Field: "environment", Op: "=", Value: int64(4)},
	}
	a := SampleSeed(conds)
	b := SampleSeed(conds)
	if a != b {
		t.Fatalf("seed not deterministic: %q vs %q", a, b)
	}
	if len(a) != 8 {
		t.Fatalf("seed = %q, want 8 hex chars", a)
	}
	if c := SampleSeed(conds[:1]); c == a {
		t.Error("different condition sets must not share a seed")
	}
	if c := SampleSeed([]Condition{conds[1], conds[0]}); c == a {
		t.Error("condition order is part of the shape")
	}
}

func TestCanonicalConditions(t *testing.T) {
	got := CanonicalConditions([]Condition{
		{Field: "a", Op: ">", Value: 1},
		{Field: "b", Op: "=", Value: "x"},
	})
	if want := "a|>|1;b|=|x"; got != want {
		t.Errorf("canonical = %q, want %q", got, want)
	}
	if CanonicalConditions(nil) != "" {
		t.Error("empty set renders empty")
	}
}

func TestFingerprint_SensitiveToScopeAndWindow(t *testing.T) {
	base := func() *AggregateQuery {
		return &AggregateQuery{
			Start:    time.Unix(1000, 0),
			End:      time.Unix(2000, 0),
			Projects: []int64{1, 2},
			Conditions: []Condition{
				{Field: "server_name", Op: "=", Value: "web-1"},
			},
			Having: []Condition{{Field: "times_seen", Op: ">", Value: int64(5)}},
		}
	}

	a := Fingerprint(base())
	if a != Fingerprint(base()) {
		t.Fatal("fingerprint not deterministic")
	}

	q := base()
	q.Projects = []int64{1}
	if Fingerprint(q) == a {
		t.Error("project scope must change the fingerprint")
	}

	q = base()
	q.End = time.Unix(3000, 0)
	if Fingerprint(q) == a {
		t.Error("window must change the fingerprint")
	}

	q = base()
	q.Having = nil
	if Fingerprint(q) == a {
		t.Error("having set must change the fingerprint")
	}
}

func TestFingerprint_StableWithinMinuteBucket(t *testing.T) {
	at := func(sec int) *AggregateQuery {
		return &AggregateQuery{
			Start:    time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC),
			End:      time.Date(2026, 2, 10, 12, 0, sec, 0, time.UTC),
			Projects: []int64{1},
		}
	}

	// A default window ends at now+skew, shifting every second; successive
	// queries within the same minute must still share a cache key.
	if Fingerprint(at(10)) != Fingerprint(at(50)) {
		t.Error("ends within one minute bucket must share a fingerprint")
	}
	if Fingerprint(at(10)) == Fingerprint(&AggregateQuery{
		Start:    time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 2, 10, 12, 1, 10, 0, time.UTC),
		Projects: []int64{1},
	}) {
		t.Error("a different minute bucket must change the fingerprint")
	}
}
