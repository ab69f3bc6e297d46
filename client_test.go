package groupdex

import (
	"testing"
	"time"
)

func TestNew_MissingStores(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error when no relational store provided")
	}
	if _, err := New(WithPostgres("postgres://localhost/groupdex")); err == nil {
		t.Fatal("expected error when no analytical store provided")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithPostgres("postgres://localhost/groupdex")(cfg)
	if cfg.relDriver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.relDriver)
	}

	WithSQLite("file:groupdex.db")(cfg)
	if cfg.relDriver != "sqlite" || cfg.relDSN != "file:groupdex.db" {
		t.Errorf("driver = %q dsn = %q, want sqlite", cfg.relDriver, cfg.relDSN)
	}

	WithClickHouse([]string{"localhost:9000"}, "default", "default", "secret")(cfg)
	if len(cfg.chAddrs) != 1 || cfg.chDatabase != "default" {
		t.Errorf("clickhouse cfg = %+v", cfg)
	}

	WithEventsTable("events_dist", "ts")(cfg)
	if cfg.chTable != "events_dist" || cfg.chTimeColumn != "ts" {
		t.Errorf("table = %q time column = %q", cfg.chTable, cfg.chTimeColumn)
	}

	WithDialect("groups")(cfg)
	if cfg.chDialect != "groups" {
		t.Errorf("dialect = %q", cfg.chDialect)
	}

	WithRedisCache([]string{"localhost:6379"}, "", 5*time.Minute)(cfg)
	if len(cfg.cacheAddrs) != 1 || cfg.cacheTTL != 5*time.Minute {
		t.Errorf("cache cfg = %+v", cfg)
	}
}

func TestSearchRequest_ToInternal(t *testing.T) {
	req := SearchRequest{
		Projects: []int64{1, 2},
		Filters: []Filter{
			{Key: "status", Op: "=", Value: 0},
			{Key: "server_name", Op: "=", Value: "web-1", Tag: true},
		},
		Sort:      "freq",
		Limit:     10,
		Cursor:    "500:2:1",
		CountHits: true,
	}

	q, err := req.toInternal()
	if err != nil {
		t.Fatalf("toInternal: %v", err)
	}
	if len(q.Filters) != 2 || !q.Filters[1].IsTag() {
		t.Errorf("filters = %+v", q.Filters)
	}
	if q.Cursor == nil || q.Cursor.Value != 500 || q.Cursor.Offset != 2 || !q.Cursor.IsPrev {
		t.Errorf("cursor = %+v", q.Cursor)
	}
	if string(q.Sort) != "freq" || !q.CountHits {
		t.Errorf("request = %+v", q)
	}
}

func TestSearchRequest_ToInternal_Invalid(t *testing.T) {
	cases := map[string]SearchRequest{
		"unknown sort": {Projects: []int64{1}, Sort: "trending"},
		"bad operator": {Projects: []int64{1}, Filters: []Filter{{Key: "status", Op: "~=", Value: 0}}},
		"bad cursor":   {Projects: []int64{1}, Cursor: "zzz"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := req.toInternal(); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestSearchRequest_DefaultSortIsDate(t *testing.T) {
	q, err := SearchRequest{Projects: []int64{1}}.toInternal()
	if err != nil {
		t.Fatalf("toInternal: %v", err)
	}
	if string(q.Sort) != "date" {
		t.Errorf("sort = %q, want date default", q.Sort)
	}
}
