package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/groupdex/internal/db"
	"github.com/kailas-cloud/groupdex/internal/domain/group"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/result"
	"github.com/kailas-cloud/groupdex/internal/usecase/search"
)

// --- Mocks ---

type fakeGroups struct {
	recent      result.Page
	recentLimit int
}

func (f *fakeGroups) Candidates(context.Context, []int64, []filter.Filter, int) ([]int64, error) {
	return nil, nil
}

func (f *fakeGroups) FilterExisting(_ context.Context, _ []int64, _ []filter.Filter, ids []int64) ([]int64, error) {
	return ids, nil
}

func (f *fakeGroups) CountMatching(context.Context, []int64, []filter.Filter, []int64) (int, error) {
	return 0, nil
}

func (f *fakeGroups) Hydrate(_ context.Context, ids []int64) (map[int64]group.Group, error) {
	out := make(map[int64]group.Group, len(ids))
	for _, id := range ids {
		out[id] = group.Group{ID: id}
	}
	return out, nil
}

func (f *fakeGroups) RecentFirst(_ context.Context, _ []int64, _ []filter.Filter, limit int, _ *cursor.Cursor, _ bool) (result.Page, error) {
	f.recentLimit = limit
	return f.recent, nil
}

type fakeEvents struct{}

func (fakeEvents) Query(context.Context, *db.AggregateQuery) ([]result.ScoredRow, int, error) {
	return nil, 0, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestServer(groups *fakeGroups) *Server {
	svc := search.New(groups, fakeEvents{}, search.EventsDialect, search.Options{}, zap.NewNop())
	return NewServer(svc, zap.NewNop(), 25, 100, okPinger{})
}

func postSearch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/issues/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandleSearch_OK(t *testing.T) {
	hits := 1
	groups := &fakeGroups{recent: result.Page{
		Groups: []group.Group{{ID: 42, ProjectID: 1, LastSeen: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}},
		Next:   cursor.Cursor{Value: 99, HasResults: true},
		Hits:   &hits,
	}}
	srv := newTestServer(groups)

	rec := postSearch(t, srv, `{"projects":[1],"count_hits":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Groups) != 1 || resp.Groups[0].ID != 42 {
		t.Errorf("groups = %+v", resp.Groups)
	}
	if resp.Next.Cursor != "99:0:0" || !resp.Next.HasResults {
		t.Errorf("next = %+v", resp.Next)
	}
	if resp.Hits == nil || *resp.Hits != 1 {
		t.Errorf("hits = %v", resp.Hits)
	}
	if groups.recentLimit != 25 {
		t.Errorf("limit = %d, want default page size", groups.recentLimit)
	}
}

func TestHandleSearch_BadRequests(t *testing.T) {
	srv := newTestServer(&fakeGroups{})
	cases := map[string]string{
		"malformed json":                        `{`,
		"no projects":                           `{"projects":[]}`,
		"unknown sort":                          `{"projects":[1],"sort":"trending"}`,
		"bad cursor":                            `{"projects":[1],"cursor":"zzz"}`,
		"bad filter op":                         `{"projects":[1],"filters":[{"key":"status","op":"~=","value":0}]}`,
		"empty filter key":                      `{"projects":[1],"filters":[{"key":"","op":"=","value":0}]}`,
		"filter key outside identifier charset": "{\"projects\":[1],\"filters\":[{\"key\":\"a` OR 1=1\",\"op\":\"=\",\"value\":0}]}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postSearch(t, srv, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleSearch_EmptyEnvironments(t *testing.T) {
	groups := &fakeGroups{recent: result.Page{Groups: []group.Group{{ID: 7}}}}
	srv := newTestServer(groups)

	rec := postSearch(t, srv, `{"projects":[1],"environments":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if groups.recentLimit == 0 {
		t.Error("empty environments must still reach the relational fast path")
	}
}

func TestHandleSearch_LimitClamped(t *testing.T) {
	groups := &fakeGroups{}
	srv := newTestServer(groups)
	rec := postSearch(t, srv, `{"projects":[1],"limit":100000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if groups.recentLimit != 100 {
		t.Errorf("limit = %d, want clamped to max page size", groups.recentLimit)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeGroups{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
