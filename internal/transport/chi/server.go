// Package chi exposes the search service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/groupdex/internal/domain"
	"github.com/kailas-cloud/groupdex/internal/domain/search/cursor"
	"github.com/kailas-cloud/groupdex/internal/domain/search/filter"
	"github.com/kailas-cloud/groupdex/internal/domain/search/sortby"
	"github.com/kailas-cloud/groupdex/internal/logger"
	"github.com/kailas-cloud/groupdex/internal/metrics"
	"github.com/kailas-cloud/groupdex/internal/usecase/search"
)

// pinger reports backing-store liveness for the health endpoint.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server routes HTTP requests to the search service.
type Server struct {
	search          *search.Service
	pingers         []pinger
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
}

// NewServer creates an HTTP API server.
func NewServer(svc *search.Service, log *zap.Logger, defaultPageSize, maxPageSize int, pingers ...pinger) *Server {
	if defaultPageSize <= 0 {
		defaultPageSize = 25
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &Server{
		search:          svc,
		pingers:         pingers,
		logger:          log,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/issues/search", s.handleSearch)
	return r
}

// requestLogger attaches a request-scoped logger and emits one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
		l.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// filterDTO is the wire form of one predicate.
type filterDTO struct {
	Key   string `json:"key"`
	Op    string `json:"op"`
	Value any    `json:"value"`
	IsTag bool   `json:"is_tag,omitempty"`
}

// searchRequest is the wire form of POST /v1/issues/search.
type searchRequest struct {
	Projects             []int64     `json:"projects"`
	Environments         []int64     `json:"environments,omitempty"`
	Filters              []filterDTO `json:"filters,omitempty"`
	Sort                 string      `json:"sort,omitempty"`
	Limit                int         `json:"limit,omitempty"`
	Cursor               string      `json:"cursor,omitempty"`
	CountHits            bool        `json:"count_hits,omitempty"`
	DateFrom             *time.Time  `json:"date_from,omitempty"`
	DateTo               *time.Time  `json:"date_to,omitempty"`
	RetentionWindowStart *time.Time  `json:"retention_window_start,omitempty"`
}

// groupDTO is the wire form of one hydrated group.
type groupDTO struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	Status         int       `json:"status"`
	AssigneeID     *int64    `json:"assignee_id,omitempty"`
	FirstReleaseID *int64    `json:"first_release_id,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	ActiveAt       time.Time `json:"active_at"`
	TimesSeen      int64     `json:"times_seen"`
}

// cursorDTO carries a pagination token plus whether following it can yield rows.
type cursorDTO struct {
	Cursor     string `json:"cursor"`
	HasResults bool   `json:"has_results"`
}

type searchResponse struct {
	Groups []groupDTO `json:"groups"`
	Prev   cursorDTO  `json:"prev"`
	Next   cursorDTO  `json:"next"`
	Hits   *int       `json:"hits,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSearch handles POST /v1/issues/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q, err := s.toQuery(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.search.Query(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := searchResponse{
		Groups: make([]groupDTO, 0, len(page.Groups)),
		Prev:   cursorDTO{Cursor: page.Prev.String(), HasResults: page.Prev.HasResults},
		Next:   cursorDTO{Cursor: page.Next.String(), HasResults: page.Next.HasResults},
		Hits:   page.Hits,
	}
	for _, g := range page.Groups {
		resp.Groups = append(resp.Groups, groupDTO{
			ID:             g.ID,
			ProjectID:      g.ProjectID,
			Status:         int(g.Status),
			AssigneeID:     g.AssigneeID,
			FirstReleaseID: g.FirstReleaseID,
			FirstSeen:      g.FirstSeen,
			LastSeen:       g.LastSeen,
			ActiveAt:       g.ActiveAt,
			TimesSeen:      g.TimesSeen,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// toQuery validates the wire request into an executor request.
func (s *Server) toQuery(req *searchRequest) (*search.Request, error) {
	if len(req.Projects) == 0 {
		return nil, domain.ErrNoProjects
	}

	sortKey, err := sortby.Parse(req.Sort)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	filters := make([]filter.Filter, 0, len(req.Filters))
	for _, dto := range req.Filters {
		f, err := filter.New(dto.Key, filter.Operator(dto.Op), dto.Value, dto.IsTag)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	q := &search.Request{
		Projects:     req.Projects,
		Environments: req.Environments,
		Filters:      filters,
		Sort:         sortKey,
		Limit:        limit,
		CountHits:    req.CountHits,
	}
	if req.Cursor != "" {
		cur, err := cursor.Parse(req.Cursor)
		if err != nil {
			return nil, err
		}
		q.Cursor = &cur
	}
	if req.DateFrom != nil {
		q.DateFrom = *req.DateFrom
	}
	if req.DateTo != nil {
		q.DateTo = *req.DateTo
	}
	if req.RetentionWindowStart != nil {
		q.RetentionWindowStart = *req.RetentionWindowStart
	}
	return q, nil
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for _, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			logger.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoProjects),
		errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidCursor),
		errors.Is(err, domain.ErrUnknownSort):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context()).Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
