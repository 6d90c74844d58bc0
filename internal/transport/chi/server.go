// Package chi serves a read-only admin API over the mapped collections.
package chi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docmap"
	logpkg "github.com/kailas-cloud/docmap/internal/logger"
	"github.com/kailas-cloud/docmap/internal/metrics"
)

const (
	defaultListLimit = 20
	maxListLimit     = 1000
)

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal_error"
	CodeUnavailable  = "unavailable"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Store is what the admin API needs from a docmap client.
type Store interface {
	Ping(ctx context.Context) error
	Query(collection string) *docmap.Query
	Registry() *docmap.Registry
}

// Server handles the admin routes.
type Server struct {
	store  Store
	logger *zap.Logger
}

// NewServer creates an admin API server.
func NewServer(store Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, logger: logger}
}

// Router mounts the routes with the standard middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/models", s.ListModels)
	r.Route("/collections/{name}", func(r chi.Router) {
		r.Get("/documents", s.ListDocuments)
		r.Get("/documents/{id}", s.GetDocument)
		r.Get("/count", s.CountDocuments)
		r.Get("/distinct/{field}", s.DistinctValues)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	return r
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "ok"})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type fieldResponse struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
	Index    string `json:"index,omitempty"`
}

type modelResponse struct {
	Name          string          `json:"name"`
	Embedded      bool            `json:"embedded,omitempty"`
	Timestamped   bool            `json:"timestamped,omitempty"`
	SoftDeletable bool            `json:"soft_deletable,omitempty"`
	Fields        []fieldResponse `json:"fields"`
	Relations     []string        `json:"relations,omitempty"`
}

// ListModels handles GET /models.
func (s *Server) ListModels(w http.ResponseWriter, _ *http.Request) {
	schemas := s.store.Registry().Schemas()
	out := make([]modelResponse, 0, len(schemas))
	for _, sc := range schemas {
		m := modelResponse{
			Name:          sc.Name,
			Embedded:      sc.Embedded,
			Timestamped:   sc.Timestamped,
			SoftDeletable: sc.SoftDeletable,
			Fields:        make([]fieldResponse, 0, len(sc.Fields)),
		}
		for _, f := range sc.Fields {
			m.Fields = append(m.Fields, fieldResponse{
				Name: f.Name, Type: f.Type.String(), Required: f.Required, Index: string(f.Index),
			})
		}
		for _, rel := range sc.Relations {
			m.Relations = append(m.Relations, rel.Name)
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// ListDocuments handles GET /collections/{name}/documents.
// Query parameters other than limit, sort and dir are equality filters.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q, err := s.filteredQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	params := r.URL.Query()

	limit := defaultListLimit
	if v := params.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > maxListLimit {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
	}
	q.Limit(limit)

	if field := params.Get("sort"); field != "" {
		dir := docmap.Unspecified
		switch params.Get("dir") {
		case "asc":
			dir = docmap.Ascending
		case "desc":
			dir = docmap.Descending
		}
		q.Sort(field, dir)
	}

	res, err := q.Execute(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	docs, err := res.Cursor.All(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if docs == nil {
		docs = []docmap.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": docs, "count": len(docs)})
}

// GetDocument handles GET /collections/{name}/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.store.Query(chi.URLParam(r, "name")).Where(docmap.M{"_id": id}).FetchOne(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CountDocuments handles GET /collections/{name}/count.
func (s *Server) CountDocuments(w http.ResponseWriter, r *http.Request) {
	q, err := s.filteredQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	n, err := q.Count(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// DistinctValues handles GET /collections/{name}/distinct/{field}.
func (s *Server) DistinctValues(w http.ResponseWriter, r *http.Request) {
	q, err := s.filteredQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	res, err := q.Distinct(chi.URLParam(r, "field")).Execute(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	values := res.Values
	if values == nil {
		values = []any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

var reservedParams = map[string]struct{}{"limit": {}, "sort": {}, "dir": {}}

// filteredQuery builds a query on the path collection with one equality
// condition per non-reserved query parameter.
func (s *Server) filteredQuery(r *http.Request) (*docmap.Query, error) {
	name := chi.URLParam(r, "name")
	if name == "" {
		return nil, errors.New("collection name is required")
	}
	conditions := docmap.M{}
	for key, values := range r.URL.Query() {
		if _, ok := reservedParams[key]; ok || len(values) == 0 {
			continue
		}
		conditions[key] = paramValue(values[0])
	}
	q := s.store.Query(name)
	if len(conditions) > 0 {
		q.Where(conditions)
	}
	return q, nil
}

// paramValue reads a JSON scalar and falls back to the raw string.
func paramValue(raw string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
	case string, bool, nil:
		return t
	}
	return raw
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context(), s.logger)
	switch {
	case errors.Is(err, docmap.ErrConfiguration):
		log.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "database unavailable")
	case errors.Is(err, docmap.ErrInvalidUsage), errors.Is(err, docmap.ErrTypeMismatch):
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	default:
		log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
