// Package chi exposes the IIIF Content Search API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
	"github.com/openglam/photosearch/internal/metrics"
	healthuc "github.com/openglam/photosearch/internal/usecase/health"
	searchuc "github.com/openglam/photosearch/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server routes IIIF search requests to the use case services.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	publicBaseURL string
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. publicBaseURL is the externally
// visible origin used for self-referencing @id fields.
func NewServer(
	search *searchuc.Service,
	health *healthuc.Service,
	publicBaseURL string,
	apiKeys []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:        search,
		health:        health,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		apiKeys:       apiKeys,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"),
		sentinelHandler(domain.ErrIndexBackend, http.StatusInternalServerError, "index_error"),
	}
	return s
}

// Router assembles the full middleware chain and route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/", s.DebugPage)
	r.Get("/search", s.SearchAnnotations)
	r.Get("/search/autocomplete", s.Autocomplete)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	return r
}

// SearchAnnotations handles GET /search. The response is an open-annotation
// AnnotationList so stock IIIF viewers can render the matches.
func (s *Server) SearchAnnotations(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	hits, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newAnnotationList(s.requestURL(r), hits))
}

// Autocomplete handles GET /search/autocomplete. Term suggestions are not
// supported for embedding search; viewers still probe the endpoint, so it
// answers with an empty TermList rather than a 404.
func (s *Server) Autocomplete(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTermList(s.requestURL(r)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// requestURL reconstructs the externally visible URL of the current request.
func (s *Server) requestURL(r *http.Request) string {
	return s.publicBaseURL + r.URL.RequestURI()
}

func queryFromRequest(r *http.Request) (domain.Query, error) {
	params := r.URL.Query()
	q := domain.Query{
		Text:       params.Get("q"),
		ManifestID: params.Get("manifest"),
	}

	if v := params.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return domain.Query{}, errors.New("top_k must be a positive integer")
		}
		q.TopK = n
	}
	if v := params.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 1 {
			return domain.Query{}, errors.New("threshold must be a number between 0 and 1")
		}
		q.ScoreThreshold = float32(f)
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrEmbeddingUnavailable,
		domain.ErrIndexBackend,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
