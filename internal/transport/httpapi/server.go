package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/gamesearch-mcp/internal/catalog"
	"github.com/dshills/gamesearch-mcp/internal/embedder"
	"github.com/dshills/gamesearch-mcp/internal/embedstore"
	logpkg "github.com/dshills/gamesearch-mcp/internal/logger"
	"github.com/dshills/gamesearch-mcp/internal/metrics"
	"github.com/dshills/gamesearch-mcp/internal/searcher"
	"github.com/dshills/gamesearch-mcp/internal/storage"
	"github.com/dshills/gamesearch-mcp/pkg/types"
)

// Limit bounds for the search endpoint
const (
	MinLimit = 1
	MaxLimit = 50
)

// Error codes returned in the code field of error bodies
const (
	CodeBadRequest     = "bad_request"
	CodeEmptyQuery     = "empty_query"
	CodeNotFound       = "not_found"
	CodeNotCached      = "not_cached"
	CodeCorruptedCache = "corrupted_cache"
	CodeModelNotReady  = "model_not_ready"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server serves the catalog over HTTP
type Server struct {
	catalog  *catalog.Catalog
	storage  storage.Storage
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithGatherer sets the registry /metrics exposes. Defaults to the
// prometheus default gatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates the HTTP handler set
func NewServer(cat *catalog.Catalog, store storage.Storage, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		catalog:  cat,
		storage:  store,
		gatherer: prometheus.DefaultGatherer,
		logger:   logpkg.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router with middleware and routes mounted
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Health)
	r.Get("/collections", s.ListCollections)
	r.Get("/collections/{name}/search", s.Search)
	r.Get("/events", s.Events)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// Health reports liveness and which collections are loaded
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"loaded": s.catalog.Collections(),
	})
}

// collectionView is one entry of GET /collections
type collectionView struct {
	Name       string     `json:"name"`
	Searchable bool       `json:"searchable"`
	Cached     bool       `json:"cached"`
	Loaded     bool       `json:"loaded"`
	Entities   int        `json:"entities,omitempty"`
	Dimension  int        `json:"dimension,omitempty"`
	Model      string     `json:"model,omitempty"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
}

// ListCollections lists every known collection with its manifest entry
func (s *Server) ListCollections(w http.ResponseWriter, r *http.Request) {
	rows, err := s.storage.ListCollections(r.Context())
	if err != nil {
		s.logger.Error("list collections", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "failed to read manifest")
		return
	}
	cached := make(map[string]*storage.Collection, len(rows))
	for _, row := range rows {
		cached[row.Name] = row
	}
	loaded := make(map[string]bool)
	for _, name := range s.catalog.Collections() {
		loaded[name] = true
	}

	defs := catalog.Definitions()
	views := make([]collectionView, 0, len(defs))
	for _, def := range defs {
		v := collectionView{Name: def.Name, Searchable: def.Searchable, Loaded: loaded[def.Name]}
		if row, ok := cached[def.Name]; ok {
			indexedAt := row.IndexedAt
			v.Cached = true
			v.Entities = row.EntityCount
			v.Dimension = row.Dimension
			v.Model = row.Model
			v.IndexedAt = &indexedAt
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": views})
}

// Search runs a hybrid search against one collection
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	q := r.URL.Query()

	query := q.Get("q")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, CodeEmptyQuery, "q is required and cannot be empty")
		return
	}

	limit := searcher.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < MinLimit || n > MaxLimit {
			writeError(w, http.StatusBadRequest, CodeBadRequest,
				"limit must be an integer between "+strconv.Itoa(MinLimit)+" and "+strconv.Itoa(MaxLimit))
			return
		}
		limit = n
	}

	var fields []string
	if raw := q.Get("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(f)
			if err := types.ValidateFieldPath(f); err != nil {
				writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
				return
			}
			fields = append(fields, f)
		}
	}

	srch, err := s.catalog.Searcher(r.Context(), name)
	if err != nil {
		s.handleError(w, r, name, err)
		return
	}
	hits, err := srch.Search(r.Context(), query, limit)
	if err != nil {
		s.handleError(w, r, name, err)
		return
	}

	type result struct {
		Entity types.Entity `json:"entity"`
		Score  float64      `json:"score"`
	}
	results := make([]result, 0, len(hits))
	for _, hit := range hits {
		projected, err := types.ExtractFields(hit.Entity, fields)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		results = append(results, result{Entity: projected, Score: hit.Score})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"collection":   name,
		"query":        query,
		"results":      results,
		"totalMatches": len(results),
	})
}

// Events returns the events collection unranked
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	events, err := s.catalog.Events(r.Context())
	if err != nil {
		s.handleError(w, r, catalog.Events, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

type errorHandler func(w http.ResponseWriter, err error) bool

func sentinelHandler(sentinel error, status int, code, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleError maps catalog, searcher, and embedder failures to HTTP responses
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, collection string, err error) {
	handlers := []errorHandler{
		sentinelHandler(searcher.ErrEmptyQuery, http.StatusBadRequest, CodeEmptyQuery, "q is required and cannot be empty"),
		sentinelHandler(catalog.ErrUnknownCollection, http.StatusNotFound, CodeNotFound, "unknown collection "+collection),
		sentinelHandler(catalog.ErrNotSearchable, http.StatusNotFound, CodeNotFound, collection+" is not searchable"),
		sentinelHandler(embedstore.ErrNotFound, http.StatusNotFound, CodeNotCached, collection+" data not found. Run: gamesearch cache"),
		sentinelHandler(embedstore.ErrCorrupted, http.StatusInternalServerError, CodeCorruptedCache, collection+" cache is unreadable. Run: gamesearch cache --force"),
		sentinelHandler(embedstore.ErrInvalidFormat, http.StatusInternalServerError, CodeCorruptedCache, collection+" cache is unreadable. Run: gamesearch cache --force"),
		sentinelHandler(embedstore.ErrUnsupportedVersion, http.StatusInternalServerError, CodeCorruptedCache, collection+" cache is unreadable. Run: gamesearch cache --force"),
		sentinelHandler(embedder.ErrInitializationTimeout, http.StatusServiceUnavailable, CodeModelNotReady, "embedding model unavailable"),
		sentinelHandler(embedder.ErrModel, http.StatusServiceUnavailable, CodeModelNotReady, "embedding model unavailable"),
	}
	for _, h := range handlers {
		if h(w, err) {
			logpkg.FromContext(r.Context()).Warn("request failed",
				zap.String("collection", collection), zap.Error(err))
			return
		}
	}
	logpkg.FromContext(r.Context()).Error("request failed",
		zap.String("collection", collection), zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// jsonRecoverer returns a JSON 500 instead of a plain text stacktrace
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one log line per request and propagates X-Request-ID
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
