// Package api serves the read side of the pipeline over HTTP: supplier
// dossiers, single-contract analysis, scoring policies and run metrics.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/artifact"
	"github.com/niruguard/niruguard/internal/dossier"
	"github.com/niruguard/niruguard/internal/features"
	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/scorer"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
	maxBodyBytes       = 1 << 20
	requestTimeout     = 30 * time.Second
)

// Options wires a Server. Snapshot may be nil when no v3 table has been
// built yet; the supplier routes then answer 503.
type Options struct {
	Snapshot       *dossier.Snapshot
	Analyzers      map[model.Version]*artifact.Analyzer
	DefaultVersion model.Version
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// Server holds the handlers of the read API.
type Server struct {
	snapshot       *dossier.Snapshot
	analyzers      map[model.Version]*artifact.Analyzer
	defaultVersion model.Version
	metrics        *metrics.Metrics
	origins        []string
	log            *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	def := opts.DefaultVersion
	if def == 0 {
		def = model.V3
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		snapshot:       opts.Snapshot,
		analyzers:      opts.Analyzers,
		defaultVersion: def,
		metrics:        opts.Metrics,
		origins:        origins,
		log:            zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/policies", s.handlePolicies)
	r.Post("/analyze", s.handleAnalyze)
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", s.handleSearch)
		r.Get("/{id}", s.handleDossier)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Snapshot  bool              `json:"snapshot"`
	Contracts int               `json:"contracts"`
	Suppliers int               `json:"suppliers"`
	RunID     string            `json:"run_id,omitempty"`
	Models    map[string]string `json:"models"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Models: make(map[string]string, len(s.analyzers))}
	if s.snapshot != nil {
		resp.Snapshot = true
		resp.Contracts = s.snapshot.Contracts()
		resp.Suppliers = len(s.snapshot.Suppliers())
		if s.snapshot.Manifest != nil {
			resp.RunID = s.snapshot.Manifest.RunID
		}
	}
	for v, a := range s.analyzers {
		state := artifact.StateUnavailable
		if a.Available() {
			state = artifact.StateScored
		}
		resp.Models[v.String()] = string(state)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePolicies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, scorer.Policies())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable", "no v3 feature table loaded")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	writeJSON(w, http.StatusOK, s.snapshot.Search(r.URL.Query().Get("q"), limit))
}

func (s *Server) handleDossier(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot_unavailable", "no v3 feature table loaded")
		return
	}

	d, err := s.snapshot.Get(chi.URLParam(r, "id"))
	if err != nil {
		if dossier.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "supplier_not_found", err.Error())
			return
		}
		s.log.Error("dossier lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "dossier lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type analyzeRequest struct {
	features.Input
	Version string `json:"version"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	v := s.defaultVersion
	if req.Version != "" {
		parsed, err := model.ParseVersion(req.Version)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_version", err.Error())
			return
		}
		v = parsed
	}

	a, ok := s.analyzers[v]
	if !ok {
		writeError(w, http.StatusNotFound, "version_not_served", "no analyzer for "+v.String())
		return
	}

	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "method is required")
		return
	}

	res, err := a.Analyze(req.Input)
	if err != nil {
		if req.Amount < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.log.Error("analyze failed", zap.String("version", v.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analyze_failed", "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, errorResponse{Error: code, Description: desc})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
