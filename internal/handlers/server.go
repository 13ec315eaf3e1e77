package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pep299/tech-digest/internal/config"
	"github.com/pep299/tech-digest/internal/digest"
	"github.com/pep299/tech-digest/internal/logging"
	"github.com/pep299/tech-digest/internal/storage"
)

// Runner runs one digest.
type Runner interface {
	Run(ctx context.Context, opts digest.Options) (*digest.Result, error)
}

// Server holds the HTTP server and its dependencies
type Server struct {
	config   *config.Config
	runner   Runner
	store    storage.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	// running serializes digest runs from cron and HTTP.
	running sync.Mutex
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, runner Runner, store storage.Store, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		config:   cfg,
		runner:   runner,
		store:    store,
		gatherer: gatherer,
		logger:   logger,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.corsMiddleware)
	api.Use(s.loggingMiddleware)

	// Health check
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Digest operations
	api.HandleFunc("/digest", s.runDigestHandler).Methods("POST")
	api.HandleFunc("/digests", s.listDigestsHandler).Methods("GET")
	api.HandleFunc("/digests/{name}", s.getDigestHandler).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.configHandler).Methods("GET")

	return r
}

// RunDigest runs a digest unless one is already in progress. The boolean is
// false when the run was skipped.
func (s *Server) RunDigest(ctx context.Context, opts digest.Options) (*digest.Result, bool, error) {
	if !s.running.TryLock() {
		return nil, false, nil
	}
	defer s.running.Unlock()

	result, err := s.runner.Run(ctx, opts)
	return result, true, err
}

// Middleware functions

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logging.FromContext(r.Context(), s.logger).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
