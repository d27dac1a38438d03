// Package api provides the HTTP trigger surface: file upload into the
// intake tier, manual sweep runs, and health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiervault/tiervault/internal/pipeline"
	"github.com/tiervault/tiervault/pkg/errors"
)

// Server exposes the pipeline over HTTP.
type Server struct {
	httpServer   *http.Server
	orchestrator *pipeline.Orchestrator
	registry     *prometheus.Registry
	config       ServerConfig
	logger       *slog.Logger
}

// ServerConfig configures the API server.
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8080")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// MaxUploadBytes bounds multipart request memory. Files larger than the
	// intake limit are still accepted here and rejected by validation, so
	// the caller gets a proper rejection reason instead of a dropped
	// connection.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        "localhost:8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    60 * time.Second,
		MaxUploadBytes: 128 << 20,
	}
}

// NewServer creates the API server. The registry may be nil, which disables
// the metrics endpoint.
func NewServer(config ServerConfig, orchestrator *pipeline.Orchestrator, registry *prometheus.Registry) *Server {
	s := &Server{
		orchestrator: orchestrator,
		registry:     registry,
		config:       config,
		logger:       slog.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/upload", s.handleUpload)
	r.Post("/sweep", s.handleSweep)
	r.Get("/health", s.handleHealth)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the router, used by tests to drive requests without a
// listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// handleUpload accepts one multipart file under the "file" field, validates
// it, and stores accepted files in the intake tier. Rejections come back
// synchronously with the specific reason.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "reading upload failed")
		return
	}

	result, err := s.orchestrator.Upload(r.Context(), header.Filename, data)
	if err != nil {
		code := errors.CodeOf(err)
		s.respondJSON(w, errors.HTTPStatusOf(err), map[string]interface{}{
			"accepted":  false,
			"filename":  header.Filename,
			"reason":    result.Reason,
			"code":      string(code),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted":  true,
		"filename":  header.Filename,
		"size":      len(data),
		"timestamp": time.Now().UTC(),
	})
}

// handleSweep runs one backup-and-archival batch synchronously and returns
// the summary. A batch-level abort maps to 503; per-object failures do not.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := s.orchestrator.RunSweep(r.Context())
	if err != nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"aborted":     true,
			"abort_cause": summary.AbortCause,
			"timestamp":   time.Now().UTC(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"state":     s.orchestrator.State().String(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
