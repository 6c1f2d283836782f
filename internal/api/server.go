// Package api exposes sessions over HTTP: starting batches, polling their
// progress, browsing results, exporting them, and sharing read-only links.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dharsanguruparan/skypulse/internal/config"
	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/processing"
	"github.com/dharsanguruparan/skypulse/internal/session"
	"github.com/dharsanguruparan/skypulse/internal/signing"
)

// ExportStore persists export artifacts and signs download links for them.
type ExportStore interface {
	UploadExport(ctx context.Context, sessionID, filename, contentType string, data []byte) (string, error)
	PresignExportURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// TaskLister reports orchestrations running inside this process.
type TaskLister interface {
	Active() []processing.Task
}

// Deps are the collaborators a Server needs. Exports and Tasks are optional.
type Deps struct {
	Sessions *session.Client
	Signer   *signing.Signer
	Exports  ExportStore
	Tasks    TaskLister
	Log      *logger.Logger
}

// Server exposes HTTP endpoints for sessions.
type Server struct {
	cfg      *config.Config
	sessions *session.Client
	signer   *signing.Signer
	exports  ExportStore
	tasks    TaskLister
	validate *validator.Validate
	log      *logger.Logger
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:      cfg,
		sessions: deps.Sessions,
		signer:   deps.Signer,
		exports:  deps.Exports,
		tasks:    deps.Tasks,
		validate: validator.New(),
		log:      deps.Log.With("component", "API"),
	}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/upload", s.handleUpload)
	mux.HandleFunc("/sessions/", s.handleSessionRoute)
	mux.HandleFunc("/shared", s.handleShared)
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.tasks != nil {
		body["activeSessions"] = len(s.tasks.Active())
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleSessionRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleSession(w, r, id)
		return
	}
	switch {
	case len(parts) == 2 && parts[1] == "results":
		s.handleResults(w, r, id)
	case len(parts) == 3 && parts[1] == "objects":
		s.handleObject(w, r, id, parts[2])
	case len(parts) == 2 && parts[1] == "export.csv":
		s.handleExportCSV(w, r, id)
	case len(parts) == 2 && parts[1] == "export.json":
		s.handleExportJSON(w, r, id)
	case len(parts) == 2 && parts[1] == "export-url":
		s.handleExportURL(w, r, id)
	case len(parts) == 2 && parts[1] == "share":
		s.handleShare(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
