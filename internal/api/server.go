package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/taskscribe/internal/jira"
	"github.com/MikeSquared-Agency/taskscribe/internal/metrics"
	"github.com/MikeSquared-Agency/taskscribe/internal/processor"
)

// Options configure a Server. Zero values disable the matching feature.
type Options struct {
	Port     int
	APIToken string

	// JiraDefaults fill credential fields a submit request leaves empty.
	JiraDefaults jira.Credentials

	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Server struct {
	router *chi.Mux
	proc   *processor.Processor
	opts   Options
	logger *slog.Logger
	http   *http.Server
}

func NewServer(proc *processor.Processor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(opts.Metrics.Middleware)

	s := &Server{
		router: router,
		proc:   proc,
		opts:   opts,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Post("/extract", s.extract)
		r.Post("/transcribe", s.transcribe)
		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.closeSession)
			r.Get("/submissions", s.submissions)
			r.Put("/transcript", s.updateTranscript)
			r.Put("/tasks/{taskID}", s.updateTask)
			r.Post("/select-all", s.selectAll)
			r.Post("/deselect-all", s.deselectAll)
			r.Post("/submit", s.submit)
		})
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":           "taskscribe",
		"status":          "ok",
		"lexicon_version": s.proc.LexiconVersion(),
		"sessions":        s.proc.ActiveSessions(),
		"transcription":   s.proc.TranscriptionEnabled(),
	})
}

// BearerAuthMiddleware rejects requests without "Authorization: Bearer
// <token>". An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if len(h) <= 7 || h[:7] != "Bearer " || h[7:] != token {
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
