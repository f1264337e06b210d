package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/embassy-scraper/internal/dispatcher"
	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

// StatusSource reports the state of the running scrape.
type StatusSource interface {
	Snapshot() dispatcher.Snapshot
}

// Options wires the server to the run it reports on.
type Options struct {
	RunID     uuid.UUID
	Status    StatusSource
	Countries embassy.Directory
	Gatherer  prometheus.Gatherer
	// Registerer receives the HTTP request histogram; nil skips it.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// Server exposes health, metrics and run status over HTTP.
type Server struct {
	router chi.Router
	opts   Options
	logger *zap.Logger
}

// StatusResponse is the body of GET /v1/status.
type StatusResponse struct {
	RunID string `json:"run_id"`
	dispatcher.Snapshot
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if opts.Registerer != nil {
		mw, err := metricsMiddleware(opts.Registerer)
		if err != nil {
			return nil, err
		}
		r.Use(mw)
	}

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/countries", s.countries)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server started", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		RunID:    s.opts.RunID.String(),
		Snapshot: s.opts.Status.Snapshot(),
	})
}

func (s *Server) countries(w http.ResponseWriter, _ *http.Request) {
	dir := s.opts.Countries
	if dir == nil {
		dir = embassy.Directory{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(dir),
		"countries": dir,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
