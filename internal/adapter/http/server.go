// Package http serves the operational endpoints of a slicing run: liveness,
// readiness, Prometheus metrics and, when a run ledger is configured, the
// recent run history.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghdsi/case-slicer/internal/store"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// RunLister returns recorded runs, newest first.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]store.Run, error)
}

// Server exposes the operational HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a server with /healthz, /readyz and /metrics routes.
// /runs is added when runs is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, runs RunLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if runs != nil {
		mux.HandleFunc("GET /runs", s.handleRuns(runs))
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type runResponse struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationSeconds  float64   `json:"duration_seconds"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	RecordsRead      int       `json:"records_read"`
	RecordsKept      int       `json:"records_kept"`
	RecordsRejected  int       `json:"records_rejected"`
	Locations        int       `json:"locations"`
	SlicesWritten    int       `json:"slices_written"`
	SlicesSkipped    int       `json:"slices_skipped"`
	CountriesWritten int       `json:"countries_written"`
	CountriesSkipped int       `json:"countries_skipped"`
	UnknownCountries int       `json:"unknown_countries"`
	ClampedCells     int       `json:"clamped_cells"`
}

func (s *Server) handleRuns(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
				return
			}
			limit = min(n, maxRunLimit)
		}

		recent, err := runs.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("list runs failed", "error", err)
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "run ledger unavailable"})
			return
		}

		out := make([]runResponse, 0, len(recent))
		for _, run := range recent {
			out = append(out, runResponse{
				ID:               run.ID,
				StartedAt:        run.StartedAt,
				FinishedAt:       run.FinishedAt,
				DurationSeconds:  run.Duration().Seconds(),
				Status:           run.Status,
				Error:            run.Error,
				RecordsRead:      run.RecordsRead,
				RecordsKept:      run.RecordsKept,
				RecordsRejected:  run.RecordsRejected,
				Locations:        run.Locations,
				SlicesWritten:    run.SlicesWritten,
				SlicesSkipped:    run.SlicesSkipped,
				CountriesWritten: run.CountriesWritten,
				CountriesSkipped: run.CountriesSkipped,
				UnknownCountries: run.UnknownCountries,
				ClampedCells:     run.ClampedCells,
			})
		}
		sharedobs.WriteJSON(w, http.StatusOK, out)
	}
}
