// Package api exposes the merge pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reelmerge/internal/core/domain"
	rlog "reelmerge/internal/log"
)

// JobRunner runs one merge job to completion.
type JobRunner interface {
	RunJob(ctx context.Context, mode domain.MergeMode, sources []domain.VideoSource) (*domain.JobResult, error)
}

// ArtifactStore opens published artifacts by job id.
type ArtifactStore interface {
	Open(jobID string) (*os.File, os.FileInfo, error)
}

// Config holds the HTTP shell settings.
type Config struct {
	DefaultMode   domain.MergeMode
	MaxClips      int
	PublicBaseURL string // prefix for download links; derived from the request when empty
	RateLimit     int    // POST /merge requests per window and client IP; 0 disables
	RateWindow    time.Duration
	Version       string
	// TrustProxyHeaders derives the client address, and so the rate limit
	// key, from forwarding headers instead of the connection.
	TrustProxyHeaders bool
}

// Server routes requests to the orchestrator and the artifact store.
type Server struct {
	cfg    Config
	jobs   JobRunner
	store  ArtifactStore
	logger zerolog.Logger
}

func New(cfg Config, jobs JobRunner, store ArtifactStore, logger zerolog.Logger) *Server {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = domain.ModeOverlay
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	return &Server{cfg: cfg, jobs: jobs, store: store, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(rlog.Middleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/download/{file}", s.handleDownload)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateWindow))
		}
		r.Post("/merge", s.handleMerge)
	})
	return r
}

func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
		}),
	)
}
