// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the control HTTP interface: probes, metrics, the
// workflow status and start/stop commands.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/health"
	"github.com/ManuGH/agribot/internal/host"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/stats"
	"github.com/ManuGH/agribot/internal/workflow"
)

// Controller is the command and status surface of the tick host.
type Controller interface {
	Submit(ctx context.Context, cmd host.Command) error
	Status() workflow.Status
}

// Reporter reads accumulated statistics. Optional.
type Reporter interface {
	Report(ctx context.Context, since time.Time) (stats.Report, error)
}

// Config configures the server.
type Config struct {
	// Token protects /api routes. Empty leaves them open, which is only
	// accepted on a loopback listener.
	Token string
	// RateLimit is requests per minute per client on /api routes.
	RateLimit int
	// CommandTimeout bounds how long a start/stop waits for the tick loop.
	CommandTimeout time.Duration
	// TracingService enables otelhttp spans when non-empty.
	TracingService string
}

// Server holds the handler dependencies.
type Server struct {
	cfg      Config
	ctrl     Controller
	health   *health.Manager
	reporter Reporter
	logger   zerolog.Logger
}

// New returns a server. reporter may be nil.
func New(cfg Config, ctrl Controller, hm *health.Manager, reporter Reporter) *Server {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	return &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		health:   hm,
		reporter: reporter,
		logger:   xglog.WithComponent("api"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(securityHeaders)
	if s.cfg.TracingService != "" {
		r.Use(tracing(s.cfg.TracingService))
	}
	r.Use(s.requestLog)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit, time.Minute))
		r.Use(s.auth)
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Get("/stats", s.handleStats)
	})
	return r
}
