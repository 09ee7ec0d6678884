// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health answers liveness and readiness probes for the agent from
// a set of component checkers.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ManuGH/agribot/internal/clock"
	xglog "github.com/ManuGH/agribot/internal/log"
)

// Status is the overall or per-component state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one component's answer.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response is returned by both probes.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is a named component check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	clock    clock.Clock
	checkers []Checker
}

// NewManager returns a manager with no checkers.
func NewManager(version string, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{version: version, clock: clk}
}

// Register adds a checker. Not safe after serving starts.
func (m *Manager) Register(c Checker) {
	m.checkers = append(m.checkers, c)
}

func (m *Manager) run(ctx context.Context) Response {
	resp := Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: m.clock.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		r := c.Check(ctx)
		resp.Checks[c.Name()] = r
		switch r.Status {
		case StatusUnhealthy:
			resp.Status = StatusUnhealthy
			resp.Ready = false
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// Health is the liveness probe: the process answers, component checks are
// included only when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) Response {
	if !verbose {
		return Response{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: m.clock.Now()}
	}
	resp := m.run(ctx)
	resp.Ready = true
	return resp
}

// Ready is the readiness probe. Any unhealthy component makes it not ready.
func (m *Manager) Ready(ctx context.Context) Response {
	return m.run(ctx)
}

// ServeHealth always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	m.write(w, r, "health", m.Health(r.Context(), verbose), http.StatusOK)
}

// ServeReady answers 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, "readiness", resp, code)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, probe string, resp Response, code int) {
	logger := xglog.WithComponentFromContext(r.Context(), probe)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, probe+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(xglog.FieldEvent, probe+".checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("probe answered")
}
