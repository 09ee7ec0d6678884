// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/health"
	"github.com/ManuGH/agribot/internal/host"
	"github.com/ManuGH/agribot/internal/sim"
	"github.com/ManuGH/agribot/internal/stats"
	"github.com/ManuGH/agribot/internal/workflow"
)

type fakeController struct {
	err      error
	commands []host.Command
	status   workflow.Status
}

func (f *fakeController) Submit(_ context.Context, cmd host.Command) error {
	f.commands = append(f.commands, cmd)
	return f.err
}

func (f *fakeController) Status() workflow.Status { return f.status }

type fakeReporter struct {
	since time.Time
	err   error
}

func (f *fakeReporter) Report(_ context.Context, since time.Time) (stats.Report, error) {
	f.since = since
	return stats.Report{Stations: 6, Sessions: 2}, f.err
}

func newServer(cfg Config, ctrl Controller, rep Reporter) http.Handler {
	return New(cfg, ctrl, health.NewManager("test", nil), rep).Handler()
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	ctrl := &fakeController{status: workflow.Status{State: "PAUSED", Countdown: "Next session: 1h 02m 03s"}}
	h := newServer(Config{}, ctrl, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var got workflow.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "PAUSED", got.State)
	assert.Equal(t, "Next session: 1h 02m 03s", got.Countdown)
}

func TestAuth(t *testing.T) {
	h := newServer(Config{Token: "s3cret"}, &fakeController{}, nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/status", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/status", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "s3cret").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-API-Token", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
}

func TestCommands_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"ok", nil, http.StatusOK, ""},
		{"maintenance", fmt.Errorf("start deferred to 06:30: %w", workflow.ErrMaintenanceWindow), http.StatusAccepted, ""},
		{"running", workflow.ErrRunning, http.StatusConflict, "ALREADY_RUNNING"},
		{"busy", host.ErrBusy, http.StatusServiceUnavailable, "BUSY"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{err: tt.err}
			rec := do(t, newServer(Config{}, ctrl, nil), http.MethodPost, "/api/v1/start", "")
			assert.Equal(t, tt.code, rec.Code)
			require.Equal(t, []host.Command{host.CommandStart}, ctrl.commands)
			if tt.want != "" {
				var body errorBody
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.want, body.Error.Code)
				assert.NotEmpty(t, body.RequestID)
			}
		})
	}
}

func TestStart_ConfigurationError(t *testing.T) {
	world := sim.New(sim.DefaultConfig(), clock.Real{}, nil)
	wf := workflow.New(workflow.Options{
		World:   world,
		Chat:    world,
		Session: world,
		Config:  config.Defaults,
	})
	startErr := wf.Start()
	require.ErrorIs(t, startErr, workflow.ErrNoStations)
	ctrl := &fakeController{err: startErr}

	rec := do(t, newServer(Config{}, ctrl, nil), http.MethodPost, "/api/v1/start", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "CONFIGURATION_ERROR")
}

func TestStop(t *testing.T) {
	ctrl := &fakeController{}
	rec := do(t, newServer(Config{}, ctrl, nil), http.MethodPost, "/api/v1/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []host.Command{host.CommandStop}, ctrl.commands)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, newServer(Config{}, ctrl, nil), http.MethodGet, "/api/v1/stop", "").Code)
}

func TestStats(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, do(t, newServer(Config{}, &fakeController{}, nil), http.MethodGet, "/api/v1/stats", "").Code)

	rep := &fakeReporter{}
	h := newServer(Config{}, &fakeController{}, rep)
	rec := do(t, h, http.MethodGet, "/api/v1/stats?since=24h", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, rep.since.IsZero())

	var got stats.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 6, got.Stations)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/stats?since=yesterday", "").Code)
}

func TestRateLimit(t *testing.T) {
	h := newServer(Config{RateLimit: 2}, &fakeController{}, nil)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "").Code)

	rec := do(t, h, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newServer(Config{}, &fakeController{}, nil)
	_ = do(t, h, http.MethodGet, "/api/v1/status", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agribot_api_requests_total")
}
