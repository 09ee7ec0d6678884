// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
)

func fixed(s Status) Checker {
	return NewFuncChecker(string(s), func(context.Context) CheckResult { return CheckResult{Status: s} })
}

func TestManager_Aggregation(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantState Status
		wantReady bool
	}{
		{"none", nil, StatusHealthy, true},
		{"healthy", []Checker{fixed(StatusHealthy)}, StatusHealthy, true},
		{"degraded", []Checker{fixed(StatusHealthy), fixed(StatusDegraded)}, StatusDegraded, true},
		{"unhealthy wins", []Checker{fixed(StatusUnhealthy), fixed(StatusDegraded)}, StatusUnhealthy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("test", nil)
			for _, c := range tt.checkers {
				m.Register(c)
			}
			got := m.Ready(context.Background())
			assert.Equal(t, tt.wantState, got.Status)
			assert.Equal(t, tt.wantReady, got.Ready)
		})
	}
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("1.0.0", nil)
	m.Register(fixed(StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestServeReady_Unavailable(t *testing.T) {
	m := NewManager("1.0.0", nil)
	m.Register(fixed(StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestTickChecker(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC))
	var last time.Time
	c := NewTickChecker(func() time.Time { return last }, time.Second, clk)

	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	last = clk.Now()
	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	clk.Advance(time.Second)
	res := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Error, "1.5s")
}

func TestWorkflowChecker(t *testing.T) {
	tests := []struct {
		state, kind string
		recoverable bool
		want        Status
	}{
		{"PAUSED", "", false, StatusHealthy},
		{"ERROR", "NetworkError", true, StatusDegraded},
		{"IDLE", "ConfigurationError", false, StatusUnhealthy},
	}
	for _, tt := range tests {
		c := NewWorkflowChecker(func() (string, string, bool) { return tt.state, tt.kind, tt.recoverable })
		assert.Equal(t, tt.want, c.Check(context.Background()).Status, tt.state)
	}
}

func TestFileChecker(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.log")
	full := filepath.Join(dir, "latest.log")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0o600))

	assert.Equal(t, StatusHealthy, NewFileChecker("c", "").Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewFileChecker("c", filepath.Join(dir, "nope")).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewFileChecker("c", dir).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewFileChecker("c", empty).Check(context.Background()).Status)
	assert.Equal(t, StatusHealthy, NewFileChecker("c", full).Check(context.Background()).Status)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")
	cfg.Chat.LogPath = filepath.Join(t.TempDir(), "missing.log")
	require.NoError(t, PerformStartupChecks(cfg))

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg.DataDir = file
	assert.Error(t, PerformStartupChecks(cfg))
}
