// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package workflow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/sim"
)

const testTick = 50 * time.Millisecond

// countingStats records calls and can be told to fail.
type countingStats struct {
	mu       sync.Mutex
	stations map[ports.SessionKind]int
	sessions map[ports.SessionKind]int
	err      error
}

func newCountingStats() *countingStats {
	return &countingStats{
		stations: map[ports.SessionKind]int{},
		sessions: map[ports.SessionKind]int{},
	}
}

func (c *countingStats) RecordStationCompleted(k ports.SessionKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stations[k]++
	return c.err
}

func (c *countingStats) RecordSessionCompleted(k ports.SessionKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[k]++
	return c.err
}

type harness struct {
	t       *testing.T
	cfg     config.AppConfig
	clock   *clock.Manual
	world   *sim.World
	stats   *countingStats
	wf      *Workflow
	visited map[State]int
	trail   []State
}

// at is a wall-clock time on a fixed day.
func at(h, m int) time.Time {
	return time.Date(2025, 3, 14, h, m, 0, 0, time.Local)
}

func baseConfig(stations ...string) config.AppConfig {
	cfg := config.Defaults()
	cfg.TickInterval = testTick
	cfg.Timing.StartupDelay = 0
	cfg.Plant.GrowthTime = 2 * time.Hour
	cfg.Schedule.HarvestMargin = 0
	for _, name := range stations {
		cfg.Stations = append(cfg.Stations, config.StationConfig{Name: name})
	}
	return cfg
}

type option func(*config.AppConfig, *sim.Config)

func newHarness(t *testing.T, start time.Time, cfg config.AppConfig, opts ...option) *harness {
	t.Helper()
	sc := sim.DefaultConfig(cfg.StationNames()...)
	for _, o := range opts {
		o(&cfg, &sc)
	}
	clk := clock.NewManual(start)
	world := sim.New(sc, clk, nil)
	stats := newCountingStats()
	h := &harness{
		t:       t,
		cfg:     cfg,
		clock:   clk,
		world:   world,
		stats:   stats,
		visited: map[State]int{},
	}
	h.wf = New(Options{
		World:   world,
		Chat:    world,
		Session: world,
		Stats:   stats,
		Clock:   clk,
		Config:  func() config.AppConfig { return h.cfg },
	})
	return h
}

// tick advances the clock by one quantum and ticks the workflow.
func (h *harness) tick() {
	h.clock.Advance(testTick)
	h.wf.Tick()
	st := h.wf.State()
	if len(h.trail) == 0 || h.trail[len(h.trail)-1] != st {
		h.trail = append(h.trail, st)
		h.visited[st]++
	}
}

// runUntil ticks until cond holds or the budget is spent.
func (h *harness) runUntil(budget int, cond func() bool) {
	h.t.Helper()
	for i := 0; i < budget; i++ {
		if cond() {
			return
		}
		h.tick()
	}
	require.True(h.t, cond(), "condition not met after %d ticks; state %s, trail %v", budget, h.wf.State(), h.trail)
}

func (h *harness) runUntilState(budget int, st State) {
	h.t.Helper()
	h.runUntil(budget, func() bool { return h.wf.State() == st })
}

// skipPause jumps the clock to the end of the current pause.
func (h *harness) skipPause() {
	h.t.Helper()
	require.Equal(h.t, StatePaused, h.wf.State())
	h.clock.Set(h.wf.Session().PauseEnd)
}

var errStatsDown = errors.New("stats store down")
