// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resource tracks the consumable units held by the agent, the
// time-of-day resupply mode and the adaptive delay between poured units.
//
// Counts come from the World port and are only re-read by Refresh; every
// other query works on that snapshot.
package resource

import (
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/schedule"
)

// Mode is the resupply behavior for the current time of day.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDeposit
	ModeRetrieve
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeDeposit:
		return "DEPOSIT"
	case ModeRetrieve:
		return "RETRIEVE"
	default:
		return "UNKNOWN"
	}
}

// Config parameterizes a Manager.
type Config struct {
	FullCount       int
	DepositKeep     int
	Deposit         schedule.Window
	Retrieve        schedule.Window
	DelayMin        time.Duration
	DelayMax        time.Duration
	DelayMultiplier float64
}

// MarkerStore persists the period key of the last completed mode transition.
type MarkerStore interface {
	LoadMarker() (string, error)
	SaveMarker(period string) error
}

// Manager owns the resource state. It is not safe for concurrent use; the
// workflow calls it from the tick thread only.
type Manager struct {
	cfg     Config
	world   ports.World
	markers MarkerStore
	logger  zerolog.Logger

	full  int
	empty int

	stationUnits  int
	sessionUnits  int
	delay         time.Duration
	unitStartedAt time.Time
	unitPending   bool
}

// New returns a Manager starting at the minimum delay.
func New(cfg Config, world ports.World, markers MarkerStore) *Manager {
	return &Manager{
		cfg:     cfg,
		world:   world,
		markers: markers,
		logger:  xglog.WithComponent("resource"),
		delay:   cfg.DelayMin,
	}
}

// CurrentMode buckets now into a mode. It depends on nothing but now and
// the configured windows.
func (m *Manager) CurrentMode(now time.Time) Mode {
	return ModeAt(m.cfg, now)
}

// ModeAt is CurrentMode without a Manager.
func ModeAt(cfg Config, now time.Time) Mode {
	switch {
	case cfg.Deposit.Contains(now):
		return ModeDeposit
	case cfg.Retrieve.Contains(now):
		return ModeRetrieve
	default:
		return ModeNormal
	}
}

// Refresh re-reads unit counts from the inventory.
func (m *Manager) Refresh() {
	m.full = m.world.CountItems(ports.ItemFullUnit, ports.LocationInventory)
	m.empty = m.world.CountItems(ports.ItemEmptyUnit, ports.LocationInventory)
	metrics.SetHeldUnits(m.full, m.empty)
}

// Full returns full units at the last refresh.
func (m *Manager) Full() int { return m.full }

// Empty returns empty units at the last refresh.
func (m *Manager) Empty() int { return m.empty }

// Held returns all units at the last refresh.
func (m *Manager) Held() int { return m.full + m.empty }

// TargetCount is how many units the agent should hold in mode.
func (m *Manager) TargetCount(mode Mode) int {
	if mode == ModeDeposit {
		return m.cfg.DepositKeep
	}
	return m.cfg.FullCount
}

// BucketsToDeposit is max(0, held - target).
func (m *Manager) BucketsToDeposit(mode Mode) int {
	return max(0, m.Held()-m.TargetCount(mode))
}

// BucketsToRetrieve is max(0, target - held).
func (m *Manager) BucketsToRetrieve(mode Mode) int {
	return max(0, m.TargetCount(mode)-m.Held())
}

// PeriodKey identifies the deposit or retrieve window occurrence at now.
// It is empty in normal mode.
func (m *Manager) PeriodKey(now time.Time) string {
	switch m.CurrentMode(now) {
	case ModeDeposit:
		return "deposit:" + m.cfg.Deposit.PeriodKey(now)
	case ModeRetrieve:
		return "retrieve:" + m.cfg.Retrieve.PeriodKey(now)
	default:
		return ""
	}
}

// NeedsModeTransition reports whether a deposit or retrieve run is due.
// The first session of a window always runs it. Later sessions in the same
// window only run it when the held count no longer matches the target.
func (m *Manager) NeedsModeTransition(now time.Time) bool {
	mode := m.CurrentMode(now)
	if mode == ModeNormal {
		return false
	}
	if m.markers != nil {
		last, err := m.markers.LoadMarker()
		if err != nil {
			m.logger.Warn().Err(err).Str("event", "resource.marker_load_failed").Msg("assuming transition not done")
			return true
		}
		if last == m.PeriodKey(now) {
			switch mode {
			case ModeDeposit:
				return m.BucketsToDeposit(mode) > 0
			case ModeRetrieve:
				return m.BucketsToRetrieve(mode) > 0
			}
		}
	}
	return true
}

// MarkTransition records that the transition for now's window is done.
func (m *Manager) MarkTransition(now time.Time) error {
	key := m.PeriodKey(now)
	if key == "" || m.markers == nil {
		return nil
	}
	return m.markers.SaveMarker(key)
}

// Delay is the current wait between two poured units.
func (m *Manager) Delay() time.Duration { return m.delay }

// BeginUnit marks the moment a unit was poured.
func (m *Manager) BeginUnit(now time.Time) {
	m.unitStartedAt = now
	m.unitPending = true
	m.stationUnits++
}

// RecordConsumption retunes the delay from the observed latency, except for
// the first unit of a session, and returns the delay to wait next.
func (m *Manager) RecordConsumption(now time.Time) time.Duration {
	if !m.unitPending {
		return m.delay
	}
	m.unitPending = false
	latency := now.Sub(m.unitStartedAt)
	if m.sessionUnits > 0 {
		m.delay = m.clamp(time.Duration(float64(latency) * m.cfg.DelayMultiplier))
	}
	m.sessionUnits++
	metrics.SetAdaptiveDelay(m.delay)
	metrics.RecordUnitPoured("consumed")
	return m.delay
}

// RecordTimeout forces the delay to its maximum.
func (m *Manager) RecordTimeout() time.Duration {
	m.unitPending = false
	m.delay = m.cfg.DelayMax
	metrics.SetAdaptiveDelay(m.delay)
	metrics.RecordUnitPoured("timeout")
	return m.delay
}

func (m *Manager) clamp(d time.Duration) time.Duration {
	return min(max(d, m.cfg.DelayMin), m.cfg.DelayMax)
}

// ResetSession starts a new session: the next consumption is treated as the
// first one again and the delay returns to the minimum.
func (m *Manager) ResetSession() {
	m.sessionUnits = 0
	m.unitPending = false
	m.delay = m.cfg.DelayMin
	m.stationUnits = 0
}

// BeginStation resets the per-station unit counter.
func (m *Manager) BeginStation() { m.stationUnits = 0 }

// UnitsThisStation counts units poured since BeginStation.
func (m *Manager) UnitsThisStation() int { return m.stationUnits }

// Snapshot is a read-only view for status reporting.
type Snapshot struct {
	Mode             Mode
	Full             int
	Empty            int
	UnitsThisStation int
	Delay            time.Duration
}

// Snapshot returns the current state at now.
func (m *Manager) Snapshot(now time.Time) Snapshot {
	return Snapshot{
		Mode:             m.CurrentMode(now),
		Full:             m.full,
		Empty:            m.empty,
		UnitsThisStation: m.stationUnits,
		Delay:            m.delay,
	}
}
