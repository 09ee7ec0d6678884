// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resource

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/schedule"
)

type inventory struct {
	ports.World
	full, empty int
}

func (i *inventory) CountItems(kind ports.ItemKind, _ ports.Location) int {
	switch kind {
	case ports.ItemFullUnit:
		return i.full
	case ports.ItemEmptyUnit:
		return i.empty
	}
	return 0
}

type memMarker struct {
	period string
	err    error
}

func (m *memMarker) LoadMarker() (string, error) { return m.period, m.err }
func (m *memMarker) SaveMarker(p string) error   { m.period = p; return nil }

func testConfig() Config {
	return Config{
		FullCount:       16,
		DepositKeep:     1,
		Deposit:         schedule.MustParseWindow("06:30-11:30"),
		Retrieve:        schedule.MustParseWindow("11:30-24:00"),
		DelayMin:        500 * time.Millisecond,
		DelayMax:        3 * time.Second,
		DelayMultiplier: 1.5,
	}
}

func at(h, m int) time.Time { return time.Date(2025, 3, 14, h, m, 0, 0, time.Local) }

func TestCurrentMode_PureAndWindowed(t *testing.T) {
	m := New(testConfig(), &inventory{}, nil)

	deposit := at(8, 0)
	assert.Equal(t, m.CurrentMode(deposit), m.CurrentMode(deposit))
	assert.Equal(t, ModeDeposit, m.CurrentMode(deposit))
	assert.Equal(t, ModeRetrieve, m.CurrentMode(at(14, 0)))
	assert.Equal(t, ModeNormal, m.CurrentMode(at(3, 0)))
	assert.Equal(t, ModeNormal, m.CurrentMode(at(6, 0)))
}

func TestBucketCounts_NeverNegative(t *testing.T) {
	inv := &inventory{}
	m := New(testConfig(), inv, nil)
	rng := rand.New(rand.NewSource(7))
	for range 1000 {
		inv.full, inv.empty = rng.Intn(40), rng.Intn(40)
		m.Refresh()
		for _, mode := range []Mode{ModeNormal, ModeDeposit, ModeRetrieve} {
			dep, ret := m.BucketsToDeposit(mode), m.BucketsToRetrieve(mode)
			require.GreaterOrEqual(t, dep, 0)
			require.GreaterOrEqual(t, ret, 0)
			diff := m.Held() - m.TargetCount(mode)
			require.Equal(t, max(0, diff), dep)
			require.Equal(t, max(0, -diff), ret)
		}
	}
}

func TestTargetCount(t *testing.T) {
	m := New(testConfig(), &inventory{}, nil)
	assert.Equal(t, 1, m.TargetCount(ModeDeposit))
	assert.Equal(t, 16, m.TargetCount(ModeRetrieve))
	assert.Equal(t, 16, m.TargetCount(ModeNormal))
}

func TestNeedsModeTransition(t *testing.T) {
	inv := &inventory{full: 16}
	marker := &memMarker{}
	m := New(testConfig(), inv, marker)
	m.Refresh()

	assert.False(t, m.NeedsModeTransition(at(3, 0)), "normal mode never transitions")

	now := at(7, 0)
	assert.True(t, m.NeedsModeTransition(now), "first session of the window")
	require.NoError(t, m.MarkTransition(now))
	assert.Equal(t, "deposit:2025-03-14@06:30", marker.period)

	// Same window, still holding 16: count mismatch re-triggers.
	assert.True(t, m.NeedsModeTransition(at(8, 0)))

	inv.full = 1
	m.Refresh()
	assert.False(t, m.NeedsModeTransition(at(8, 0)))

	// Next day the marker is stale.
	assert.True(t, m.NeedsModeTransition(at(8, 0).AddDate(0, 0, 1)))

	// Retrieve window with a deposit marker: always first run.
	assert.True(t, m.NeedsModeTransition(at(12, 0)))
	require.NoError(t, m.MarkTransition(at(12, 0)))
	inv.full, inv.empty = 10, 6
	m.Refresh()
	assert.False(t, m.NeedsModeTransition(at(15, 0)))
}

func TestNeedsModeTransition_MarkerErrorAssumesDue(t *testing.T) {
	m := New(testConfig(), &inventory{}, &memMarker{err: errors.New("disk")})
	assert.True(t, m.NeedsModeTransition(at(7, 0)))
}

func TestAdaptiveDelay_FirstUnitExcluded(t *testing.T) {
	m := New(testConfig(), &inventory{}, nil)
	t0 := at(12, 0)

	m.BeginUnit(t0)
	d := m.RecordConsumption(t0.Add(2 * time.Second))
	assert.Equal(t, 500*time.Millisecond, d, "first unit of the session does not tune")

	m.BeginUnit(t0)
	d = m.RecordConsumption(t0.Add(time.Second))
	assert.Equal(t, 1500*time.Millisecond, d)

	assert.Equal(t, 3*time.Second, m.RecordTimeout())

	m.ResetSession()
	assert.Equal(t, 500*time.Millisecond, m.Delay())
	m.BeginUnit(t0)
	m.RecordConsumption(t0.Add(time.Second))
	assert.Equal(t, 500*time.Millisecond, m.Delay())
}

func TestAdaptiveDelay_StaysWithinBounds(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, &inventory{}, nil)
	rng := rand.New(rand.NewSource(42))
	now := at(12, 0)
	for i := range 5000 {
		m.BeginUnit(now)
		if i%7 == 0 {
			m.RecordTimeout()
		} else {
			latency := time.Duration(rng.Int63n(int64(10 * time.Second)))
			now = now.Add(latency)
			m.RecordConsumption(now)
		}
		require.GreaterOrEqual(t, m.Delay(), cfg.DelayMin)
		require.LessOrEqual(t, m.Delay(), cfg.DelayMax)
		if i%500 == 0 {
			m.ResetSession()
		}
	}
}

func TestStationUnits(t *testing.T) {
	m := New(testConfig(), &inventory{}, nil)
	m.BeginStation()
	m.BeginUnit(at(12, 0))
	m.BeginUnit(at(12, 0))
	assert.Equal(t, 2, m.UnitsThisStation())
	m.BeginStation()
	assert.Zero(t, m.UnitsThisStation())
}
