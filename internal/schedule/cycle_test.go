// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/agribot/internal/ports"
)

func params(growth time.Duration) Params {
	return Params{
		GrowthTime:     growth,
		WaterDuration:  12 * time.Hour,
		WaterMargin:    10 * time.Minute,
		MergeThreshold: time.Hour,
	}
}

func TestRefillsPerCycle(t *testing.T) {
	tests := []struct {
		growth time.Duration
		want   int
	}{
		{40 * time.Minute, 0},
		{11*time.Hour + 50*time.Minute, 0},
		{12 * time.Hour, 1},
		{24 * time.Hour, 2},
		{20 * time.Hour, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, params(tt.growth).RefillsPerCycle(), tt.growth.String())
	}
}

func TestShouldMerge(t *testing.T) {
	threshold := 3600 * time.Second
	assert.True(t, ShouldMerge(1, 3000*time.Second, threshold))
	assert.False(t, ShouldMerge(1, 4000*time.Second, threshold))
	assert.False(t, ShouldMerge(0, 3000*time.Second, threshold))
	assert.False(t, ShouldMerge(1, threshold, threshold))
}

func TestNext_HarvestOnlyCycle(t *testing.T) {
	p := params(40 * time.Minute)
	now := at(14, 0)
	plan := p.Next(now, Cycle{Start: now, LastRefill: now})
	assert.Equal(t, ports.SessionHarvest, plan.Kind)
	assert.Equal(t, 40*time.Minute, plan.Pause)
	assert.False(t, plan.Merge)
}

func TestNext_WaterBeforeHarvest(t *testing.T) {
	p := params(20 * time.Hour)
	now := at(14, 0)
	plan := p.Next(now, Cycle{Start: now, LastRefill: now, RefillsRemaining: 1})
	assert.Equal(t, ports.SessionWaterOnly, plan.Kind)
	assert.Equal(t, p.RefillInterval(), plan.Pause)
	assert.False(t, plan.Merge)
}

func TestNext_MergesCloseWaterSession(t *testing.T) {
	p := params(30 * time.Hour)
	p.MergeThreshold = 3600 * time.Second
	start := at(0, 0)
	lastRefill := start
	now := lastRefill.Add(p.RefillInterval() - 3000*time.Second)

	plan := p.Next(now, Cycle{Start: start, LastRefill: lastRefill, RefillsRemaining: 1})
	assert.Equal(t, ports.SessionWaterOnly, plan.Kind)
	assert.Equal(t, 3000*time.Second, plan.Pause)
	assert.True(t, plan.Merge)

	now = lastRefill.Add(p.RefillInterval() - 4000*time.Second)
	plan = p.Next(now, Cycle{Start: start, LastRefill: lastRefill, RefillsRemaining: 1})
	assert.Equal(t, 4000*time.Second, plan.Pause)
	assert.False(t, plan.Merge)
}

func TestNext_HarvestWinsWhenEarlier(t *testing.T) {
	p := params(13 * time.Hour)
	p.HarvestMargin = time.Minute
	now := at(1, 0)
	// water due at 11h50 after last refill, harvest due 13h01 after start
	plan := p.Next(now, Cycle{Start: now.Add(-2 * time.Hour), LastRefill: now, RefillsRemaining: 1})
	assert.Equal(t, ports.SessionHarvest, plan.Kind)
	assert.Equal(t, 11*time.Hour+time.Minute, plan.Pause)
}

func TestNext_SkipsBlackout(t *testing.T) {
	p := params(time.Hour)
	p.Blackout = MustParseWindow("05:50-06:30")
	now := at(5, 0)
	plan := p.Next(now, Cycle{Start: now})
	assert.Equal(t, at(6, 30), plan.Due)
	assert.Equal(t, 90*time.Minute, plan.Pause)
}

func TestNext_OverdueClampsToZero(t *testing.T) {
	p := params(time.Hour)
	now := at(12, 0)
	plan := p.Next(now, Cycle{Start: now.Add(-3 * time.Hour)})
	assert.Equal(t, time.Duration(0), plan.Pause)
}

func TestNeedsRefill(t *testing.T) {
	p := params(40 * time.Minute)
	now := at(12, 0)
	assert.False(t, p.NeedsRefill(now, time.Time{}, time.Hour), "first session never refills")
	assert.False(t, p.NeedsRefill(now, now.Add(-time.Hour), time.Hour))
	assert.True(t, p.NeedsRefill(now, now.Add(-11*time.Hour), time.Hour))
}

func TestWaterLasts(t *testing.T) {
	p := params(40 * time.Minute)
	now := at(12, 0)
	assert.True(t, p.WaterLasts(now, now.Add(-time.Hour), 2*time.Hour))
	assert.False(t, p.WaterLasts(now, now.Add(-11*time.Hour), 2*time.Hour))
	assert.False(t, p.WaterLasts(now, time.Time{}, time.Minute))
}

func TestHorizon(t *testing.T) {
	assert.Equal(t, 40*time.Minute, params(40*time.Minute).Horizon())
	p := params(20 * time.Hour)
	assert.Equal(t, p.RefillInterval(), p.Horizon())
}
