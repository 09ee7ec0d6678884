// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule computes pauses between sessions from growth and water
// timings, and decides when two sessions are close enough to merge.
package schedule

import (
	"time"

	"github.com/ManuGH/agribot/internal/ports"
)

// Params are the cycle timings. All values come from configuration.
type Params struct {
	// GrowthTime is how long a planted crop takes until harvest.
	GrowthTime time.Duration
	// WaterDuration is how long one fill of a station lasts.
	WaterDuration time.Duration
	// WaterMargin is subtracted from WaterDuration so refills happen early.
	WaterMargin time.Duration
	// HarvestMargin is added after GrowthTime before a harvest session.
	HarvestMargin time.Duration
	// MergeThreshold is the longest pause still worth skipping by merging.
	MergeThreshold time.Duration
	// Blackout is the daily window during which no session may start.
	Blackout Window
}

// RefillInterval is the time between two water sessions.
func (p Params) RefillInterval() time.Duration {
	i := p.WaterDuration - p.WaterMargin
	if i <= 0 {
		return p.WaterDuration
	}
	return i
}

// RefillsPerCycle is the number of water-only sessions needed between two
// harvests: ceil(growth / interval) - 1, never negative.
func (p Params) RefillsPerCycle() int {
	i := p.RefillInterval()
	if i <= 0 || p.GrowthTime <= i {
		return 0
	}
	n := int(p.GrowthTime / i)
	if p.GrowthTime%i != 0 {
		n++
	}
	return n - 1
}

// Cycle is the persisted progress of the current growth cycle.
type Cycle struct {
	// Start is when the crop was planted (end of the last harvest session).
	Start time.Time
	// LastRefill is the last time stations were filled. Zero if never.
	LastRefill time.Time
	// RefillsRemaining counts water-only sessions still due before harvest.
	RefillsRemaining int
}

// Plan is the outcome of a teardown computation.
type Plan struct {
	Kind  ports.SessionKind
	Due   time.Time
	Pause time.Duration
	Merge bool
}

// Next decides which session comes next and how long to pause before it.
func (p Params) Next(now time.Time, c Cycle) Plan {
	harvestDue := c.Start.Add(p.GrowthTime + p.HarvestMargin)
	plan := Plan{Kind: ports.SessionHarvest, Due: harvestDue}

	if c.RefillsRemaining > 0 {
		base := c.LastRefill
		if base.IsZero() {
			base = c.Start
		}
		waterDue := base.Add(p.RefillInterval())
		if waterDue.Before(harvestDue) {
			plan = Plan{Kind: ports.SessionWaterOnly, Due: waterDue}
		}
	}

	plan.Due = p.avoidBlackout(plan.Due)
	plan.Pause = plan.Due.Sub(now)
	if plan.Pause < 0 {
		plan.Pause = 0
	}
	plan.Merge = plan.Kind == ports.SessionWaterOnly && ShouldMerge(c.RefillsRemaining, plan.Pause, p.MergeThreshold)
	return plan
}

// ShouldMerge reports whether the next water session should start in place
// instead of disconnecting.
func ShouldMerge(refillsRemaining int, nextPause, threshold time.Duration) bool {
	return refillsRemaining > 0 && nextPause < threshold
}

func (p Params) avoidBlackout(t time.Time) time.Time {
	return p.Blackout.EndAfter(t)
}

// NeedsRefill reports whether a session starting at now must refill the
// stations so the water lasts for horizon. The very first session (no
// recorded refill) assumes stations were filled by hand.
func (p Params) NeedsRefill(now, lastRefill time.Time, horizon time.Duration) bool {
	if lastRefill.IsZero() {
		return false
	}
	return now.Sub(lastRefill)+horizon >= p.RefillInterval()
}

// WaterLasts reports whether water filled at lastRefill still covers pause.
func (p Params) WaterLasts(now, lastRefill time.Time, pause time.Duration) bool {
	if lastRefill.IsZero() {
		return false
	}
	return now.Sub(lastRefill)+pause < p.WaterDuration
}

// Horizon is the longest a harvest session's water must last: until the next
// water session or the harvest, whichever comes first.
func (p Params) Horizon() time.Duration {
	g := p.GrowthTime + p.HarvestMargin
	if i := p.RefillInterval(); i < g {
		return i
	}
	return g
}
