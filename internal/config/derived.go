// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/plants"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/resilience"
	"github.com/ManuGH/agribot/internal/schedule"
)

// ResolveGrowthTime resolves the crop growth time: explicit override, then the
// growth table with boost, then DefaultGrowthTime.
func (p PlantConfig) ResolveGrowthTime() time.Duration {
	if p.GrowthTime > 0 {
		return p.GrowthTime
	}
	if plant, err := plants.Lookup(p.Type); err == nil {
		return plant.GrowthTime(p.GrowthBoost)
	}
	return DefaultGrowthTime
}

// HarvestClick is the click kind used on the ready crop.
func (p PlantConfig) HarvestClick() ports.ClickKind {
	return plants.HarvestClickFor(p.Type)
}

// CycleParams derives the cycle planner parameters.
func (c AppConfig) CycleParams() schedule.Params {
	return schedule.Params{
		GrowthTime:     c.Plant.ResolveGrowthTime(),
		WaterDuration:  c.Schedule.WaterDuration,
		WaterMargin:    c.Schedule.WaterMargin,
		HarvestMargin:  c.Schedule.HarvestMargin,
		MergeThreshold: c.Schedule.MergeThreshold,
		Blackout:       c.Schedule.Maintenance,
	}
}

// Backoff is the reconnect policy shared by the workflow and the bridge.
func (r RecoveryConfig) Backoff() resilience.Backoff {
	return resilience.Backoff{
		InitialDelay: r.BackoffInitial,
		MaxDelay:     r.BackoffMax,
		Multiplier:   r.BackoffMultiplier,
	}
}

// Ticks converts d to a tick count at the configured interval, rounding up.
func (c AppConfig) Ticks(d time.Duration) int {
	return clock.Ticks(d, c.TickInterval)
}
