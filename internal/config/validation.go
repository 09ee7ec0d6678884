// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/plants"
)

// Validate checks structural sanity. It does not require stations or
// credentials: those are checked when the workflow starts, so an agent can
// boot with an incomplete file and be fixed by a reload.
func Validate(cfg AppConfig) error {
	v := &ValidationError{}

	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil || cfg.LogLevel == "" {
		v.add("log_level %q is not a valid level", cfg.LogLevel)
	}
	if cfg.TickInterval < time.Millisecond || cfg.TickInterval > time.Second {
		v.add("tick_interval must be within [1ms, 1s], got %s", cfg.TickInterval)
	}

	seen := make(map[string]struct{}, len(cfg.Stations))
	for i, s := range cfg.Stations {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			v.add("stations[%d].name is empty", i)
			continue
		}
		if strings.ContainsAny(name, " \t\n") {
			v.add("stations[%d].name %q must not contain whitespace", i, name)
		}
		if _, dup := seen[name]; dup {
			v.add("stations[%d].name %q is duplicated", i, name)
		}
		seen[name] = struct{}{}
	}

	if cfg.Plant.GrowthBoost < 0 {
		v.add("plant.growth_boost must be >= 0")
	}
	if cfg.Plant.GrowthTime < 0 {
		v.add("plant.growth_time must be >= 0")
	}
	if cfg.Plant.Type != "" && cfg.Plant.GrowthTime == 0 {
		if _, err := plants.Lookup(cfg.Plant.Type); err != nil {
			v.add("plant.type: %v (set plant.growth_time to use an unlisted plant)", err)
		}
	}

	validateResource(v, cfg.Resource)
	validateSchedule(v, cfg.Schedule)

	if err := cfg.Recovery.Backoff().Validate(); err != nil {
		v.add("recovery backoff: %v", err)
	}
	if cfg.Recovery.ProbeInterval <= 0 {
		v.add("recovery.probe_interval must be > 0")
	}

	if !strings.Contains(cfg.Chat.TeleportCommand, "%s") {
		v.add("chat.teleport_command must contain %%s")
	}
	if cfg.Server.Password != "" && !strings.Contains(cfg.Server.LoginCommand, "%s") {
		v.add("server.login_command must contain %%s")
	}
	for key, pattern := range map[string]string{
		"chat.event_pattern":      cfg.Chat.EventPattern,
		"chat.disconnect_pattern": cfg.Chat.DisconnectPattern,
	} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			v.add("%s: %v", key, err)
		}
	}
	switch strings.ToLower(cfg.Chat.LogEncoding) {
	case "utf-8", "utf8", "cp1252", "windows-1252":
	default:
		v.add("chat.log_encoding must be utf-8 or cp1252")
	}
	if cfg.Chat.CommandsPerSecond <= 0 || cfg.Chat.CommandBurst < 1 {
		v.add("chat command rate must be positive")
	}

	for name, slot := range map[string]int{
		"slots.seed":      cfg.Slots.Seed,
		"slots.full_unit": cfg.Slots.FullUnit,
		"slots.entry":     cfg.Slots.Entry,
	} {
		if slot < 0 || slot > 8 {
			v.add("%s must be a hotbar slot in [0, 8], got %d", name, slot)
		}
	}
	if cfg.Slots.Seed == cfg.Slots.FullUnit {
		v.add("slots.seed and slots.full_unit must differ")
	}

	if !cfg.Simulate {
		if cfg.Bridge.Address == "" {
			v.add("bridge.address is required unless simulate is set")
		}
		if cfg.Bridge.OutboxSize < 1 {
			v.add("bridge.outbox_size must be >= 1")
		}
	}

	if cfg.API.Enabled && cfg.API.ListenAddr == "" {
		v.add("api.listen_addr is required when the API is enabled")
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			v.add("telemetry.exporter must be grpc or http")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.add("telemetry.sampling_rate must be within [0, 1]")
		}
	}

	return v.err()
}

func validateResource(v *ValidationError, r ResourceConfig) {
	if r.FullCount < 1 {
		v.add("resource.full_count must be >= 1")
	}
	if r.DepositKeep < 0 || r.DepositKeep > r.FullCount {
		v.add("resource.deposit_keep must be within [0, full_count]")
	}
	if r.MaxUnitsPerStation < 1 || r.MaxUnitsSingleMode < 1 {
		v.add("resource unit caps must be >= 1")
	}
	if r.DelayMin <= 0 || r.DelayMax < r.DelayMin {
		v.add("resource delay must satisfy 0 < delay_min <= delay_max")
	}
	if r.DelayMultiplier < 1 {
		v.add("resource.delay_multiplier must be >= 1")
	}
	if r.UnitTimeout <= 0 || r.StationTimeout < r.UnitTimeout {
		v.add("resource timeouts must satisfy 0 < unit_timeout <= station_timeout")
	}
	if r.DepositHome == "" || r.RetrieveHome == "" {
		v.add("resource.deposit_home and resource.retrieve_home are required")
	}
}

func validateSchedule(v *ValidationError, s ScheduleConfig) {
	if s.WaterDuration <= 0 {
		v.add("schedule.water_duration must be > 0")
	}
	if s.WaterMargin < 0 || s.WaterMargin >= s.WaterDuration {
		v.add("schedule.water_margin must be within [0, water_duration)")
	}
	if s.HarvestMargin < 0 || s.MergeThreshold < 0 {
		v.add("schedule margins must be >= 0")
	}
	if !s.Deposit.IsZero() && !s.Retrieve.IsZero() && overlaps(s.Deposit.Start, s.Deposit.End, s.Retrieve.Start, s.Retrieve.End) {
		v.add("schedule.deposit and schedule.retrieve overlap")
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Duration) bool {
	if aStart > aEnd || bStart > bEnd {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
