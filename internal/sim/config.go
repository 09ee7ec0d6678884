// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sim

import (
	"strings"

	"github.com/ManuGH/agribot/internal/config"
)

// FromAppConfig builds a world whose commands, homes and slot layout match
// what an agent running with cfg will send and look for. The world always
// prints the default station-full text; a custom pattern must match it.
func FromAppConfig(cfg config.AppConfig) Config {
	c := DefaultConfig(cfg.StationNames()...)
	c.GrowthTime = cfg.Plant.ResolveGrowthTime()
	c.WaterDuration = cfg.Schedule.WaterDuration
	c.FullUnits = cfg.Resource.FullCount
	c.TeleportPrefix = commandPrefix(cfg.Chat.TeleportCommand)
	c.LoginPrefix = commandPrefix(cfg.Server.LoginCommand)
	c.RefillCommand = cfg.Resource.RefillCommand
	c.DepositHome = cfg.Resource.DepositHome
	c.RetrieveHome = cfg.Resource.RetrieveHome
	c.SeedSlot = cfg.Slots.Seed
	c.FullSlot = cfg.Slots.FullUnit
	c.EntrySlot = cfg.Slots.Entry
	c.HarvestSlot = cfg.Slots.Harvest
	c.EntryOptionSlot = cfg.Slots.EntryOption
	if c.EmptySlot == c.FullSlot {
		c.EmptySlot = c.FullSlot + 1
	}
	return c
}

// commandPrefix cuts a command template at its first verb: "/home %s" -> "/home ".
func commandPrefix(template string) string {
	if i := strings.Index(template, "%"); i >= 0 {
		return template[:i]
	}
	return template
}
