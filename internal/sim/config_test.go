// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuGH/agribot/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stations = []config.StationConfig{{Name: "farm1"}, {Name: "farm2"}}
	cfg.Chat.TeleportCommand = "/warp %s"
	cfg.Slots.FullUnit = 1

	c := FromAppConfig(cfg)

	assert.Equal(t, []string{"farm1", "farm2"}, c.Stations)
	assert.Equal(t, "/warp ", c.TeleportPrefix)
	assert.Equal(t, "/login ", c.LoginPrefix)
	assert.Equal(t, cfg.Resource.DepositHome, c.DepositHome)
	assert.Equal(t, cfg.Resource.FullCount, c.FullUnits)
	assert.Equal(t, 1, c.FullSlot)
	assert.Equal(t, 2, c.EmptySlot, "empty units must not share the full slot")
}

func TestFromAppConfig_TeleportReachesStation(t *testing.T) {
	cfg := config.Defaults()
	cfg.Stations = []config.StationConfig{{Name: "farm1"}}
	cfg.Chat.TeleportCommand = "/warp %s"

	w := New(FromAppConfig(cfg), nil, nil)
	w.SendCommand("/warp farm1")

	assert.True(t, w.HasArrived("farm1"))
	full, empty := w.Units()
	assert.Equal(t, cfg.Resource.FullCount, full)
	assert.Zero(t, empty)
}
