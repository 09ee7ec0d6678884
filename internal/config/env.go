// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AGRIBOT_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envReader applies typed overrides and records which keys it consumed.
type envReader struct {
	lookup   LookupFunc
	logger   zerolog.Logger
	consumed map[string]struct{}
}

func (r *envReader) raw(key string) (string, bool) {
	r.consumed[key] = struct{}{}
	v, ok := r.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

func (r *envReader) str(key string, dst *string) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	ev := r.logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	*dst = v
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		r.logger.Warn().Str("key", key).Str("value", v).Msg("invalid boolean in environment variable, ignoring")
		return
	}
	r.logger.Debug().Str("key", key).Bool("value", *dst).Str("source", "environment").Msg("using environment variable")
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.logger.Warn().Str("key", key).Str("value", v).Msg("invalid duration in environment variable, ignoring")
		return
	}
	r.logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	*dst = d
}

func (r *envReader) float(key string, dst *float64) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.logger.Warn().Str("key", key).Str("value", v).Msg("invalid float in environment variable, ignoring")
		return
	}
	r.logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	*dst = f
}

// stations parses a comma separated list, e.g. "farm1,farm2".
func (r *envReader) stations(key string, dst *[]StationConfig) {
	v, ok := r.raw(key)
	if !ok {
		return
	}
	var out []StationConfig
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, StationConfig{Name: name})
		}
	}
	r.logger.Debug().Str("key", key).Int("count", len(out)).Str("source", "environment").Msg("using environment variable")
	*dst = out
}

func (r *envReader) apply(cfg *AppConfig) {
	r.str(EnvPrefix+"LOG_LEVEL", &cfg.LogLevel)
	r.str(EnvPrefix+"DATA_DIR", &cfg.DataDir)
	r.duration(EnvPrefix+"TICK_INTERVAL", &cfg.TickInterval)
	r.boolean(EnvPrefix+"SIMULATE", &cfg.Simulate)
	r.str(EnvPrefix+"SERVER_ADDRESS", &cfg.Server.Address)
	r.str(EnvPrefix+"PASSWORD", &cfg.Server.Password)
	r.str(EnvPrefix+"BRIDGE_ADDRESS", &cfg.Bridge.Address)
	r.stations(EnvPrefix+"STATIONS", &cfg.Stations)
	r.str(EnvPrefix+"PLANT_TYPE", &cfg.Plant.Type)
	r.float(EnvPrefix+"GROWTH_BOOST", &cfg.Plant.GrowthBoost)
	r.str(EnvPrefix+"CHAT_LOG_PATH", &cfg.Chat.LogPath)
	r.boolean(EnvPrefix+"API_ENABLED", &cfg.API.Enabled)
	r.str(EnvPrefix+"API_LISTEN", &cfg.API.ListenAddr)
	r.str(EnvPrefix+"API_TOKEN", &cfg.API.Token)
	r.boolean(EnvPrefix+"TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	r.str(EnvPrefix+"TELEMETRY_ENDPOINT", &cfg.Telemetry.Endpoint)
}
