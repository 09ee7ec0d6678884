// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/schedule"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const sampleYAML = `
log_level: debug
tick_interval: 100ms
server:
  address: play.example.net
  password: hunter2
stations:
  - name: farm1
  - name: farm2
    needs_resource: false
plant:
  type: Tomates
schedule:
  deposit: "07:00-11:00"
`

func TestDefaultsValidate(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoad_FileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := NewLoader(path, "1.2.3").WithLookup(noEnv).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, []string{"farm1", "farm2"}, cfg.StationNames())
	assert.True(t, cfg.Stations[0].RequiresResource())
	assert.False(t, cfg.Stations[1].RequiresResource())
	assert.Equal(t, schedule.MustParseWindow("07:00-11:00"), cfg.Schedule.Deposit)
	assert.Equal(t, Defaults().Schedule.Retrieve, cfg.Schedule.Retrieve)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, 16, cfg.Resource.FullCount)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)

	l := NewLoader(path, "dev").WithLookup(envMap(map[string]string{
		"AGRIBOT_STATIONS":      "a, b ,,c",
		"AGRIBOT_PASSWORD":      "s3cret",
		"AGRIBOT_TICK_INTERVAL": "20ms",
		"AGRIBOT_SIMULATE":      "yes",
		"AGRIBOT_GROWTH_BOOST":  "not-a-number",
	}))
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, cfg.StationNames())
	assert.Equal(t, "s3cret", cfg.Server.Password)
	assert.Equal(t, 20*time.Millisecond, cfg.TickInterval)
	assert.True(t, cfg.Simulate)
	assert.Zero(t, cfg.Plant.GrowthBoost)
	assert.Contains(t, l.ConsumedEnvKeys, "AGRIBOT_STATIONS")
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := NewLoader("", "dev").WithLookup(noEnv).Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Stations)
	assert.Equal(t, Defaults().Schedule, cfg.Schedule)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("stations: []\nbogus: 1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestParse_RejectsMultipleDocuments(t *testing.T) {
	_, err := Parse([]byte("log_level: info\n---\nlog_level: debug\n"))
	require.Error(t, err)
}

func TestParse_BadWindow(t *testing.T) {
	_, err := Parse([]byte("schedule:\n  deposit: \"6h-7h\"\n"))
	require.Error(t, err)
}

func TestLoadStrict_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "tick_interval: 10s\n")
	_, err := NewLoader(path, "dev").WithLookup(noEnv).LoadStrict()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Stations = []StationConfig{{Name: "farm1"}}
	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "05:50-06:30")

	back, err := ParseAndValidate(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.Schedule, back.Schedule)
	assert.Equal(t, cfg.StationNames(), back.StationNames())
}

func TestTicks(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 0, cfg.Ticks(0))
	assert.Equal(t, 1, cfg.Ticks(time.Millisecond))
	assert.Equal(t, 20, cfg.Ticks(time.Second))
	assert.Equal(t, 21, cfg.Ticks(time.Second+time.Millisecond))
}

func TestResolveGrowthTime(t *testing.T) {
	// 60 min stem plus two 20 min fruits.
	assert.Equal(t, 100*time.Minute, PlantConfig{Type: "Tomates"}.ResolveGrowthTime())
	assert.Equal(t, time.Hour, PlantConfig{Type: "Tomates", GrowthTime: time.Hour}.ResolveGrowthTime())
	assert.Equal(t, DefaultGrowthTime, PlantConfig{}.ResolveGrowthTime())
}

func TestClone_IsDeep(t *testing.T) {
	no := false
	cfg := Defaults()
	cfg.Stations = []StationConfig{{Name: "a", NeedsResource: &no}}
	c := cfg.Clone()
	c.Stations[0].Name = "b"
	*c.Stations[0].NeedsResource = true
	assert.Equal(t, "a", cfg.Stations[0].Name)
	assert.False(t, *cfg.Stations[0].NeedsResource)
}
