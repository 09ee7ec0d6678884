// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/stats"
)

func TestParseRunFlags(t *testing.T) {
	f, err := parseRunFlags([]string{"--config", "farm.yaml", "--simulate", "--tui"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "farm.yaml", f.configPath)
	assert.True(t, f.simulate)
	assert.True(t, f.tui)
	assert.False(t, f.showVersion)

	_, err = parseRunFlags([]string{"extra"}, io.Discard)
	assert.Error(t, err)

	_, err = parseRunFlags([]string{"--nope"}, io.Discard)
	assert.Error(t, err)
}

func TestForceSimulate(t *testing.T) {
	base := func(key string) (string, bool) {
		if key == config.EnvPrefix+"PASSWORD" {
			return "secret", true
		}
		return "", false
	}
	lookup := forceSimulate(base)

	v, ok := lookup(config.EnvPrefix + "SIMULATE")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	v, ok = lookup(config.EnvPrefix + "PASSWORD")
	assert.True(t, ok)
	assert.Equal(t, "secret", v)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	good := writeConfig(t, "stations:\n  - name: farm1\nsimulate: true\n")
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, runConfigCLI([]string{"validate", "--config", good}, &out, &errOut))
	assert.Contains(t, out.String(), "is valid")

	bad := writeConfig(t, "stations:\n  - name: farm1\nunknown_key: 1\n")
	out.Reset()
	errOut.Reset()
	assert.Equal(t, 1, runConfigCLI([]string{"validate", "--config", bad}, &out, &errOut))
	assert.Contains(t, errOut.String(), "Configuration error")
}

func TestConfigPrintRedactsSecrets(t *testing.T) {
	path := writeConfig(t, "server:\n  password: hunter2\napi:\n  token: abc\n")
	var out, errOut bytes.Buffer

	require.Equal(t, 0, runConfigCLI([]string{"print", "-f", path}, &out, &errOut), errOut.String())
	assert.NotContains(t, out.String(), "hunter2")
	assert.NotContains(t, out.String(), "token: abc")
	assert.Contains(t, out.String(), redacted)
}

func TestConfigUnknownSubcommand(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, runConfigCLI([]string{"dump"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "Unknown subcommand")
}

func TestStatsWithoutDatabase(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, runStatsCLI([]string{"--data-dir", t.TempDir()}, &out, &errOut))
	assert.Contains(t, out.String(), "No statistics recorded yet")
}

func TestStatsReport(t *testing.T) {
	dir := t.TempDir()
	store, err := stats.Open(context.Background(), dir, clock.Real{})
	require.NoError(t, err)
	require.NoError(t, store.RecordStationCompleted(ports.SessionHarvest))
	require.NoError(t, store.RecordStationCompleted(ports.SessionHarvest))
	require.NoError(t, store.RecordSessionCompleted(ports.SessionHarvest))
	require.NoError(t, store.Close())

	var out, errOut bytes.Buffer
	require.Equal(t, 0, runStatsCLI([]string{"--data-dir", dir, "--check", "--since", "1h"}, &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), ": ok")
	assert.Contains(t, out.String(), "stations: 2")
	assert.Contains(t, out.String(), "sessions: 1")
}
