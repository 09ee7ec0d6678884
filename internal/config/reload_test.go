// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolder_ReloadKeepsOldOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)
	loader := NewLoader(path, "dev").WithLookup(noEnv)
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	require.NoError(t, os.WriteFile(path, []byte("tick_interval: 1h\n"), 0o600))

	err = h.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"farm1", "farm2"}, h.Get().StationNames())
}

func TestHolder_ReloadNotifiesListeners(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)
	loader := NewLoader(path, "dev").WithLookup(noEnv)
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader, path)
	ch := make(chan AppConfig, 1)
	full := make(chan AppConfig)
	h.RegisterListener(ch)
	h.RegisterListener(full)

	require.NoError(t, os.WriteFile(path, []byte("stations:\n  - name: farm9\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	select {
	case got := <-ch:
		assert.Equal(t, []string{"farm9"}, got.StationNames())
	case <-time.After(time.Second):
		t.Fatal("listener not notified")
	}
	assert.Equal(t, []string{"farm9"}, h.Get().StationNames())
}

func TestHolder_WatcherDisabledWithoutPath(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "dev"), "")
	assert.NoError(t, h.StartWatcher(context.Background()))
	h.Stop()
}
