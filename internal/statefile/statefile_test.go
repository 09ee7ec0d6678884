// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package statefile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsZero(t *testing.T) {
	st, err := InDir(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := InDir(filepath.Join(dir, "nested"))
	fixed := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	in := State{
		LastTransitionPeriod:  "2025-03-14@06:30",
		LastRefillAt:          fixed.Add(-time.Hour),
		CycleStartAt:          fixed.Add(-2 * time.Hour),
		WaterRefillsRemaining: 2,
	}
	require.NoError(t, s.Save(in))

	out, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, in.LastTransitionPeriod, out.LastTransitionPeriod)
	assert.True(t, in.LastRefillAt.Equal(out.LastRefillAt))
	assert.True(t, in.CycleStartAt.Equal(out.CycleStartAt))
	assert.Equal(t, 2, out.WaterRefillsRemaining)
	assert.True(t, fixed.Equal(out.UpdatedAt))
}

func TestUpdate(t *testing.T) {
	s := InDir(t.TempDir())
	require.NoError(t, s.Update(func(st *State) { st.WaterRefillsRemaining = 3 }))
	require.NoError(t, s.Update(func(st *State) { st.WaterRefillsRemaining-- }))
	st, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, st.WaterRefillsRemaining)
}

func TestLoad_CorruptFile(t *testing.T) {
	s := InDir(t.TempDir())
	require.NoError(t, os.WriteFile(s.Path(), []byte("{"), 0o600))
	_, err := s.Load()
	require.Error(t, err)
}
