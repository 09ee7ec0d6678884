// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stats

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/ports"
)

func openStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), clk)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndReport(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC))
	s := openStore(t, clk)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordStationCompleted(ports.SessionHarvest))
	}
	require.NoError(t, s.RecordSessionCompleted(ports.SessionHarvest))
	clk.Advance(time.Hour)
	require.NoError(t, s.RecordStationCompleted(ports.SessionWaterOnly))
	require.NoError(t, s.RecordSessionCompleted(ports.SessionWaterOnly))

	r, err := s.Report(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, r.Stations)
	assert.Equal(t, 2, r.Sessions)
	require.Len(t, r.Totals, 4)
	assert.Equal(t, Total{Scope: "session", Kind: "harvest", Count: 1, Last: clk.Now().Add(-time.Hour)}, r.Totals[0])
	assert.Equal(t, "station", r.Totals[2].Scope)
	assert.Equal(t, "harvest", r.Totals[2].Kind)
	assert.Equal(t, 3, r.Totals[2].Count)
}

func TestStore_ReportSince(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC))
	s := openStore(t, clk)

	require.NoError(t, s.RecordSessionCompleted(ports.SessionHarvest))
	clk.Advance(24 * time.Hour)
	require.NoError(t, s.RecordSessionCompleted(ports.SessionWaterOnly))

	r, err := s.Report(context.Background(), clk.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Sessions)
	require.Len(t, r.Totals, 1)
	assert.Equal(t, "water", r.Totals[0].Kind)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(ctx, dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.RecordSessionCompleted(ports.SessionRecovery))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dir, nil)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.Report(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Sessions)
}

func TestReport_WriteText(t *testing.T) {
	r := Report{Stations: 3, Sessions: 1, Totals: []Total{
		{Scope: "station", Kind: "harvest", Count: 3, Last: time.Date(2025, 3, 14, 2, 0, 0, 0, time.UTC)},
	}}
	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "stations: 3")
	assert.Contains(t, buf.String(), "2025-03-14T02:00:00Z")
}

func TestStore_ClosedReturnsError(t *testing.T) {
	s, err := Open(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Error(t, s.RecordStationCompleted(ports.SessionHarvest))
}
