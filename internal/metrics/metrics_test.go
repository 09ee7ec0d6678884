// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/agribot/internal/metrics"
)

func gather(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestSetWorkflowState_OneHot(t *testing.T) {
	all := []string{"IDLE", "PAUSED", "TELEPORTING"}
	metrics.SetWorkflowState("PAUSED", all)

	fam := gather(t, "agribot_workflow_state")
	active := 0
	for _, m := range fam.GetMetric() {
		if m.GetGauge().GetValue() == 1 {
			active++
			assert.Equal(t, "PAUSED", m.GetLabel()[0].GetValue())
		}
	}
	assert.Equal(t, 1, active)
}

func TestCounters(t *testing.T) {
	metrics.RecordStationCompleted("harvest")
	metrics.RecordStationCompleted("harvest")
	metrics.RecordSessionMerge()
	metrics.SetHeldUnits(12, 4)
	metrics.SetAdaptiveDelay(1500 * time.Millisecond)
	metrics.SetPauseRemaining(-time.Second)
	metrics.ObserveTick(20 * time.Microsecond)

	assert.GreaterOrEqual(t, counterValue(t, "agribot_stations_completed_total", "harvest"), 2.0)

	n, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "agribot_session_merges_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0.0, gaugeValue(t, "agribot_pause_remaining_seconds"))
	assert.Equal(t, 1.5, gaugeValue(t, "agribot_adaptive_delay_seconds"))
	assert.GreaterOrEqual(t, gather(t, "agribot_tick_duration_seconds").GetMetric()[0].GetHistogram().GetSampleCount(), uint64(1))
}

func TestCircuitBreakerState(t *testing.T) {
	metrics.SetCircuitBreakerState("stats", "open")
	fam := gather(t, "agribot_circuit_breaker_state")
	for _, m := range fam.GetMetric() {
		labels := map[string]string{}
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["component"] != "stats" {
			continue
		}
		want := 0.0
		if labels["state"] == "open" {
			want = 1.0
		}
		assert.Equal(t, want, m.GetGauge().GetValue(), labels["state"])
	}
}

func TestPromhttpExposure(t *testing.T) {
	metrics.RecordChatSignal("station_full")
	srv := httptest.NewServer(promhttp.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `agribot_chat_signals_total{signal="station_full"}`))
}

func counterValue(t *testing.T, name, label string) float64 {
	t.Helper()
	for _, m := range gather(t, name).GetMetric() {
		if m.GetLabel()[0].GetValue() == label {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("series %s{%s} not found", name, label)
	return 0
}

func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	fam := gather(t, name)
	require.Len(t, fam.GetMetric(), 1)
	return fam.GetMetric()[0].GetGauge().GetValue()
}
