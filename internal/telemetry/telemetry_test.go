// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ManuGH/agribot/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: ServiceName, ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  ServiceName,
		ExporterType: "http",
		Endpoint:     "127.0.0.1:1",
		SamplingRate: 0.5,
	})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	_ = p.Shutdown(context.Background())
	otel.SetTracerProvider(noop.NewTracerProvider())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", Sampler(1).Description())
	assert.Equal(t, "AlwaysOffSampler", Sampler(0).Description())
	assert.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Version = "1.2.3"
	cfg.Telemetry.Enabled = true

	got := FromAppConfig(cfg)
	assert.Equal(t, Config{
		Enabled:        true,
		ServiceName:    "agribot",
		ServiceVersion: "1.2.3",
		ExporterType:   "grpc",
		Endpoint:       "localhost:4317",
		SamplingRate:   1.0,
	}, got)
}

func TestSessionAttributes(t *testing.T) {
	attrs := SessionAttributes("harvest", 3, true, false)
	require.Len(t, attrs, 4)
	assert.Equal(t, "harvest", attrs[0].Value.AsString())
	assert.Equal(t, int64(3), attrs[1].Value.AsInt64())

	assert.Len(t, SessionEndAttributes(2, ""), 1)
	end := SessionEndAttributes(2, "NetworkError")
	require.Len(t, end, 2)
	assert.Equal(t, ErrorKindKey, string(end[1].Key))
}
