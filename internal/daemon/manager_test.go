// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/log"
)

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		Enabled:         true,
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}
}

func testDeps(services ...Service) Deps {
	return Deps{
		Logger: log.WithComponent("test"),
		Config: config.AppConfig{API: config.APIConfig{Enabled: true}},
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}),
		Services: services,
	}
}

func waitForAddr(t *testing.T, m *manager) string {
	t.Helper()
	var addr string
	require.Eventually(t, func() bool {
		addr = m.addr()
		return addr != ""
	}, 2*time.Second, 10*time.Millisecond)
	return addr
}

func TestNewManager_MissingAPIHandler(t *testing.T) {
	deps := testDeps()
	deps.APIHandler = nil

	_, err := NewManager(testAPIConfig(), deps)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingAPIHandler)
}

func TestNewManager_APIDisabledNeedsNoHandler(t *testing.T) {
	deps := testDeps()
	deps.APIHandler = nil
	deps.Config.API.Enabled = false

	_, err := NewManager(config.APIConfig{}, deps)
	assert.NoError(t, err)
}

func TestNewManager_ServiceWithoutRun(t *testing.T) {
	_, err := NewManager(testAPIConfig(), testDeps(Service{Name: "broken"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestManager_StartStop_OK(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var ran sync.WaitGroup
	ran.Add(1)
	svc := Service{Name: "loop", Run: func(ctx context.Context) error {
		ran.Done()
		<-ctx.Done()
		return ctx.Err()
	}}

	mgr, err := NewManager(testAPIConfig(), testDeps(svc))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- mgr.Start(ctx) }()

	addr := waitForAddr(t, mgr.(*manager))
	ran.Wait()

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestManager_ServiceFailureStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("link lost")
	stopped := make(chan struct{})
	failing := Service{Name: "bridge", Run: func(context.Context) error { return boom }}
	waiting := Service{Name: "tick", Run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}}

	mgr, err := NewManager(testAPIConfig(), testDeps(waiting, failing))
	require.NoError(t, err)

	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service bridge")

	select {
	case <-stopped:
	default:
		t.Fatal("sibling service was not stopped")
	}
}

func TestManager_ShutdownHooksRunLIFO(t *testing.T) {
	deps := testDeps()
	deps.Config.API.Enabled = false
	mgr, err := NewManager(config.APIConfig{ShutdownTimeout: time.Second}, deps)
	require.NoError(t, err)

	var order []string
	for _, name := range []string{"telemetry", "stats", "bridge"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, mgr.Start(ctx))
	assert.Equal(t, []string{"bridge", "stats", "telemetry"}, order)
}

func TestManager_HookErrorsAreJoined(t *testing.T) {
	deps := testDeps()
	deps.Config.API.Enabled = false
	mgr, err := NewManager(config.APIConfig{}, deps)
	require.NoError(t, err)

	mgr.RegisterShutdownHook("stats", func(context.Context) error { return errors.New("close failed") })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = mgr.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook stats")
	assert.Contains(t, err.Error(), "close failed")

	// A second shutdown is a no-op.
	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(testAPIConfig(), testDeps())
	require.NoError(t, err)

	err = mgr.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestManager_StartTwice(t *testing.T) {
	deps := testDeps()
	deps.Config.API.Enabled = false
	mgr, err := NewManager(config.APIConfig{}, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, mgr.Start(ctx))
	assert.ErrorIs(t, mgr.Start(ctx), ErrAlreadyStarted)
}

func TestManager_ListenFailure(t *testing.T) {
	mgr, err := NewManager(config.APIConfig{Enabled: true, ListenAddr: "256.0.0.1:99999"}, testDeps())
	require.NoError(t, err)

	err = mgr.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start API server")
}

func TestManager_ShutdownTimesOutOnStuckService(t *testing.T) {
	release := make(chan struct{})
	stuck := Service{Name: "stuck", Run: func(context.Context) error {
		<-release
		return nil
	}}
	deps := testDeps(stuck)
	deps.Config.API.Enabled = false
	mgr, err := NewManager(config.APIConfig{ShutdownTimeout: 50 * time.Millisecond}, deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = mgr.Start(ctx)
	close(release)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
