// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon owns the process lifecycle: the control API server, the
// long-running agent loops, config reload wiring and ordered shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/config"
	xglog "github.com/ManuGH/agribot/internal/log"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the daemon lifecycle: starting servers, handling shutdown.
type Manager interface {
	// Start starts the API server and services and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown stops the API server, then the services, then runs the hooks
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type manager struct {
	apiCfg config.APIConfig
	deps   Deps

	apiServer *http.Server
	listener  net.Listener

	cancelServices context.CancelFunc
	services       sync.WaitGroup

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given configuration and dependencies.
func NewManager(apiCfg config.APIConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if apiCfg.ShutdownTimeout <= 0 {
		apiCfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return &manager{
		apiCfg: apiCfg,
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
	}, nil
}

// Start starts the API server and every service, then blocks until ctx is
// cancelled or one of them fails.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Bool("api_enabled", m.apiCfg.Enabled).
		Str("listen", m.apiCfg.ListenAddr).
		Int("services", len(m.deps.Services)).
		Dur("shutdown_timeout", m.apiCfg.ShutdownTimeout).
		Msg("Starting daemon manager")

	errChan := make(chan error, len(m.deps.Services)+1)

	if m.apiCfg.Enabled {
		if err := m.startAPIServer(errChan); err != nil {
			m.mu.Lock()
			m.stopping = true
			m.mu.Unlock()
			return fmt.Errorf("failed to start API server: %w", err)
		}
	}

	m.startServices(ctx, errChan)

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Msg("Component failed, initiating shutdown")
		if shutdownErr := m.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			return fmt.Errorf("component error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Msg("Shutdown signal received")
		return m.Shutdown(context.WithoutCancel(ctx))
	}
}

func (m *manager) startAPIServer(errChan chan<- error) error {
	ln, err := net.Listen("tcp", m.apiCfg.ListenAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           m.deps.APIHandler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	m.mu.Lock()
	m.listener = ln
	m.apiServer = srv
	m.mu.Unlock()

	go func() {
		m.logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("API server listening (HTTP)")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "api.server.failed").
				Msg("API server failed")
			errChan <- fmt.Errorf("API server: %w", err)
		}
	}()
	return nil
}

func (m *manager) startServices(ctx context.Context, errChan chan<- error) {
	svcCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelServices = cancel
	m.mu.Unlock()

	for _, svc := range m.deps.Services {
		m.services.Add(1)
		go func() {
			defer m.services.Done()
			m.logger.Debug().Str("service", svc.Name).Msg("Service starting")
			err := svc.Run(svcCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error().
					Err(err).
					Str("service", svc.Name).
					Str(xglog.FieldEvent, "service.failed").
					Msg("Service failed")
				errChan <- fmt.Errorf("service %s: %w", svc.Name, err)
				return
			}
			m.logger.Debug().Str("service", svc.Name).Msg("Service stopped")
		}()
	}
}

// addr returns the bound API address, or "" before the server listens.
func (m *manager) addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	srv := m.apiServer
	cancel := m.cancelServices
	hooks := append([]namedHook(nil), m.shutdownHooks...)
	m.mu.Unlock()

	m.logger.Info().Msg("Shutting down daemon manager")

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), m.apiCfg.ShutdownTimeout)
	defer done()

	var errs []error

	if srv != nil {
		m.logger.Debug().Msg("Shutting down API server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}

	if cancel != nil {
		cancel()
	}
	if err := m.waitServices(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	m.logger.Debug().Int("hooks", len(hooks)).Msg("Executing shutdown hooks")
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		hookStart := time.Now()
		if err := hook.hook(shutdownCtx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", hook.name).
				Dur("duration", time.Since(hookStart)).
				Msg("Shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", hook.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", hook.name).
			Dur("duration", time.Since(hookStart)).
			Msg("Shutdown hook completed")
	}

	if len(errs) > 0 {
		m.logger.Error().
			Int("error_count", len(errs)).
			Msg("Shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Msg("Daemon manager stopped cleanly")
	return nil
}

func (m *manager) waitServices(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		m.services.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("services did not stop: %w", ctx.Err())
	}
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHooks = append(m.shutdownHooks, namedHook{
		name: name,
		hook: hook,
	})
	m.logger.Debug().Str("hook", name).Msg("Registered shutdown hook")
}
