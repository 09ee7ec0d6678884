// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/api"
	"github.com/ManuGH/agribot/internal/bridge"
	"github.com/ManuGH/agribot/internal/chatlog"
	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/health"
	"github.com/ManuGH/agribot/internal/host"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/signals"
	"github.com/ManuGH/agribot/internal/sim"
	"github.com/ManuGH/agribot/internal/statefile"
	"github.com/ManuGH/agribot/internal/stats"
	"github.com/ManuGH/agribot/internal/telemetry"
	"github.com/ManuGH/agribot/internal/workflow"
)

// minTickAge is the floor for the tick loop liveness threshold.
const minTickAge = 5 * time.Second

// Options select how the runtime is assembled.
type Options struct {
	Version string
	Clock   clock.Clock
	// ExternalTicks leaves stepping the runner to the caller, as the
	// terminal UI does. No tick service is started.
	ExternalTicks bool
	// NoAutoStart skips submitting a start command once services run.
	NoAutoStart bool
}

// Runtime is the assembled agent and its surroundings.
type Runtime struct {
	Config   config.AppConfig
	Workflow *workflow.Workflow
	Runner   *host.Runner
	Health   *health.Manager
	Stats    *stats.Store
	// Sim is the simulated world, nil unless the configuration simulates.
	Sim     *sim.World
	Manager Manager
	App     *App
}

type environment interface {
	ports.World
	ports.Chat
	ports.Session
}

// Build wires the agent from the holder's current configuration. The
// workflow reads holder.Get at every session start so reloads apply there.
func Build(ctx context.Context, holder *config.Holder, opts Options) (*Runtime, error) {
	if holder == nil {
		return nil, errors.New("config holder is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(cfg); err != nil {
		return nil, fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry initialization failed, continuing without tracing")
		tp, _ = telemetry.NewProvider(ctx, telemetry.Config{})
	}

	statsStore, err := stats.Open(ctx, cfg.DataDir, opts.Clock)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("open stats: %w", err)
	}

	rt := &Runtime{Config: cfg, Stats: statsStore}
	board := signals.NewBoard(0)

	var env environment
	var services []Service
	if cfg.Simulate {
		rt.Sim = sim.New(sim.FromAppConfig(cfg), opts.Clock, board)
		env = rt.Sim
		logger.Info().Strs(xglog.FieldStations, cfg.StationNames()).Msg("running against simulated world")
	} else {
		client := bridge.New(bridge.Options{
			Address:           cfg.Bridge.Address,
			DialTimeout:       cfg.Bridge.DialTimeout,
			OutboxSize:        cfg.Bridge.OutboxSize,
			CommandsPerSecond: cfg.Chat.CommandsPerSecond,
			CommandBurst:      cfg.Chat.CommandBurst,
			StatusPrefix:      cfg.Chat.StatusPrefix,
			Redial:            cfg.Recovery.Backoff(),
		}, board)
		env = client
		services = append(services, Service{Name: "bridge", Run: client.Run})

		if cfg.Chat.LogPath != "" {
			tailer, err := chatlog.New(chatlog.Options{
				Path:     cfg.Chat.LogPath,
				Encoding: cfg.Chat.LogEncoding,
				ChatOnly: true,
			}, board)
			if err != nil {
				_ = statsStore.Close()
				_ = tp.Shutdown(ctx)
				return nil, fmt.Errorf("chat log: %w", err)
			}
			services = append(services, Service{Name: "chatlog", Run: tailer.Run})
		}
	}

	rt.Workflow = workflow.New(workflow.Options{
		World:   env,
		Chat:    env,
		Session: env,
		Stats:   statsStore,
		Store:   statefile.InDir(cfg.DataDir),
		Clock:   opts.Clock,
		Config:  holder.Get,
	})
	rt.Runner = host.New(rt.Workflow, cfg.TickInterval, host.WithClock(opts.Clock))
	if !opts.ExternalTicks {
		services = append([]Service{{Name: "tick", Run: rt.Runner.Run}}, services...)
	}
	if !opts.NoAutoStart {
		services = append(services, Service{Name: "autostart", Run: autoStart(rt.Runner, logger)})
	}

	rt.Health = health.NewManager(opts.Version, opts.Clock)
	rt.Health.Register(health.NewTickChecker(rt.Runner.LastTick, max(20*cfg.TickInterval, minTickAge), opts.Clock))
	rt.Health.Register(health.NewWorkflowChecker(func() (string, string, bool) {
		st := rt.Runner.Status()
		return st.State, st.ErrorKind, st.ErrorRecoverable
	}))
	if cfg.Chat.LogPath != "" && !cfg.Simulate {
		rt.Health.Register(health.NewFileChecker("chat_log", cfg.Chat.LogPath))
	}

	apiCfg := api.Config{
		Token:     cfg.API.Token,
		RateLimit: cfg.API.RateLimit,
	}
	if tp.Enabled() {
		apiCfg.TracingService = "agribot"
	}
	server := api.New(apiCfg, rt.Runner, rt.Health, statsStore)

	mgr, err := NewManager(cfg.API, Deps{
		Logger:     logger,
		Config:     cfg,
		APIHandler: server.Handler(),
		Services:   services,
	})
	if err != nil {
		_ = statsStore.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("stats", func(context.Context) error { return statsStore.Close() })

	rt.Manager = mgr
	rt.App = NewApp(logger, mgr, holder)
	return rt, nil
}

// autoStart submits the start command once the tick loop picks it up.
// Start failures are reported, not fatal: the API can retry.
func autoStart(r *host.Runner, logger zerolog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		err := r.Submit(ctx, host.CommandStart)
		switch {
		case err == nil:
			logger.Info().Str(xglog.FieldEvent, "agent.autostart").Msg("agent started")
		case errors.Is(err, workflow.ErrMaintenanceWindow):
			logger.Info().Str(xglog.FieldEvent, "agent.autostart").Msg("agent paused for maintenance window")
		case errors.Is(err, context.Canceled), errors.Is(err, host.ErrStopped):
		default:
			logger.Error().Err(err).Str(xglog.FieldEvent, "agent.autostart_failed").Msg("agent did not start")
		}
		return nil
	}
}
