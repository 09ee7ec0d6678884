// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/daemon"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/tui"
	"github.com/ManuGH/agribot/internal/version"
)

// logFileName receives logs while the dashboard owns the terminal.
const logFileName = "agribot.log"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:], os.Stdout, os.Stderr))
		case "stats":
			os.Exit(runStatsCLI(os.Args[2:], os.Stdout, os.Stderr))
		}
	}
	os.Exit(run(os.Args[1:]))
}

type runFlags struct {
	configPath  string
	simulate    bool
	tui         bool
	showVersion bool
}

func parseRunFlags(args []string, stderr io.Writer) (runFlags, error) {
	var f runFlags
	fs := flag.NewFlagSet("agribot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "path to config file (YAML)")
	fs.BoolVar(&f.simulate, "simulate", false, "run against the in-memory world")
	fs.BoolVar(&f.tui, "tui", false, "show the terminal dashboard")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return runFlags{}, err
	}
	if fs.NArg() > 0 {
		return runFlags{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return f, nil
}

func run(args []string) int {
	flags, err := parseRunFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if flags.showVersion {
		fmt.Println(version.String())
		return 0
	}

	// Safe defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "agribot",
		Version: version.Version,
	})
	logger := xglog.WithComponent("main")

	configPath := strings.TrimSpace(flags.configPath)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(configPath, version.Version)
	if flags.simulate {
		loader.WithLookup(forceSimulate(os.LookupEnv))
	}
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return 1
	}

	logCfg := xglog.Config{
		Level:   cfg.LogLevel,
		Service: "agribot",
		Version: version.Version,
	}
	if flags.tui {
		f, err := openLogFile(cfg.DataDir)
		if err != nil {
			logger.Error().Err(err).Msg("cannot open log file for dashboard mode")
			return 1
		}
		defer func() { _ = f.Close() }()
		logCfg.Output = f
	}
	xglog.Reconfigure(logCfg)
	logger = xglog.WithComponent("main")

	report := loader.Report()
	logger.Info().
		Str("event", "config.loaded").
		Str("source", string(report.Source)).
		Str("path", report.Path).
		Strs("stations", cfg.StationNames()).
		Bool("simulate", cfg.Simulate).
		Msg("configuration loaded")
	if report.Restored() {
		logger.Warn().
			Str("event", "config.restored").
			Strs("failures", report.Failures).
			Msg("config file was invalid, running from backup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	holder := config.NewHolder(cfg, loader, configPath)
	rt, err := daemon.Build(ctx, holder, daemon.Options{
		Version:       version.Version,
		ExternalTicks: flags.tui,
	})
	if err != nil {
		logger.Error().Err(err).Str("event", "daemon.build_failed").Msg("failed to assemble agent")
		return 1
	}

	if flags.tui {
		err = runWithDashboard(ctx, rt, cfg)
	} else {
		err = rt.App.Run(ctx)
	}
	if err != nil {
		logger.Error().Err(err).Str("event", "daemon.exit").Msg("agent stopped with error")
		return 1
	}
	logger.Info().Str("event", "daemon.exit").Msg("agent stopped")
	return 0
}

// runWithDashboard drives the tick loop from the dashboard while the
// daemon serves the API and background services.
func runWithDashboard(ctx context.Context, rt *daemon.Runtime, cfg config.AppConfig) error {
	g, gctx := errgroup.WithContext(ctx)
	appCtx, cancelApp := context.WithCancel(gctx)

	g.Go(func() error { return rt.App.Run(appCtx) })
	g.Go(func() error {
		defer cancelApp()
		err := tui.Run(gctx, rt.Runner, cfg.TickInterval, "agribot "+version.Version)
		rt.Workflow.Stop()
		return err
	})
	return g.Wait()
}

// forceSimulate overlays AGRIBOT_SIMULATE=true so reloads keep the flag.
func forceSimulate(lookup config.LookupFunc) config.LookupFunc {
	return func(key string) (string, bool) {
		if key == config.EnvPrefix+"SIMULATE" {
			return "true", true
		}
		return lookup(key)
	}
}

// resolveDefaultConfigPath returns <data dir>/config.yaml when it exists.
func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA_DIR"))
	if dataDir == "" {
		dataDir = config.Defaults().DataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func openLogFile(dataDir string) (*os.File, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dataDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}
