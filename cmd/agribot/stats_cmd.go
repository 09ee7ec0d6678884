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
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/persistence/sqlite"
	"github.com/ManuGH/agribot/internal/stats"
	"github.com/ManuGH/agribot/internal/version"
)

func runStatsCLI(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("agribot stats", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var dataDir, configPath string
	var since time.Duration
	var check bool
	flags.StringVar(&dataDir, "data-dir", "", "data directory holding "+stats.FileName)
	flags.StringVar(&configPath, "config", "", "read the data directory from this config file")
	flags.DurationVar(&since, "since", 0, "only count completions newer than this (e.g. 24h)")
	flags.BoolVar(&check, "check", false, "run an integrity check on the stats database")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		path := strings.TrimSpace(configPath)
		if path == "" {
			path = resolveDefaultConfigPath()
		}
		cfg, err := config.NewLoader(path, version.Version).LoadStrict()
		if err != nil {
			fmt.Fprintf(stderr, "Configuration error: %v\n", err)
			return 1
		}
		dataDir = cfg.DataDir
	}

	dbPath := stats.Path(dataDir)
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stdout, "No statistics recorded yet (%s)\n", dbPath)
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if check {
		problems, err := sqlite.VerifyIntegrity(ctx, dbPath, sqlite.CheckQuick)
		if err != nil {
			fmt.Fprintf(stderr, "Integrity check failed: %v\n", err)
			return 1
		}
		if len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(stderr, p)
			}
			return 1
		}
		fmt.Fprintf(stdout, "%s: ok\n", dbPath)
	}

	store, err := stats.Open(ctx, dataDir, clock.Real{})
	if err != nil {
		fmt.Fprintf(stderr, "Cannot open statistics: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}
	report, err := store.Report(ctx, from)
	if err != nil {
		fmt.Fprintf(stderr, "Cannot read statistics: %v\n", err)
		return 1
	}
	if err := report.WriteText(stdout); err != nil {
		return 1
	}
	return 0
}
