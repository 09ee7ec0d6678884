// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/version"
)

const redacted = "***"

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "print":
		return runConfigPrint(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  agribot config validate [--config config.yaml]")
	fmt.Fprintln(w, "  agribot config print [--config config.yaml]")
}

func parseConfigFlags(name string, args []string, stderr io.Writer) (string, error) {
	fs := flag.NewFlagSet("agribot config "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "config", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return "", err
	}

	path := strings.TrimSpace(file)
	if path == "" {
		path = resolveDefaultConfigPath()
	}
	return path, nil
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	path, err := parseConfigFlags("validate", args, stderr)
	if err != nil {
		return 2
	}
	if path == "" {
		fmt.Fprintln(stderr, "Error: --config is required (no config.yaml found in the data directory)")
		return 2
	}

	if _, err := config.NewLoader(path, version.Version).LoadStrict(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// runConfigPrint prints the effective configuration (defaults, file and
// environment) with secrets redacted. Without a file it prints defaults.
func runConfigPrint(args []string, stdout, stderr io.Writer) int {
	path, err := parseConfigFlags("print", args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := config.NewLoader(path, version.Version).LoadStrict()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}
	redactSecrets(&cfg)

	out, err := config.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
		return 1
	}
	_, _ = stdout.Write(out)
	return 0
}

func redactSecrets(cfg *config.AppConfig) {
	if cfg.Server.Password != "" {
		cfg.Server.Password = redacted
	}
	if cfg.API.Token != "" {
		cfg.API.Token = redacted
	}
}
