// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/config"
	xglog "github.com/ManuGH/agribot/internal/log"
)

// PerformStartupChecks validates the environment before the agent starts.
// The data directory is created when missing.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")

	if err := checkDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	checkChatLog(logger, cfg)

	logger.Info().Str(xglog.FieldEvent, "startup.checked").Msg("startup checks passed")
	return nil
}

func checkDataDir(path string) error {
	if path == "" {
		return fmt.Errorf("data_dir is empty")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	probe := filepath.Join(path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(probe)
	return nil
}

// checkChatLog only warns: the simulated world needs no log file.
func checkChatLog(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.Simulate || cfg.Chat.LogPath == "" {
		return
	}
	if _, err := os.Stat(cfg.Chat.LogPath); err != nil {
		logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "startup.chat_log_missing").
			Str(xglog.FieldPath, cfg.Chat.LogPath).
			Msg("chat log not readable yet, signals will start once it appears")
	}
}
