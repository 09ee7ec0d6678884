// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/agribot/internal/log"
)

// DefaultBackupCount is how many known-good copies are kept.
const DefaultBackupCount = 3

// Source tells where a loaded configuration came from.
type Source string

const (
	SourceFile     Source = "file"
	SourceBackup   Source = "backup"
	SourceDefaults Source = "defaults"
)

// LoadReport describes the outcome of Store.Read.
type LoadReport struct {
	Source   Source
	Path     string
	Failures []string
}

// Restored reports whether a backup replaced the primary file.
func (r LoadReport) Restored() bool { return r.Source == SourceBackup }

// Store persists the configuration file with rotating known-good backups
// named <path>.bak.1 (newest) to <path>.bak.N.
type Store struct {
	path   string
	keep   int
	logger zerolog.Logger
}

// NewStore returns a store for path keeping keep backups.
func NewStore(path string, keep int) *Store {
	if keep < 1 {
		keep = 1
	}
	return &Store{
		path:   filepath.Clean(path),
		keep:   keep,
		logger: xglog.WithComponent("config"),
	}
}

// Path returns the primary file path.
func (s *Store) Path() string { return s.path }

// BackupPath returns the path of backup n (1 is newest).
func (s *Store) BackupPath(n int) string {
	return fmt.Sprintf("%s.bak.%d", s.path, n)
}

// Read returns the primary file if it parses and validates, otherwise the
// newest valid backup (which is then written back as the primary file),
// otherwise defaults. Read never fails: problems are listed in the report.
func (s *Store) Read() (AppConfig, LoadReport) {
	report := LoadReport{Source: SourceDefaults}

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		cfg, perr := ParseAndValidate(data)
		if perr == nil {
			if serr := s.snapshot(data); serr != nil {
				s.logger.Warn().Err(serr).Str("event", "config.backup_failed").Msg("could not refresh known-good backup")
			}
			report.Source, report.Path = SourceFile, s.path
			return cfg, report
		}
		report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", s.path, perr))
		s.logger.Error().Err(perr).Str("event", "config.invalid").Str("path", s.path).Msg("config file is invalid, trying backups")
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info().Str("event", "config.missing").Str("path", s.path).Msg("config file not found")
	default:
		report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", s.path, err))
	}

	for n := 1; n <= s.keep; n++ {
		bp := s.BackupPath(n)
		bdata, err := os.ReadFile(bp)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", bp, err))
			}
			continue
		}
		cfg, perr := ParseAndValidate(bdata)
		if perr != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", bp, perr))
			continue
		}
		if werr := s.restore(bdata); werr != nil {
			s.logger.Warn().Err(werr).Str("event", "config.restore_write_failed").Msg("backup loaded but primary file not rewritten")
		}
		s.logger.Warn().
			Str("event", "config.restored").
			Str("path", bp).
			Msg("restored configuration from known-good backup")
		report.Source, report.Path = SourceBackup, bp
		return cfg, report
	}

	if len(report.Failures) > 0 {
		s.logger.Error().
			Strs("failures", report.Failures).
			Str("event", "config.defaults").
			Msg("no valid config or backup, using defaults")
	}
	return Defaults(), report
}

// restore keeps the broken primary as <path>.invalid and writes data in its place.
func (s *Store) restore(data []byte) error {
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.path+".invalid"); err != nil {
			return fmt.Errorf("keep invalid config: %w", err)
		}
	}
	return renameio.WriteFile(s.path, data, 0o600)
}

// Save validates cfg, writes it atomically and records it as the newest
// known-good backup.
func (s *Store) Save(cfg AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	s.logger.Info().Str("event", "config.saved").Str("path", s.path).Msg("configuration saved")
	return s.snapshot(data)
}

// snapshot rotates backups and stores data as backup 1, unless backup 1
// already holds the same bytes.
func (s *Store) snapshot(data []byte) error {
	newest, err := os.ReadFile(s.BackupPath(1))
	if err == nil && bytes.Equal(newest, data) {
		return nil
	}
	if err := os.Remove(s.BackupPath(s.keep)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("drop oldest backup: %w", err)
	}
	for n := s.keep - 1; n >= 1; n-- {
		if err := os.Rename(s.BackupPath(n), s.BackupPath(n+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rotate backup %d: %w", n, err)
		}
	}
	if err := renameio.WriteFile(s.BackupPath(1), data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}
