// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	xglog "github.com/ManuGH/agribot/internal/log"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath      string
	version         string
	lookup          LookupFunc
	store           *Store
	ConsumedEnvKeys map[string]struct{}
	report          LoadReport
}

// NewLoader creates a new configuration loader. An empty configPath means
// defaults plus environment only.
func NewLoader(configPath, version string) *Loader {
	l := &Loader{
		configPath:      configPath,
		version:         version,
		lookup:          os.LookupEnv,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
	if configPath != "" {
		l.store = NewStore(configPath, DefaultBackupCount)
	}
	return l
}

// WithLookup replaces the environment source. Used by tests.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	l.lookup = fn
	return l
}

// Report describes where the last Load took its file values from.
func (l *Loader) Report() LoadReport { return l.report }

// Load builds the configuration at startup. A broken file is replaced by the
// newest valid backup, or by defaults when no backup validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	if l.store != nil {
		fileCfg, report := l.store.Read()
		l.report = report
		cfg = fileCfg
	} else {
		l.report = LoadReport{Source: SourceDefaults}
	}
	return l.finish(cfg)
}

// LoadStrict is Load without recovery: any file problem is an error. The
// hot-reload path uses it so a bad edit never replaces a running config.
func (l *Loader) LoadStrict() (AppConfig, error) {
	cfg := Defaults()
	if l.configPath != "" {
		data, err := os.ReadFile(filepath.Clean(l.configPath))
		if err != nil {
			return AppConfig{}, fmt.Errorf("read file: %w", err)
		}
		if cfg, err = Parse(data); err != nil {
			return AppConfig{}, err
		}
	}
	return l.finish(cfg)
}

func (l *Loader) finish(cfg AppConfig) (AppConfig, error) {
	r := &envReader{
		lookup:   l.lookup,
		logger:   xglog.WithComponent("config"),
		consumed: l.ConsumedEnvKeys,
	}
	r.apply(&cfg)
	cfg.Version = l.version
	cfg.ConfigPath = l.configPath
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Parse decodes YAML strictly on top of Defaults. Unknown fields, multiple
// documents and trailing content are rejected.
func Parse(data []byte) (AppConfig, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return AppConfig{}, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return AppConfig{}, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return AppConfig{}, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return cfg, nil
}

// ParseAndValidate is Parse followed by Validate.
func ParseAndValidate(data []byte) (AppConfig, error) {
	cfg, err := Parse(data)
	if err != nil {
		return AppConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func Marshal(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
