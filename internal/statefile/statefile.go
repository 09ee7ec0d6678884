// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package statefile persists the small amount of agent state that must
// survive restarts: the last mode transition period and the cycle timestamps.
package statefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	xglog "github.com/ManuGH/agribot/internal/log"
)

// FileName is the default file name inside the data directory.
const FileName = "agent_state.json"

// State is the persisted agent state.
type State struct {
	LastTransitionPeriod  string    `json:"last_transition_period,omitempty"`
	LastRefillAt          time.Time `json:"last_refill_at,omitzero"`
	CycleStartAt          time.Time `json:"cycle_start_at,omitzero"`
	WaterRefillsRemaining int       `json:"water_refills_remaining"`
	UpdatedAt             time.Time `json:"updated_at,omitzero"`
}

// Store reads and writes State as JSON. Writes are atomic and durable.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns a store at path.
func New(path string) *Store {
	return &Store{path: filepath.Clean(path), now: time.Now}
}

// InDir returns a store for FileName inside dir.
func InDir(dir string) *Store {
	return New(filepath.Join(dir, FileName))
}

// Path returns the file path.
func (s *Store) Path() string { return s.path }

// Load returns the stored state. A missing file yields the zero State.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	return st, nil
}

// Save writes st, stamping UpdatedAt.
func (s *Store) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger := xglog.WithComponent("statefile")
			logger.Debug().Err(err).Msg("cleanup pending state file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}

// Update loads, applies fn and saves.
func (s *Store) Update(fn func(*State)) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	fn(&st)
	return s.Save(st)
}

// LoadMarker returns the last transition period key.
func (s *Store) LoadMarker() (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.LastTransitionPeriod, nil
}

// SaveMarker stores the last transition period key.
func (s *Store) SaveMarker(period string) error {
	return s.Update(func(st *State) { st.LastTransitionPeriod = period })
}
