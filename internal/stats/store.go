// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stats persists completed stations and sessions in SQLite.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/persistence/sqlite"
	"github.com/ManuGH/agribot/internal/ports"
)

// FileName is the database file inside the data directory.
const FileName = "stats.sqlite"

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS completions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scope TEXT NOT NULL,
	kind TEXT NOT NULL,
	recorded_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_completions_scope_kind ON completions(scope, kind);
CREATE INDEX IF NOT EXISTS idx_completions_recorded ON completions(recorded_at_ms);
`

const (
	scopeStation = "station"
	scopeSession = "session"
)

// writeTimeout bounds a single insert; the caller is the tick thread.
const writeTimeout = 250 * time.Millisecond

// Store implements ports.Stats.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

var _ ports.Stats = (*Store)(nil)

// Open creates or migrates the stats database in dataDir.
func Open(ctx context.Context, dataDir string, clk clock.Clock) (*Store, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	db, err := sqlite.Open(ctx, filepath.Join(dataDir, FileName), sqlite.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, schemaVersion, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("stats: migration failed: %w", err)
	}
	return &Store{db: db, clock: clk}, nil
}

// Path returns the database path for dataDir.
func Path(dataDir string) string { return filepath.Join(dataDir, FileName) }

func (s *Store) record(scope string, kind ports.SessionKind) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (scope, kind, recorded_at_ms) VALUES (?, ?, ?)`,
		scope, string(kind), s.clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("stats: record %s/%s: %w", scope, kind, err)
	}
	return nil
}

// RecordStationCompleted stores one finished station.
func (s *Store) RecordStationCompleted(kind ports.SessionKind) error {
	return s.record(scopeStation, kind)
}

// RecordSessionCompleted stores one finished session.
func (s *Store) RecordSessionCompleted(kind ports.SessionKind) error {
	return s.record(scopeSession, kind)
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }
