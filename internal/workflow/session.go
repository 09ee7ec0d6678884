// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"time"

	"github.com/ManuGH/agribot/internal/ports"
)

// Station is one configured location, cached for the session.
type Station struct {
	Name          string
	Index         int
	NeedsResource bool
}

// Flags are the session booleans preserved across crash recovery.
type Flags struct {
	WaterOnly           bool
	FirstStation        bool
	CrashReconnectPause bool
	EventPause          bool
	CanResumeAfterEvent bool
	ForceFullResupply   bool
}

// ResumePoint is captured when a session is interrupted by a disconnect.
type ResumePoint struct {
	State             State
	StationIndex      int
	StationsCompleted int
	Flags             Flags
	Refill            bool
}

// Transfer tracks a storage run in progress.
type Transfer struct {
	Home    string
	Deposit bool
	Want    int
	Moved   int
}

// Session is the workflow state. Only the tick thread mutates it.
type Session struct {
	State State

	ID   string
	Kind ports.SessionKind

	StationIndex      int
	TotalStations     int
	Stations          []Station
	StartedAt         time.Time
	StationsCompleted int
	Flags             Flags

	CycleStart time.Time
	PauseEnd   time.Time
	StartupEnd time.Time
	NextPause  time.Duration
	NextKind   ports.SessionKind
	Pause      PauseReason

	Error ErrorRecord

	// Refill is set when this session fills stations with the resource.
	Refill                bool
	WaterRefillsRemaining int
	Merged                int

	Resume   *ResumePoint
	Transfer Transfer

	// Tick bookkeeping.
	Wait            int
	Sub             int
	Retries         int
	Escalations     int
	NetworkAttempts int

	unitBaseline    int
	stationDeadline time.Time
	unitDeadline    time.Time
	refillDeadline  time.Time
}

// clone returns a deep copy safe to hand to other goroutines.
func (s Session) clone() Session {
	out := s
	out.Stations = append([]Station(nil), s.Stations...)
	if s.Resume != nil {
		r := *s.Resume
		out.Resume = &r
	}
	return out
}

// Current returns the station at the current index.
func (s *Session) Current() (Station, bool) {
	if s.StationIndex < 0 || s.StationIndex >= len(s.Stations) {
		return Station{}, false
	}
	return s.Stations[s.StationIndex], true
}

// Done reports whether every station has been visited.
func (s *Session) Done() bool {
	return s.StationIndex >= s.TotalStations
}

func (s *Session) snapshot() ResumePoint {
	return ResumePoint{
		State:             s.State,
		StationIndex:      s.StationIndex,
		StationsCompleted: s.StationsCompleted,
		Flags:             s.Flags,
		Refill:            s.Refill,
	}
}
