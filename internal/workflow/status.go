// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"fmt"
	"time"
)

// Status is a snapshot for hosts. It holds no references into the workflow.
type Status struct {
	State             string        `json:"state"`
	SessionID         string        `json:"session_id,omitempty"`
	SessionKind       string        `json:"session_kind,omitempty"`
	Station           string        `json:"station,omitempty"`
	StationIndex      int           `json:"station_index"`
	TotalStations     int           `json:"total_stations"`
	StationsCompleted int           `json:"stations_completed"`
	MergedSessions    int           `json:"merged_sessions"`
	Refill            bool          `json:"refill"`
	Connection        string        `json:"connection"`
	PauseReason       string        `json:"pause_reason,omitempty"`
	PauseRemaining    time.Duration `json:"pause_remaining"`
	Countdown         string        `json:"countdown,omitempty"`
	NextKind          string        `json:"next_kind,omitempty"`
	ErrorKind         string        `json:"error_kind,omitempty"`
	Error             string        `json:"error,omitempty"`
	ErrorRecoverable  bool          `json:"error_recoverable,omitempty"`
	Mode              string        `json:"mode"`
	FullUnits         int           `json:"full_units"`
	EmptyUnits        int           `json:"empty_units"`
	AdaptiveDelay     time.Duration `json:"adaptive_delay"`
	RefillsRemaining  int           `json:"water_refills_remaining"`
	At                time.Time     `json:"at"`
}

// Status returns a snapshot of the workflow.
func (w *Workflow) Status() Status {
	now := w.clock.Now()
	res := w.res.Snapshot(now)
	out := Status{
		State:             w.s.State.String(),
		SessionID:         w.s.ID,
		SessionKind:       string(w.s.Kind),
		StationIndex:      w.s.StationIndex,
		TotalStations:     w.s.TotalStations,
		StationsCompleted: w.s.StationsCompleted,
		MergedSessions:    w.s.Merged,
		Refill:            w.s.Refill,
		Connection:        w.conn.State().String(),
		Mode:              res.Mode.String(),
		FullUnits:         res.Full,
		EmptyUnits:        res.Empty,
		AdaptiveDelay:     res.Delay,
		RefillsRemaining:  w.s.WaterRefillsRemaining,
		At:                now,
	}
	if st, ok := w.s.Current(); ok {
		out.Station = st.Name
	}
	if w.s.State == StatePaused {
		remaining := max(0, w.s.PauseEnd.Sub(now))
		out.PauseReason = w.s.Pause.String()
		out.PauseRemaining = remaining
		out.Countdown = FormatCountdown(remaining)
		out.NextKind = string(w.s.NextKind)
	}
	if !w.s.Error.IsZero() {
		out.ErrorKind = w.s.Error.Kind.String()
		out.Error = w.s.Error.Message
		out.ErrorRecoverable = w.s.Error.Recoverable
	}
	return out
}

// FormatDuration renders d as "1h 02m 03s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// FormatCountdown is the status line shown while paused.
func FormatCountdown(d time.Duration) string {
	return "Next session: " + FormatDuration(d)
}
