// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"errors"
	"strings"

	"github.com/ManuGH/agribot/internal/connection"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/ports"
)

// Sub-steps of CONNECTING.
const (
	connectCheck = iota
	connectPolling
	connectLogin
	connectAutomaton
)

func (w *Workflow) needsLogin() bool {
	return strings.TrimSpace(w.cfg.Server.Password) != ""
}

// enterConnecting goes through CONNECTING only when a login or a base
// connection is needed.
func (w *Workflow) enterConnecting() {
	if !w.needsLogin() && w.session.IsConnected() {
		w.onConnected()
		return
	}
	w.transition(StateConnecting)
}

func (w *Workflow) tickConnecting() {
	switch w.s.Sub {
	case connectCheck:
		if w.session.IsConnected() {
			w.s.Sub = connectLogin
			return
		}
		w.logger.Info().
			Str(xglog.FieldEvent, "workflow.connect").
			Str("address", w.cfg.Server.Address).
			Int("attempt", w.s.NetworkAttempts+1).
			Msg("opening base connection")
		w.session.Connect(w.cfg.Server.Address)
		w.s.Sub = connectPolling
		w.s.Wait = w.ticks(w.cfg.Timing.ConnectPoll)

	case connectPolling:
		if w.session.IsConnected() {
			w.s.Retries = 0
			w.s.Sub = connectLogin
			return
		}
		w.s.Retries++
		if w.s.Retries >= w.cfg.Retries.Connect {
			w.fail(newError(KindNetwork, ErrNotConnected, "server %s unreachable", w.cfg.Server.Address))
			return
		}
		w.s.Wait = w.ticks(w.cfg.Timing.ConnectPoll)

	case connectLogin:
		if !w.needsLogin() {
			w.onConnected()
			return
		}
		if !w.conn.Start() {
			w.connectionFailed(w.conn.LastError())
			return
		}
		w.s.Sub = connectAutomaton

	case connectAutomaton:
		w.conn.Tick()
		if !w.conn.IsFinished() {
			return
		}
		if w.conn.Succeeded() {
			w.onConnected()
			return
		}
		w.connectionFailed(w.conn.LastError())
	}
}

func (w *Workflow) connectionFailed(err error) {
	switch {
	case errors.Is(err, connection.ErrMissingCredentials):
		w.fail(newError(KindConfiguration, err, "login failed"))
	case errors.Is(err, connection.ErrEntryMenu), errors.Is(err, connection.ErrTargetEnvironment):
		w.fail(newError(KindInteractionSurface, err, "entry menu"))
	default:
		w.fail(newError(KindNetwork, err, "login failed"))
	}
}

// onConnected resumes an interrupted session or starts the station walk.
func (w *Workflow) onConnected() {
	w.s.NetworkAttempts = 0
	w.s.Error = ErrorRecord{}
	// Drop relocation and disconnect lines printed while we were away.
	for _, p := range []string{w.cfg.Chat.EventPattern, w.cfg.Chat.DisconnectPattern} {
		if p != "" {
			w.chat.DetectEventText(p)
		}
	}
	if w.s.Resume != nil {
		w.resume()
		return
	}
	w.afterConnected()
}

// afterConnected runs the supply steps in order, then teleports to the
// first station.
func (w *Workflow) afterConnected() {
	w.res.Refresh()
	now := w.clock.Now()
	if w.res.NeedsModeTransition(now) {
		w.beginTransfer(StateManagingResources)
		return
	}
	w.afterModeTransition()
}

func (w *Workflow) afterModeTransition() {
	if w.s.Flags.ForceFullResupply && w.res.Held() < w.cfg.Resource.FullCount {
		w.beginTransfer(StateRecoveringSupplies)
		return
	}
	w.afterRecovery()
}

func (w *Workflow) afterRecovery() {
	if w.s.Refill && w.res.Held() == 0 {
		w.beginTransfer(StateFetchingSupplies)
		return
	}
	w.startStations()
}

func (w *Workflow) startStations() {
	if w.s.Done() {
		w.teardown()
		return
	}
	w.status(ports.SeverityInfo, "Session %s: %d stations", w.s.Kind, w.s.TotalStations)
	w.transition(StateTeleporting)
}
