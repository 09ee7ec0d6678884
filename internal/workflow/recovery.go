// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
)

// pollSignals checks the asynchronous signals. It returns true when it
// changed state and the tick is done.
func (w *Workflow) pollSignals() bool {
	if p := w.cfg.Chat.EventPattern; p != "" && w.chat.DetectEventText(p) {
		metrics.RecordChatSignal("event")
		w.handleEvent()
		return true
	}
	if w.world.IsSurfaceOpen(ports.SurfaceDisconnected) {
		w.handleCrash("disconnect_surface")
		return true
	}
	if p := w.cfg.Chat.DisconnectPattern; p != "" && w.chat.DetectEventText(p) {
		metrics.RecordChatSignal("disconnect")
		w.handleCrash("disconnect_text")
		return true
	}
	w.probeLeft--
	if w.probeLeft <= 0 {
		w.probeLeft = max(1, w.ticks(w.cfg.Recovery.ProbeInterval))
		if !w.session.IsConnected() {
			w.handleCrash("probe")
			return true
		}
	}
	return false
}

func (w *Workflow) release() {
	w.world.EndPosture()
	w.world.CloseSurface()
	w.conn.Stop()
}

// handleCrash snapshots the session, pauses and reconnects. The session
// resumes exactly where it stopped.
func (w *Workflow) handleCrash(reason string) {
	w.release()
	snap := w.s.snapshot()
	w.s.Resume = &snap
	w.s.Flags.CrashReconnectPause = true
	w.s.Error = ErrorRecord{
		Kind:        KindUnexpectedDisconnection,
		Message:     newError(KindUnexpectedDisconnection, ErrDisconnected, "%s", reason).Error(),
		Recoverable: true,
	}
	st, _ := w.s.Current()
	w.logger.Warn().
		Str(xglog.FieldEvent, "workflow.crash").
		Str("reason", reason).
		Str("state", snap.State.String()).
		Str(xglog.FieldStation, st.Name).
		Int(xglog.FieldStationIndex, snap.StationIndex).
		Int(xglog.FieldCompleted, snap.StationsCompleted).
		Dur("reconnect_in", w.cfg.Recovery.CrashReconnectDelay).
		Msg("connection lost, will resume")
	metrics.RecordRecovery("crash")
	w.chat.ShowStatus("Connection lost, reconnecting", ports.SeverityWarning)
	w.pauseUntil(w.clock.Now().Add(w.cfg.Recovery.CrashReconnectDelay), PauseReconnect)
}

// resume restores the snapshot taken when the session was interrupted.
func (w *Workflow) resume() {
	snap := *w.s.Resume
	w.s.Resume = nil
	w.s.StationIndex = snap.StationIndex
	w.s.StationsCompleted = snap.StationsCompleted
	w.s.Flags = snap.Flags
	w.s.Refill = snap.Refill
	w.s.Error = ErrorRecord{}
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.resume").
		Str("state", snap.State.String()).
		Int(xglog.FieldStationIndex, snap.StationIndex).
		Int(xglog.FieldCompleted, snap.StationsCompleted).
		Msg("resuming interrupted session")
	metrics.RecordRecovery("resumed")

	switch snap.State {
	case StateManagingResources, StateRecoveringSupplies, StateFetchingSupplies:
		w.beginTransfer(snap.State)
	case StateEmptyingRemainder:
		w.transition(StateEmptyingRemainder)
	default:
		w.startStations()
	}
}

// handleEvent abandons the session on a forced relocation and waits the
// event out. The session restarts from the first station with a full
// resupply whether or not the water would have lasted.
func (w *Workflow) handleEvent() {
	w.release()
	now := w.clock.Now()
	pause := w.cfg.Recovery.EventPause
	lasts := w.params.WaterLasts(now, w.cycleState.LastRefillAt, pause)
	w.s.Resume = nil
	w.s.Flags.EventPause = true
	w.s.Flags.CanResumeAfterEvent = true
	w.s.Flags.ForceFullResupply = true
	w.s.Error = ErrorRecord{
		Kind:        KindEnvironmentEvent,
		Message:     newError(KindEnvironmentEvent, ErrEnvironmentEvent, "relocated").Error(),
		Recoverable: true,
	}
	w.logger.Warn().
		Str(xglog.FieldEvent, "workflow.environment_event").
		Int(xglog.FieldStationIndex, w.s.StationIndex).
		Dur("pause", pause).
		Bool("water_lasts", lasts).
		Msg("forced relocation, pausing")
	if lasts {
		w.status(ports.SeverityWarning, "Event detected, water lasts the %s pause", FormatDuration(pause))
	} else {
		w.status(ports.SeverityWarning, "Event detected, water may run out during the %s pause", FormatDuration(pause))
	}
	metrics.RecordRecovery("event")
	w.endSpan(ErrEnvironmentEvent)
	w.session.Disconnect()
	w.pauseUntil(now.Add(pause), PauseEvent)
}

func (w *Workflow) resumeAfterEvent() {
	kind := w.s.Kind
	if kind == "" {
		kind = ports.SessionHarvest
	}
	w.s.Flags.EventPause = false
	w.s.Flags.ForceFullResupply = true
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.event_resume").
		Str(xglog.FieldSessionKind, string(kind)).
		Msg("restarting from the first station with full resupply")
	w.openSession(kind, false)
	w.s.Flags.CanResumeAfterEvent = true
}

// surfaceFailure handles an exhausted local retry budget on a surface. The
// session reconnects and resumes at the same station, up to
// SurfaceEscalations times; after that the station is skipped.
func (w *Workflow) surfaceFailure(msg string) {
	w.world.CloseSurface()
	w.s.Escalations++
	if w.s.Escalations > w.cfg.Retries.SurfaceEscalations {
		st, _ := w.s.Current()
		w.status(ports.SeverityWarning, "Skipping %s: %s", st.Name, msg)
		if w.s.State.isStorageRun() {
			w.s.Escalations = 0
			w.finishTransfer()
			return
		}
		w.transition(StateNextStation)
		return
	}
	w.fail(newError(KindInteractionSurface, ErrSurface, "%s", msg))
}

func (s State) isStorageRun() bool {
	return s == StateManagingResources || s == StateRecoveringSupplies || s == StateFetchingSupplies
}

// fail records err and enters ERROR. Recoverable errors resume the session
// after a delay.
func (w *Workflow) fail(err *Error) {
	if err.Kind == KindNetwork || err.Kind == KindInteractionSurface {
		if w.s.Resume == nil && w.s.State.inWorld() {
			snap := w.s.snapshot()
			w.s.Resume = &snap
		}
	}
	if err.Kind == KindNetwork {
		w.s.NetworkAttempts++
	}
	w.s.Error = ErrorRecord{
		Kind:        err.Kind,
		Message:     err.Error(),
		Recoverable: err.Recoverable,
		Retries:     max(w.s.NetworkAttempts, w.s.Escalations),
	}
	metrics.RecordWorkflowError(err.Kind.String())
	w.errorState = err
	w.transition(StateError)
}

// Sub-steps of ERROR.
const (
	errorCleanup = iota
	errorDecide
)

func (w *Workflow) tickError() {
	err := w.errorState
	if err == nil {
		err = newError(KindNetwork, nil, "unknown failure")
		w.errorState = err
	}
	switch w.s.Sub {
	case errorCleanup:
		w.release()
		if w.session.IsConnected() {
			w.session.Disconnect()
		}
		st, _ := w.s.Current()
		w.logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "workflow.error").
			Str(xglog.FieldErrorKind, err.Kind.String()).
			Bool("recoverable", err.Recoverable).
			Str(xglog.FieldStation, st.Name).
			Int(xglog.FieldStationIndex, w.s.StationIndex).
			Int(xglog.FieldCompleted, w.s.StationsCompleted).
			Int(xglog.FieldStations, w.s.TotalStations).
			Int(xglog.FieldRetry, w.s.Error.Retries).
			Msg("workflow error")
		w.chat.ShowStatus(err.Kind.String()+": "+err.Msg, ports.SeverityError)
		w.s.Sub = errorDecide
		w.s.Wait = w.ticks(w.cfg.Timing.CloseDelay)

	case errorDecide:
		if !err.Recoverable {
			w.endSpan(err)
			w.Stop()
			return
		}
		delay := w.cfg.Recovery.ErrorRetryDelay
		if err.Kind == KindNetwork {
			delay = w.backoff.Delay(w.s.NetworkAttempts - 1)
		}
		w.logger.Info().
			Str(xglog.FieldEvent, "workflow.retry_scheduled").
			Str(xglog.FieldErrorKind, err.Kind.String()).
			Dur("delay", delay).
			Msg("retrying after pause")
		w.pauseUntil(w.clock.Now().Add(delay), PauseReconnect)
	}
}
