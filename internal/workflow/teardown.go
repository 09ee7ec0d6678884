// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"time"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/schedule"
	"github.com/ManuGH/agribot/internal/statefile"
)

// teardown runs after the last station.
func (w *Workflow) teardown() {
	w.res.Refresh()
	if w.s.Refill && !w.cfg.Resource.SingleUnit() && w.res.Full() > 0 {
		w.transition(StateEmptyingRemainder)
		return
	}
	w.finishSession()
}

// finishSession records the cycle, plans the next session and either merges
// it in place or disconnects.
func (w *Workflow) finishSession() {
	now := w.clock.Now()
	kind := w.s.Kind

	cycle := w.advanceCycle(now)
	plan := w.params.Next(now, cycle)
	w.s.NextPause = plan.Pause
	w.s.NextKind = plan.Kind

	w.recordStat("session", func() error { return w.stats.RecordSessionCompleted(kind) })
	metrics.RecordSessionCompleted(string(kind))
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.session_done").
		Str(xglog.FieldSessionKind, string(kind)).
		Int(xglog.FieldCompleted, w.s.StationsCompleted).
		Dur("elapsed", now.Sub(w.s.StartedAt)).
		Str("next_kind", string(plan.Kind)).
		Dur("next_pause", plan.Pause).
		Int("refills_remaining", cycle.RefillsRemaining).
		Bool("merge", plan.Merge).
		Msg("session completed")
	w.endSpan(nil)
	w.s.Flags.ForceFullResupply = false
	w.s.Flags.CanResumeAfterEvent = false

	if plan.Merge {
		metrics.RecordSessionMerge()
		w.status(ports.SeverityInfo, "Next water session in %s, starting it now", FormatDuration(plan.Pause))
		w.openSession(ports.SessionWaterOnly, true)
		return
	}
	w.s.PauseEnd = plan.Due
	w.transition(StateDisconnecting)
}

// advanceCycle persists what this session did and returns the cycle used to
// plan the next one.
func (w *Workflow) advanceCycle(now time.Time) schedule.Cycle {
	st := w.cycleState
	// The first session ever assumes the stations were filled by hand.
	if w.s.Refill || st.LastRefillAt.IsZero() {
		st.LastRefillAt = now
	}
	if w.s.Kind == ports.SessionWaterOnly {
		st.WaterRefillsRemaining = max(0, st.WaterRefillsRemaining-1)
	} else {
		st.CycleStartAt = now
		st.WaterRefillsRemaining = w.params.RefillsPerCycle()
	}
	w.cycleState = st
	w.s.CycleStart = st.CycleStartAt
	w.s.WaterRefillsRemaining = st.WaterRefillsRemaining

	err := w.store.Update(func(p *statefile.State) {
		p.LastRefillAt = st.LastRefillAt
		p.CycleStartAt = st.CycleStartAt
		p.WaterRefillsRemaining = st.WaterRefillsRemaining
	})
	if err != nil {
		w.logger.Warn().Err(err).Str(xglog.FieldEvent, "workflow.state_save_failed").Msg("cycle state not persisted")
	}
	return schedule.Cycle{
		Start:            st.CycleStartAt,
		LastRefill:       st.LastRefillAt,
		RefillsRemaining: st.WaterRefillsRemaining,
	}
}

// Sub-steps of DISCONNECTING.
const (
	disconnectRelease = iota
	disconnectNow
)

func (w *Workflow) tickDisconnecting() {
	switch w.s.Sub {
	case disconnectRelease:
		w.world.EndPosture()
		w.world.CloseSurface()
		w.s.Sub = disconnectNow
		w.s.Wait = w.ticks(w.cfg.Timing.CloseDelay)
	case disconnectNow:
		w.session.Disconnect()
		w.status(ports.SeverityInfo, "%s", FormatCountdown(w.s.PauseEnd.Sub(w.clock.Now())))
		w.pauseUntil(w.s.PauseEnd, PauseNextSession)
	}
}
