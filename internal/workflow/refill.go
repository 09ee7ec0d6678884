// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/ports"
)

func (w *Workflow) stationNeedsFill(st Station) bool {
	return w.s.Refill && st.NeedsResource
}

// Sub-steps shared by FILLING_RESOURCE and EMPTYING_REMAINDER.
const (
	pourSelect = iota
	pourAct
	pourVerify
)

// enterFilling starts pouring at the current station.
func (w *Workflow) enterFilling() {
	w.res.BeginStation()
	w.s.stationDeadline = w.clock.Now().Add(w.cfg.Resource.StationTimeout)
	// Forget a full signal left over from the previous station.
	w.chat.DetectEventText(w.cfg.Chat.StationFullPattern)
	w.transition(StateFillingResource)
}

func (w *Workflow) selectFullUnit() {
	slot := w.world.FindSlot(ports.ItemFullUnit, ports.LocationHotbar)
	if slot == ports.NoSlot {
		slot = w.cfg.Slots.FullUnit
	}
	w.world.SelectSlot(slot)
}

func (w *Workflow) tickFilling() {
	st, _ := w.s.Current()
	now := w.clock.Now()
	switch w.s.Sub {
	case pourSelect:
		w.res.Refresh()
		if w.res.Full() == 0 {
			if w.res.Empty() > 0 {
				w.transition(StateRefillingContainers)
				return
			}
			w.status(ports.SeverityWarning, "No units left, skipping refill at %s", st.Name)
			w.transition(StateNextStation)
			return
		}
		w.selectFullUnit()
		w.s.Sub = pourAct
		w.s.Wait = 1

	case pourAct:
		if limit := w.cfg.Resource.StationCap(); w.res.UnitsThisStation() >= limit {
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.station_cap").
				Str(xglog.FieldStation, st.Name).
				Int("units", w.res.UnitsThisStation()).
				Msg("unit cap reached, moving on")
			w.transition(StateNextStation)
			return
		}
		if !now.Before(w.s.stationDeadline) {
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.station_timeout").
				Str(xglog.FieldStation, st.Name).
				Int("units", w.res.UnitsThisStation()).
				Msg("station refill timed out, moving on")
			w.transition(StateNextStation)
			return
		}
		w.s.unitBaseline = w.res.Full()
		w.world.SecondaryInteract()
		w.res.BeginUnit(now)
		w.s.unitDeadline = now.Add(w.cfg.Resource.UnitTimeout)
		w.s.Sub = pourVerify

	case pourVerify:
		if w.chat.DetectEventText(w.cfg.Chat.StationFullPattern) {
			w.logger.Info().
				Str(xglog.FieldEvent, "workflow.station_full").
				Str(xglog.FieldStation, st.Name).
				Int("units", w.res.UnitsThisStation()).
				Msg("station full")
			w.transition(StateNextStation)
			return
		}
		w.res.Refresh()
		if w.res.Full() < w.s.unitBaseline {
			delay := w.res.RecordConsumption(now)
			w.s.Sub = pourSelect
			w.s.Wait = w.ticks(delay)
			return
		}
		if !now.Before(w.s.unitDeadline) {
			delay := w.res.RecordTimeout()
			w.s.Retries++
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.unit_timeout").
				Str(xglog.FieldStation, st.Name).
				Int(xglog.FieldRetry, w.s.Retries).
				Msg("unit not consumed, retrying")
			w.s.Sub = pourSelect
			w.s.Wait = w.ticks(delay)
		}
	}
}

// Sub-steps of REFILLING_CONTAINERS.
const (
	refillSend = iota
	refillWait
)

func (w *Workflow) tickRefilling() {
	switch w.s.Sub {
	case refillSend:
		w.logger.Debug().
			Str(xglog.FieldEvent, "workflow.refill_containers").
			Int("empty", w.res.Empty()).
			Msg("refilling empty units")
		w.chat.SendCommand(w.cfg.Resource.RefillCommand)
		w.s.refillDeadline = w.clock.Now().Add(w.cfg.Resource.RefillTimeout)
		w.s.Sub = refillWait
		w.s.Wait = w.ticks(w.cfg.Timing.TransferStep)

	case refillWait:
		w.res.Refresh()
		if w.res.Full() > 0 {
			// Back to pouring without resetting the station counters.
			w.transition(StateFillingResource)
			return
		}
		if !w.clock.Now().Before(w.s.refillDeadline) {
			st, _ := w.s.Current()
			w.status(ports.SeverityWarning, "Refill command had no effect, skipping %s", st.Name)
			w.transition(StateNextStation)
		}
	}
}

// tickEmptying pours the full units left after the last station while
// holding the posture, so the next session starts with empty units only.
func (w *Workflow) tickEmptying() {
	now := w.clock.Now()
	switch w.s.Sub {
	case pourSelect:
		w.res.Refresh()
		if w.res.Full() == 0 {
			w.world.EndPosture()
			w.finishSession()
			return
		}
		w.selectFullUnit()
		w.world.BeginPosture()
		w.s.Sub = pourAct
		w.s.Wait = w.ticks(w.cfg.Timing.PostureStep)

	case pourAct:
		w.s.unitBaseline = w.res.Full()
		w.world.SecondaryInteract()
		w.s.unitDeadline = now.Add(w.cfg.Resource.UnitTimeout)
		w.s.Sub = pourVerify

	case pourVerify:
		w.res.Refresh()
		if w.res.Full() < w.s.unitBaseline {
			if w.res.Full() == 0 {
				w.world.EndPosture()
				w.finishSession()
				return
			}
			w.s.Sub = pourAct
			w.s.Wait = w.ticks(w.res.Delay())
			return
		}
		if !now.Before(w.s.unitDeadline) {
			w.world.EndPosture()
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.emptying_timeout").
				Int("full", w.res.Full()).
				Msg("could not empty remaining units")
			w.finishSession()
		}
	}
}
