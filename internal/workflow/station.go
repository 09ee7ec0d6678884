// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"fmt"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
)

// teleport sends the agent to dest with the configured command, or through
// the world port when no command is configured.
func (w *Workflow) teleport(dest string) {
	if tmpl := w.cfg.Chat.TeleportCommand; tmpl != "" {
		w.chat.SendCommand(fmt.Sprintf(tmpl, dest))
		return
	}
	w.world.MoveTo(dest)
}

// firstExtra is the extra settle time granted to the first station.
func (w *Workflow) firstExtra() int {
	if w.s.Flags.FirstStation {
		return w.ticks(w.cfg.Timing.FirstStationExtra)
	}
	return 0
}

func (w *Workflow) tickTeleporting() {
	st, ok := w.s.Current()
	if !ok {
		w.teardown()
		return
	}
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.teleport").
		Str(xglog.FieldStation, st.Name).
		Int(xglog.FieldStationIndex, st.Index).
		Int(xglog.FieldStations, w.s.TotalStations).
		Msg("teleporting to station")
	w.teleport(st.Name)
	w.transition(StateWaitingArrival)
	w.s.Wait = w.ticks(w.cfg.Timing.TeleportDelay) + w.firstExtra()
}

func (w *Workflow) tickWaitingArrival() {
	st, _ := w.s.Current()
	if !w.world.HasArrived(st.Name) {
		w.s.Retries++
		if w.s.Retries < w.cfg.Retries.Arrival {
			w.s.Wait = w.ticks(w.cfg.Timing.ArrivalPoll)
			return
		}
		w.logger.Warn().
			Str(xglog.FieldEvent, "workflow.arrival_unconfirmed").
			Str(xglog.FieldStation, st.Name).
			Int(xglog.FieldRetry, w.s.Retries).
			Msg("arrival not confirmed, proceeding anyway")
	}
	if w.s.Flags.WaterOnly {
		if w.stationNeedsFill(st) {
			w.enterFilling()
		} else {
			w.transition(StateNextStation)
		}
		return
	}
	w.transition(StateOpeningStation)
}

// Sub-steps of OPENING_STATION.
const (
	openInteract = iota
	openPoll
	openSettled
)

func (w *Workflow) tickOpeningStation() {
	switch w.s.Sub {
	case openInteract:
		// Hold seeds so a full unit is never poured by accident.
		w.world.SelectSlot(w.cfg.Slots.Seed)
		w.world.PrimaryInteract()
		w.s.Sub = openPoll
		w.s.Wait = w.ticks(w.cfg.Timing.OpenPoll)

	case openPoll:
		if w.world.IsSurfaceOpen(ports.SurfaceStation) {
			w.s.Sub = openSettled
			w.s.Wait = w.ticks(w.cfg.Timing.OpenStabilize) + w.firstExtra()
			return
		}
		w.s.Retries++
		if w.s.Retries >= w.cfg.Retries.OpenStation {
			st, _ := w.s.Current()
			w.surfaceFailure(fmt.Sprintf("station %s did not open after %d attempts", st.Name, w.s.Retries))
			return
		}
		w.s.Sub = openInteract

	case openSettled:
		w.transition(StateHarvesting)
	}
}

// Sub-steps of HARVESTING.
const (
	harvestClick = iota
	harvestVerify
	harvestClose
)

func (w *Workflow) tickHarvesting() {
	switch w.s.Sub {
	case harvestClick:
		if !w.world.IsSurfaceOpen(ports.SurfaceStation) {
			st, _ := w.s.Current()
			w.surfaceFailure(fmt.Sprintf("station %s closed unexpectedly", st.Name))
			return
		}
		if w.world.CountItems(ports.ItemReadyHarvest, ports.LocationSurface) == 0 {
			w.logger.Debug().Str(xglog.FieldEvent, "workflow.harvest_skip").Msg("nothing ready")
			w.s.Sub = harvestClose
			return
		}
		w.world.InteractWithSlot(w.cfg.Slots.Harvest, w.cfg.Plant.HarvestClick())
		w.s.Sub = harvestVerify
		w.s.Wait = w.ticks(w.cfg.Timing.HarvestPoll)

	case harvestVerify:
		st, _ := w.s.Current()
		if w.world.CountItems(ports.ItemReadyHarvest, ports.LocationSurface) == 0 {
			w.logger.Info().
				Str(xglog.FieldEvent, "workflow.harvested").
				Str(xglog.FieldStation, st.Name).
				Msg("harvested")
			w.s.Sub = harvestClose
			return
		}
		w.s.Retries++
		if w.s.Retries >= w.cfg.Retries.Harvest {
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.harvest_unconfirmed").
				Str(xglog.FieldStation, st.Name).
				Int(xglog.FieldRetry, w.s.Retries).
				Msg("crop still present, continuing")
			w.s.Sub = harvestClose
			return
		}
		w.s.Sub = harvestClick

	case harvestClose:
		w.world.CloseSurface()
		w.transition(StatePlanting)
		w.s.Wait = w.ticks(w.cfg.Timing.CloseDelay)
	}
}

// Sub-steps of PLANTING. Each waits PostureStep before the next.
const (
	plantSelect = iota
	plantPosture
	plantInteract
	plantRelease
)

func (w *Workflow) tickPlanting() {
	step := w.ticks(w.cfg.Timing.PostureStep)
	switch w.s.Sub {
	case plantSelect:
		w.world.SelectSlot(w.cfg.Slots.Seed)
		w.s.Sub = plantPosture
	case plantPosture:
		w.world.BeginPosture()
		w.s.Sub = plantInteract
	case plantInteract:
		w.world.PrimaryInteract()
		w.s.Sub = plantRelease
	case plantRelease:
		w.world.EndPosture()
		st, _ := w.s.Current()
		if w.stationNeedsFill(st) {
			w.enterFilling()
		} else {
			w.transition(StateNextStation)
		}
		return
	}
	w.s.Wait = step
}

func (w *Workflow) tickNextStation() {
	st, _ := w.s.Current()
	kind := w.s.Kind
	w.recordStat("station", func() error { return w.stats.RecordStationCompleted(kind) })
	metrics.RecordStationCompleted(string(kind))

	w.s.StationsCompleted++
	w.s.StationIndex++
	w.s.Flags.FirstStation = false
	w.s.Escalations = 0
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.station_done").
		Str(xglog.FieldStation, st.Name).
		Int(xglog.FieldCompleted, w.s.StationsCompleted).
		Int(xglog.FieldStations, w.s.TotalStations).
		Msg("station completed")

	if w.s.Done() {
		w.teardown()
		return
	}
	w.transition(StateTeleporting)
}
