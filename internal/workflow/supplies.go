// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package workflow

import (
	"fmt"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/resource"
)

// Storage runs share one handler. MANAGING_RESOURCES applies the
// time-of-day deposit or retrieve. RECOVERING_SUPPLIES tops up to the full
// count after an event. FETCHING_SUPPLIES collects units when a refill
// session starts empty-handed.

// beginTransfer plans a storage run and enters state.
func (w *Workflow) beginTransfer(state State) {
	now := w.clock.Now()
	w.res.Refresh()
	var t Transfer
	switch state {
	case StateManagingResources:
		mode := w.res.CurrentMode(now)
		if mode == resource.ModeDeposit {
			t = Transfer{Home: w.cfg.Resource.DepositHome, Deposit: true, Want: w.res.BucketsToDeposit(mode)}
		} else {
			t = Transfer{Home: w.cfg.Resource.RetrieveHome, Want: w.res.BucketsToRetrieve(mode)}
		}
	case StateRecoveringSupplies:
		t = Transfer{Home: w.cfg.Resource.RetrieveHome, Want: max(0, w.cfg.Resource.FullCount-w.res.Held())}
	case StateFetchingSupplies:
		want := w.res.TargetCount(w.res.CurrentMode(now))
		t = Transfer{Home: w.cfg.Resource.RetrieveHome, Want: max(1, want-w.res.Held())}
	}
	w.s.Transfer = t
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.transfer_plan").
		Str("state", state.String()).
		Str("home", t.Home).
		Bool("deposit", t.Deposit).
		Int("units", t.Want).
		Int("held", w.res.Held()).
		Msg("storage run planned")
	w.transition(state)
}

// Sub-steps of a storage run.
const (
	transferTeleport = iota
	transferArrive
	transferOpen
	transferPoll
	transferMove
	transferClose
)

func (w *Workflow) tickTransfer() {
	t := &w.s.Transfer
	switch w.s.Sub {
	case transferTeleport:
		if t.Want <= 0 {
			w.finishTransfer()
			return
		}
		w.teleport(t.Home)
		w.s.Sub = transferArrive
		w.s.Wait = w.ticks(w.cfg.Timing.TeleportDelay)

	case transferArrive:
		if !w.world.HasArrived(t.Home) {
			w.s.Retries++
			if w.s.Retries < w.cfg.Retries.Arrival {
				w.s.Wait = w.ticks(w.cfg.Timing.ArrivalPoll)
				return
			}
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.arrival_unconfirmed").
				Str("home", t.Home).
				Msg("arrival at storage not confirmed, proceeding anyway")
		}
		w.s.Retries = 0
		w.s.Sub = transferOpen

	case transferOpen:
		w.world.SelectSlot(w.cfg.Slots.Seed)
		w.world.PrimaryInteract()
		w.s.Sub = transferPoll
		w.s.Wait = w.ticks(w.cfg.Timing.OpenPoll)

	case transferPoll:
		if w.world.IsSurfaceOpen(ports.SurfaceStorage) {
			w.s.Sub = transferMove
			w.s.Wait = w.ticks(w.cfg.Timing.OpenStabilize)
			return
		}
		w.s.Retries++
		if w.s.Retries >= w.cfg.Retries.StorageOpen {
			w.surfaceFailure(fmt.Sprintf("storage %s did not open after %d attempts", t.Home, w.s.Retries))
			return
		}
		w.s.Sub = transferOpen

	case transferMove:
		if t.Moved >= t.Want {
			w.s.Sub = transferClose
			return
		}
		slot := w.transferSlot(t.Deposit)
		if slot == ports.NoSlot {
			w.logger.Warn().
				Str(xglog.FieldEvent, "workflow.transfer_short").
				Str("home", t.Home).
				Int("moved", t.Moved).
				Int("wanted", t.Want).
				Msg("nothing left to move")
			w.s.Sub = transferClose
			return
		}
		w.world.InteractWithSlot(slot, ports.ClickQuickMove)
		t.Moved++
		w.s.Wait = w.ticks(w.cfg.Timing.TransferStep)

	case transferClose:
		w.world.CloseSurface()
		w.s.Wait = w.ticks(w.cfg.Timing.CloseDelay)
		w.finishTransfer()
	}
}

// transferSlot picks the slot to quick-move. Deposits shed empty units
// first.
func (w *Workflow) transferSlot(deposit bool) int {
	if !deposit {
		return w.world.FindSlot(ports.ItemFullUnit, ports.LocationSurface)
	}
	if slot := w.world.FindSlot(ports.ItemEmptyUnit, ports.LocationInventory); slot != ports.NoSlot {
		return slot
	}
	return w.world.FindSlot(ports.ItemFullUnit, ports.LocationInventory)
}

func (w *Workflow) finishTransfer() {
	state := w.s.State
	w.res.Refresh()
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.transfer_done").
		Str("state", state.String()).
		Int("moved", w.s.Transfer.Moved).
		Int("full", w.res.Full()).
		Int("empty", w.res.Empty()).
		Msg("storage run finished")
	wait := w.s.Wait
	w.s.Wait = 0
	switch state {
	case StateManagingResources:
		if err := w.res.MarkTransition(w.clock.Now()); err != nil {
			w.logger.Warn().Err(err).Str(xglog.FieldEvent, "workflow.marker_save_failed").Msg("transition marker not saved")
		}
		w.afterModeTransition()
	case StateRecoveringSupplies:
		w.afterRecovery()
	default:
		w.startStations()
	}
	w.s.Wait += wait
}
