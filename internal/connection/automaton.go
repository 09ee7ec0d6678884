// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package connection implements the login sub-machine: submit credentials,
// detect the anti-automation block artifact, and walk the entry menu into
// the target environment.
package connection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/clock"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNotConnected       = errors.New("no base connection")
	ErrBlocked            = errors.New("block artifact still present after reconnect attempts")
	ErrEntryMenu          = errors.New("entry menu did not open")
	ErrTargetEnvironment  = errors.New("target environment not reached")
	ErrReconnect          = errors.New("reconnect after block failed")
)

// Config parameterizes the automaton. Durations are converted to ticks.
type Config struct {
	Password     string
	LoginCommand string
	Address      string

	EntrySlot       int
	EntryOptionSlot int

	TickInterval          time.Duration
	CredentialsWait       time.Duration
	EntryMenuPoll         time.Duration
	TargetEnvironmentWait time.Duration
	BlockReconnectDelay   time.Duration
	ConnectPoll           time.Duration

	EntryMenuRetries   int
	TargetRetries      int
	BlockRetries       int
	ConnectPollRetries int
}

// Automaton is the connection sub-machine. It is driven by Tick from the
// workflow's tick thread and never blocks.
type Automaton struct {
	cfg     Config
	world   ports.World
	chat    ports.Chat
	session ports.Session
	logger  zerolog.Logger

	state        State
	wait         int
	sub          int
	menuTries    int
	targetTries  int
	connectPolls int
	attempts     int
	lastErr      error
}

// New returns an idle automaton.
func New(cfg Config, world ports.World, chat ports.Chat, session ports.Session) *Automaton {
	return &Automaton{
		cfg:     cfg,
		world:   world,
		chat:    chat,
		session: session,
		logger:  xglog.WithComponent("connection"),
	}
}

// Start begins a connection sequence. It returns false and records an error
// when credentials are blank or there is no base connection.
func (a *Automaton) Start() bool {
	a.reset()
	if strings.TrimSpace(a.cfg.Password) == "" {
		a.fail(ErrMissingCredentials)
		return false
	}
	if !a.session.IsConnected() {
		a.fail(ErrNotConnected)
		return false
	}
	a.transition(StateSendingCredentials)
	return true
}

func (a *Automaton) reset() {
	a.state = StateIdle
	a.wait, a.sub, a.attempts = 0, 0, 0
	a.menuTries, a.targetTries, a.connectPolls = 0, 0, 0
	a.lastErr = nil
}

var handlers = [...]func(*Automaton){
	StateIdle:                     (*Automaton).tickTerminal,
	StateSendingCredentials:       (*Automaton).tickSendingCredentials,
	StateWaitingAfterCredentials:  (*Automaton).tickWaitingAfterCredentials,
	StateCheckingBlockSignal:      (*Automaton).tickCheckingBlockSignal,
	StateSelectingEntryItem:       (*Automaton).tickSelectingEntryItem,
	StateOpeningEntryMenu:         (*Automaton).tickOpeningEntryMenu,
	StateWaitingEntryMenu:         (*Automaton).tickWaitingEntryMenu,
	StateActivatingEntryOption:    (*Automaton).tickActivatingEntryOption,
	StateWaitingTargetEnvironment: (*Automaton).tickWaitingTargetEnvironment,
	StateBlockDisconnect:          (*Automaton).tickBlockDisconnect,
	StateWaitingReconnect:         (*Automaton).tickWaitingReconnect,
	StateConnected:                (*Automaton).tickTerminal,
	StateError:                    (*Automaton).tickTerminal,
}

var _ = [1]struct{}{}[len(handlers)-int(stateCount)]

// Tick advances the sequence by one step.
func (a *Automaton) Tick() {
	if a.wait > 0 {
		a.wait--
		return
	}
	handlers[a.state](a)
}

// IsFinished reports whether the sequence reached CONNECTED or ERROR.
func (a *Automaton) IsFinished() bool {
	return a.state == StateConnected || a.state == StateError
}

// Succeeded reports whether the sequence reached CONNECTED.
func (a *Automaton) Succeeded() bool { return a.state == StateConnected }

// Stop abandons the sequence.
func (a *Automaton) Stop() {
	if a.state != StateIdle {
		a.transition(StateIdle)
	}
	a.wait = 0
}

// State returns the current sub-state.
func (a *Automaton) State() State { return a.state }

// LastError returns the error that ended the sequence, if any.
func (a *Automaton) LastError() error { return a.lastErr }

// Attempts counts block-triggered reconnects in this sequence.
func (a *Automaton) Attempts() int { return a.attempts }

func (a *Automaton) ticks(d time.Duration) int {
	return clock.Ticks(d, a.cfg.TickInterval)
}

func (a *Automaton) transition(next State) {
	if a.state == next {
		return
	}
	a.logger.Debug().
		Str(xglog.FieldEvent, "connection.transition").
		Str(xglog.FieldOldState, a.state.String()).
		Str(xglog.FieldNewState, next.String()).
		Msg("connection state changed")
	a.state = next
	a.sub = 0
}

func (a *Automaton) fail(err error) {
	a.lastErr = err
	a.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "connection.failed").
		Int("attempts", a.attempts).
		Msg("connection sequence failed")
	outcome := "failed"
	if errors.Is(err, ErrBlocked) {
		outcome = "blocked"
	}
	metrics.RecordConnectionAttempt(outcome)
	a.transition(StateError)
}

func (a *Automaton) succeed(reason string) {
	a.logger.Info().
		Str(xglog.FieldEvent, "connection.connected").
		Str("reason", reason).
		Int("attempts", a.attempts).
		Msg("entered target environment")
	metrics.RecordConnectionAttempt("success")
	a.transition(StateConnected)
}

func (a *Automaton) tickTerminal() {}

func (a *Automaton) tickSendingCredentials() {
	a.chat.SendCommand(fmt.Sprintf(a.cfg.LoginCommand, a.cfg.Password))
	a.wait = a.ticks(a.cfg.CredentialsWait)
	a.transition(StateWaitingAfterCredentials)
}

func (a *Automaton) tickWaitingAfterCredentials() {
	a.transition(StateCheckingBlockSignal)
}

func (a *Automaton) tickCheckingBlockSignal() {
	if a.world.CountItems(ports.ItemBlockArtifact, ports.LocationHotbar) > 0 {
		a.logger.Warn().
			Str(xglog.FieldEvent, "connection.blocked").
			Int("attempt", a.attempts+1).
			Msg("block artifact detected, reconnecting")
		a.transition(StateBlockDisconnect)
		return
	}
	if a.world.CountItems(ports.ItemEntryItem, ports.LocationHotbar) == 0 {
		a.succeed("no_entry_item")
		return
	}
	a.menuTries, a.targetTries = 0, 0
	a.transition(StateSelectingEntryItem)
}

func (a *Automaton) tickSelectingEntryItem() {
	slot := a.world.FindSlot(ports.ItemEntryItem, ports.LocationHotbar)
	if slot == ports.NoSlot {
		slot = a.cfg.EntrySlot
	}
	a.world.SelectSlot(slot)
	a.wait = 1
	a.transition(StateOpeningEntryMenu)
}

func (a *Automaton) tickOpeningEntryMenu() {
	a.world.PrimaryInteract()
	a.wait = a.ticks(a.cfg.EntryMenuPoll)
	a.transition(StateWaitingEntryMenu)
}

func (a *Automaton) tickWaitingEntryMenu() {
	if a.world.IsSurfaceOpen(ports.SurfaceEntryMenu) {
		a.menuTries = 0
		a.transition(StateActivatingEntryOption)
		return
	}
	a.menuTries++
	if a.menuTries >= a.cfg.EntryMenuRetries {
		a.fail(ErrEntryMenu)
		return
	}
	a.transition(StateOpeningEntryMenu)
}

func (a *Automaton) tickActivatingEntryOption() {
	a.world.InteractWithSlot(a.cfg.EntryOptionSlot, ports.ClickPrimary)
	a.wait = a.ticks(a.cfg.TargetEnvironmentWait)
	a.transition(StateWaitingTargetEnvironment)
}

func (a *Automaton) tickWaitingTargetEnvironment() {
	menuOpen := a.world.IsSurfaceOpen(ports.SurfaceEntryMenu)
	if !menuOpen && a.world.CountItems(ports.ItemEntryItem, ports.LocationHotbar) == 0 {
		a.succeed("target_reached")
		return
	}
	a.targetTries++
	if a.targetTries >= a.cfg.TargetRetries {
		a.fail(ErrTargetEnvironment)
		return
	}
	if !menuOpen {
		// Menu closed without moving us: walk the menu again.
		a.transition(StateSelectingEntryItem)
		return
	}
	a.wait = a.ticks(a.cfg.EntryMenuPoll)
}

func (a *Automaton) tickBlockDisconnect() {
	if a.attempts >= a.cfg.BlockRetries {
		a.fail(ErrBlocked)
		return
	}
	a.attempts++
	a.session.Disconnect()
	a.wait = a.ticks(a.cfg.BlockReconnectDelay)
	a.transition(StateWaitingReconnect)
}

func (a *Automaton) tickWaitingReconnect() {
	if a.sub == 0 {
		a.session.Connect(a.cfg.Address)
		a.sub = 1
		a.connectPolls = 0
		a.wait = a.ticks(a.cfg.ConnectPoll)
		return
	}
	if a.session.IsConnected() {
		a.transition(StateSendingCredentials)
		return
	}
	a.connectPolls++
	if a.connectPolls >= a.cfg.ConnectPollRetries {
		a.fail(ErrReconnect)
		return
	}
	a.wait = a.ticks(a.cfg.ConnectPoll)
}
