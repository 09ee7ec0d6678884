// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workflow is the top-level tick-driven state machine: it connects,
// manages resources, walks every station through harvest, plant and refill,
// then plans the pause until the next session.
//
// Tick never blocks. Every wait is a tick counter or a wall-clock deadline
// checked on later ticks, and every world action is observed through a
// detector rather than awaited.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/agribot/internal/clock"
	"github.com/ManuGH/agribot/internal/config"
	"github.com/ManuGH/agribot/internal/connection"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/resilience"
	"github.com/ManuGH/agribot/internal/resource"
	"github.com/ManuGH/agribot/internal/schedule"
	"github.com/ManuGH/agribot/internal/statefile"
	"github.com/ManuGH/agribot/internal/telemetry"
)

// CycleStore persists cycle progress and the resource transition marker.
type CycleStore interface {
	resource.MarkerStore
	Load() (statefile.State, error)
	Update(fn func(*statefile.State)) error
}

// Options wires the workflow to its collaborators. World, Chat, Session and
// Config are required.
type Options struct {
	World   ports.World
	Chat    ports.Chat
	Session ports.Session
	Stats   ports.Stats
	Store   CycleStore
	Clock   clock.Clock
	Tracer  trace.Tracer
	// Config returns the current configuration. It is read at Start and at
	// the beginning of every session.
	Config func() config.AppConfig
}

// Workflow drives the agent. It is not safe for concurrent use: Start, Tick
// and Stop must be called from the same goroutine.
type Workflow struct {
	world   ports.World
	chat    ports.Chat
	session ports.Session
	stats   ports.Stats
	store   CycleStore
	clock   clock.Clock
	tracer  trace.Tracer
	source  func() config.AppConfig
	logger  zerolog.Logger

	cfg     config.AppConfig
	params  schedule.Params
	backoff resilience.Backoff
	conn    *connection.Automaton
	res     *resource.Manager
	breaker *resilience.CircuitBreaker

	s          Session
	errorState *Error
	probeLeft  int
	ctx        context.Context
	span       trace.Span
	cycleState statefile.State
}

// New returns an idle workflow.
func New(opts Options) *Workflow {
	if opts.Stats == nil {
		opts.Stats = ports.NopStats{}
	}
	if opts.Store == nil {
		opts.Store = &memoryStore{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.Tracer("github.com/ManuGH/agribot/internal/workflow")
	}
	w := &Workflow{
		world:   opts.World,
		chat:    opts.Chat,
		session: opts.Session,
		stats:   opts.Stats,
		store:   opts.Store,
		clock:   opts.Clock,
		tracer:  opts.Tracer,
		source:  opts.Config,
		logger:  xglog.WithComponent("workflow"),
		breaker: resilience.NewCircuitBreaker("stats", 3, time.Minute, resilience.WithClock(opts.Clock)),
		ctx:     context.Background(),
	}
	w.loadConfig()
	return w
}

// loadConfig takes a fresh configuration snapshot and rebuilds everything
// derived from it.
func (w *Workflow) loadConfig() {
	w.cfg = w.source()
	w.params = w.cfg.CycleParams()
	w.backoff = w.cfg.Recovery.Backoff()
	w.res = resource.New(resource.Config{
		FullCount:       w.cfg.Resource.FullCount,
		DepositKeep:     w.cfg.Resource.DepositKeep,
		Deposit:         w.cfg.Schedule.Deposit,
		Retrieve:        w.cfg.Schedule.Retrieve,
		DelayMin:        w.cfg.Resource.DelayMin,
		DelayMax:        w.cfg.Resource.DelayMax,
		DelayMultiplier: w.cfg.Resource.DelayMultiplier,
	}, w.world, w.store)
	w.conn = connection.New(connection.Config{
		Password:              w.cfg.Server.Password,
		LoginCommand:          w.cfg.Server.LoginCommand,
		Address:               w.cfg.Server.Address,
		EntrySlot:             w.cfg.Slots.Entry,
		EntryOptionSlot:       w.cfg.Slots.EntryOption,
		TickInterval:          w.cfg.TickInterval,
		CredentialsWait:       w.cfg.Timing.CredentialsWait,
		EntryMenuPoll:         w.cfg.Timing.EntryMenuPoll,
		TargetEnvironmentWait: w.cfg.Timing.TargetEnvironmentWait,
		BlockReconnectDelay:   w.cfg.Timing.BlockReconnectDelay,
		ConnectPoll:           w.cfg.Timing.ConnectPoll,
		EntryMenuRetries:      w.cfg.Retries.EntryMenu,
		TargetRetries:         w.cfg.Retries.TargetEnvironment,
		BlockRetries:          w.cfg.Retries.BlockSignal,
		ConnectPollRetries:    w.cfg.Retries.Connect,
	}, w.world, w.chat, w.session)
}

// Start validates the configuration and begins the first session.
//
// A configuration problem returns a KindConfiguration error and leaves the
// workflow idle. A start inside the maintenance window pauses until the
// window ends and returns ErrMaintenanceWindow; the workflow is running.
func (w *Workflow) Start() error {
	if w.s.State != StateIdle {
		return ErrRunning
	}
	w.loadConfig()
	w.s = Session{}

	if len(w.cfg.Stations) == 0 {
		return w.configError(ErrNoStations, "station list is empty")
	}
	if w.cfg.Server.RequireAuth && strings.TrimSpace(w.cfg.Server.Password) == "" {
		return w.configError(ErrMissingCredentials, "authentication required but no password configured")
	}

	st, err := w.store.Load()
	if err != nil {
		w.logger.Warn().Err(err).Str(xglog.FieldEvent, "workflow.state_load_failed").Msg("starting with an empty cycle")
		st = statefile.State{}
	}
	w.cycleState = st
	w.s.CycleStart = st.CycleStartAt
	w.s.WaterRefillsRemaining = st.WaterRefillsRemaining
	w.s.NextKind = ports.SessionHarvest

	now := w.clock.Now()
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.start").
		Int(xglog.FieldStations, len(w.cfg.Stations)).
		Str("plant", w.cfg.Plant.Type).
		Dur("growth_time", w.params.GrowthTime).
		Msg("workflow started")

	if w.params.Blackout.Contains(now) {
		end := w.params.Blackout.EndAfter(now)
		w.status(ports.SeverityWarning, "Maintenance window, waiting until %s", end.Format("15:04"))
		w.pauseUntil(end, PauseNextSession)
		return fmt.Errorf("start deferred to %s: %w", end.Format("15:04"), ErrMaintenanceWindow)
	}
	if d := w.cfg.Timing.StartupDelay; d > 0 {
		w.s.StartupEnd = now.Add(d)
		w.transition(StateWaitingStartup)
		return nil
	}
	w.openSession(ports.SessionHarvest, false)
	return nil
}

func (w *Workflow) configError(sentinel error, msg string) error {
	err := newError(KindConfiguration, sentinel, "%s", msg)
	w.s.Error = ErrorRecord{Kind: err.Kind, Message: err.Error()}
	w.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "workflow.config_error").
		Str(xglog.FieldErrorKind, err.Kind.String()).
		Msg("cannot start")
	w.status(ports.SeverityError, "Configuration error: %s", msg)
	metrics.RecordWorkflowError(err.Kind.String())
	return err
}

var handlers = [...]func(*Workflow){
	StateIdle:                (*Workflow).tickIdle,
	StateWaitingStartup:      (*Workflow).tickWaitingStartup,
	StateConnecting:          (*Workflow).tickConnecting,
	StateManagingResources:   (*Workflow).tickTransfer,
	StateTeleporting:         (*Workflow).tickTeleporting,
	StateWaitingArrival:      (*Workflow).tickWaitingArrival,
	StateOpeningStation:      (*Workflow).tickOpeningStation,
	StateHarvesting:          (*Workflow).tickHarvesting,
	StatePlanting:            (*Workflow).tickPlanting,
	StateFillingResource:     (*Workflow).tickFilling,
	StateRefillingContainers: (*Workflow).tickRefilling,
	StateNextStation:         (*Workflow).tickNextStation,
	StateEmptyingRemainder:   (*Workflow).tickEmptying,
	StateFetchingSupplies:    (*Workflow).tickTransfer,
	StateRecoveringSupplies:  (*Workflow).tickTransfer,
	StateDisconnecting:       (*Workflow).tickDisconnecting,
	StatePaused:              (*Workflow).tickPaused,
	StateError:               (*Workflow).tickError,
}

var _ = [1]struct{}{}[len(handlers)-int(stateCount)]

// Tick advances the workflow by one quantum.
func (w *Workflow) Tick() {
	if w.s.State == StateIdle {
		return
	}
	started := time.Now()
	defer func() { metrics.ObserveTick(time.Since(started)) }()

	if w.s.State.inWorld() && w.pollSignals() {
		return
	}
	if w.s.Wait > 0 {
		w.s.Wait--
		return
	}
	handlers[w.s.State](w)
}

// Stop releases any held posture or surface and returns to IDLE. It is safe
// in every state.
func (w *Workflow) Stop() {
	if w.s.State == StateIdle {
		return
	}
	w.world.EndPosture()
	w.world.CloseSurface()
	w.conn.Stop()
	w.endSpan(nil)
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.stop").
		Str("state", w.s.State.String()).
		Int(xglog.FieldCompleted, w.s.StationsCompleted).
		Msg("workflow stopped")
	w.transition(StateIdle)
	w.s.Wait = 0
	w.s.Resume = nil
	metrics.SetPauseRemaining(0)
}

// State returns the current state.
func (w *Workflow) State() State { return w.s.State }

// Session returns a copy of the session state.
func (w *Workflow) Session() Session { return w.s.clone() }

// Config returns the configuration snapshot in use.
func (w *Workflow) Config() config.AppConfig { return w.cfg }

func (w *Workflow) tickIdle() {}

func (w *Workflow) ticks(d time.Duration) int {
	return clock.Ticks(d, w.cfg.TickInterval)
}

func (w *Workflow) transition(next State) {
	prev := w.s.State
	w.s.Sub = 0
	w.s.Retries = 0
	if prev == next {
		return
	}
	w.s.State = next
	w.logger.Debug().
		Str(xglog.FieldEvent, "workflow.transition").
		Str(xglog.FieldOldState, prev.String()).
		Str(xglog.FieldNewState, next.String()).
		Int(xglog.FieldStationIndex, w.s.StationIndex).
		Msg("state changed")
	metrics.RecordTransition(prev.String(), next.String())
	metrics.SetWorkflowState(next.String(), stateNames[:])
	if next.inWorld() && !prev.inWorld() {
		w.probeLeft = w.ticks(w.cfg.Recovery.ProbeInterval)
	}
}

// status shows a short line to the player and mirrors it to the log.
func (w *Workflow) status(sev ports.Severity, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	var ev *zerolog.Event
	switch sev {
	case ports.SeverityError:
		ev = w.logger.Error()
	case ports.SeverityWarning:
		ev = w.logger.Warn()
	default:
		ev = w.logger.Info()
	}
	ev.Str(xglog.FieldEvent, "workflow.status").Msg(msg)
	w.chat.ShowStatus(msg, sev)
}

// openSession starts a new session with a fresh configuration snapshot.
// Merged sessions keep the connection.
func (w *Workflow) openSession(kind ports.SessionKind, merged bool) {
	force := w.s.Flags.ForceFullResupply
	w.loadConfig()

	now := w.clock.Now()
	stations := make([]Station, 0, len(w.cfg.Stations))
	for i, sc := range w.cfg.Stations {
		stations = append(stations, Station{Name: sc.Name, Index: i, NeedsResource: sc.RequiresResource()})
	}
	w.s.ID = uuid.NewString()
	w.s.Kind = kind
	w.s.Stations = stations
	w.s.TotalStations = len(stations)
	w.s.StationIndex = 0
	w.s.StationsCompleted = 0
	w.s.StartedAt = now
	w.s.Flags = Flags{
		WaterOnly:         kind == ports.SessionWaterOnly,
		FirstStation:      true,
		ForceFullResupply: force,
	}
	w.s.Error = ErrorRecord{}
	w.s.Resume = nil
	w.s.Escalations = 0
	w.s.Refill = w.decideRefill(now, kind, force)
	w.res.ResetSession()

	w.ctx = xglog.ContextWithSessionID(context.Background(), w.s.ID)
	w.ctx, w.span = w.tracer.Start(w.ctx, "workflow.session",
		trace.WithAttributes(telemetry.SessionAttributes(string(kind), len(stations), w.s.Refill, merged)...))
	w.logger = xglog.WithComponentFromContext(w.ctx, "workflow")
	w.logger.Info().
		Str(xglog.FieldEvent, "workflow.session_start").
		Str(xglog.FieldSessionKind, string(kind)).
		Bool("refill", w.s.Refill).
		Bool("merged", merged).
		Bool("force_full_resupply", force).
		Int(xglog.FieldStations, len(stations)).
		Msg("session started")

	if merged {
		w.s.Merged++
		w.afterConnected()
		return
	}
	w.enterConnecting()
}

func (w *Workflow) decideRefill(now time.Time, kind ports.SessionKind, force bool) bool {
	switch {
	case force, kind == ports.SessionWaterOnly:
		return true
	case w.cycleState.LastRefillAt.IsZero():
		return false
	default:
		return w.params.NeedsRefill(now, w.cycleState.LastRefillAt, w.params.Horizon())
	}
}

func (w *Workflow) endSpan(err error) {
	if w.span == nil {
		return
	}
	kind := ""
	if err != nil {
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
		kind = KindOf(err).String()
	}
	w.span.SetAttributes(telemetry.SessionEndAttributes(w.s.StationsCompleted, kind)...)
	w.span.End()
	w.span = nil
}

// recordStat writes a best-effort statistic through the breaker.
func (w *Workflow) recordStat(what string, fn func() error) {
	if err := w.breaker.Execute(fn); err != nil {
		ev := w.logger.Warn()
		if errors.Is(err, resilience.ErrCircuitOpen) {
			ev = w.logger.Debug()
		}
		ev.Err(err).Str(xglog.FieldEvent, "workflow.stats_failed").Str("stat", what).Msg("statistics not recorded")
	}
}

func (w *Workflow) pauseUntil(end time.Time, reason PauseReason) {
	w.s.PauseEnd = end
	w.s.Pause = reason
	w.s.Wait = 0
	metrics.SetPauseRemaining(end.Sub(w.clock.Now()))
	w.transition(StatePaused)
}

func (w *Workflow) tickWaitingStartup() {
	if w.clock.Now().Before(w.s.StartupEnd) {
		return
	}
	w.openSession(ports.SessionHarvest, false)
}

func (w *Workflow) tickPaused() {
	now := w.clock.Now()
	if now.Before(w.s.PauseEnd) {
		metrics.SetPauseRemaining(w.s.PauseEnd.Sub(now))
		return
	}
	if w.params.Blackout.Contains(now) {
		w.s.PauseEnd = w.params.Blackout.EndAfter(now)
		w.logger.Info().
			Str(xglog.FieldEvent, "workflow.maintenance").
			Time("until", w.s.PauseEnd).
			Msg("pause ended inside maintenance window, extending")
		return
	}
	metrics.SetPauseRemaining(0)
	switch w.s.Pause {
	case PauseReconnect:
		w.s.Flags.CrashReconnectPause = false
		w.enterConnecting()
	case PauseEvent:
		w.resumeAfterEvent()
	default:
		w.openSession(w.s.NextKind, false)
	}
}

// memoryStore keeps cycle state in memory when no store is configured.
type memoryStore struct {
	st statefile.State
}

func (m *memoryStore) Load() (statefile.State, error) { return m.st, nil }

func (m *memoryStore) Update(fn func(*statefile.State)) error {
	fn(&m.st)
	return nil
}

func (m *memoryStore) LoadMarker() (string, error) { return m.st.LastTransitionPeriod, nil }

func (m *memoryStore) SaveMarker(p string) error {
	m.st.LastTransitionPeriod = p
	return nil
}
