// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package host runs the workflow on a single goroutine at a fixed quantum.
//
// Other goroutines never touch the workflow. They enqueue commands with
// Submit and read the snapshot published after every step with Status.
package host

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/clock"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/workflow"
)

var (
	// ErrBusy is returned when the command inbox is full.
	ErrBusy = errors.New("command inbox full")
	// ErrStopped answers commands still queued when the runner exits.
	ErrStopped = errors.New("runner stopped")
)

// InboxSize bounds pending commands.
const InboxSize = 8

// Command is a control request executed on the tick goroutine.
type Command int

const (
	CommandStart Command = iota
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Agent is what the runner drives. *workflow.Workflow satisfies it.
type Agent interface {
	Start() error
	Tick()
	Stop()
	Status() workflow.Status
}

type request struct {
	cmd   Command
	reply chan error
}

// Runner owns the tick goroutine.
type Runner struct {
	agent   Agent
	quantum time.Duration
	clock   clock.Clock
	logger  zerolog.Logger

	inbox    chan request
	status   atomic.Pointer[workflow.Status]
	lastTick atomic.Int64
	running  atomic.Bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the clock used for tick timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// New returns a runner that steps agent every quantum.
func New(agent Agent, quantum time.Duration, opts ...Option) *Runner {
	r := &Runner{
		agent:   agent,
		quantum: quantum,
		clock:   clock.Real{},
		logger:  xglog.WithComponent("host"),
		inbox:   make(chan request, InboxSize),
	}
	for _, o := range opts {
		o(r)
	}
	st := agent.Status()
	r.status.Store(&st)
	return r
}

// Submit queues cmd and waits for the tick goroutine to execute it.
func (r *Runner) Submit(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case r.inbox <- req:
	default:
		return ErrBusy
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the last published snapshot. Safe for concurrent use.
func (r *Runner) Status() workflow.Status {
	return *r.status.Load()
}

// LastTick returns when the agent last ticked, or zero.
func (r *Runner) LastTick() time.Time {
	ns := r.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Running reports whether Run is active.
func (r *Runner) Running() bool { return r.running.Load() }

// Step drains the inbox, ticks once and publishes a snapshot. Only the
// goroutine that owns the agent may call it; Run does so on every quantum.
func (r *Runner) Step() {
	r.drain()
	r.agent.Tick()
	r.lastTick.Store(r.clock.Now().UnixNano())
	r.publish()
}

func (r *Runner) drain() {
	for {
		select {
		case req := <-r.inbox:
			req.reply <- r.execute(req.cmd)
		default:
			return
		}
	}
}

func (r *Runner) execute(cmd Command) error {
	r.logger.Info().Str(xglog.FieldEvent, "host.command").Str("command", cmd.String()).Msg("executing command")
	switch cmd {
	case CommandStart:
		return r.agent.Start()
	case CommandStop:
		r.agent.Stop()
		return nil
	default:
		return errors.New("unknown command")
	}
}

func (r *Runner) publish() {
	st := r.agent.Status()
	r.status.Store(&st)
}

// Run steps the agent until ctx is done, then stops it. Commands still
// queued are answered with ErrStopped.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("runner already running")
	}
	defer r.running.Store(false)

	r.logger.Info().Str(xglog.FieldEvent, "host.started").Dur("quantum", r.quantum).Msg("tick loop started")
	ticker := time.NewTicker(r.quantum)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.agent.Stop()
			r.publish()
			r.reject()
			r.logger.Info().Str(xglog.FieldEvent, "host.stopped").Msg("tick loop stopped")
			return nil
		case <-ticker.C:
			r.Step()
		}
	}
}

func (r *Runner) reject() {
	for {
		select {
		case req := <-r.inbox:
			req.reply <- ErrStopped
		default:
			return
		}
	}
}
