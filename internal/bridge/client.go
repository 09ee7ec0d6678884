// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bridge talks to the game client mod over a local TCP socket and
// implements the World, Chat and Session ports on top of it.
//
// Every port call only enqueues an action; a writer goroutine sends them in
// order. The mod pushes state snapshots and chat lines, which a reader
// goroutine stores for the detector methods and the signal board.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/resilience"
	"github.com/ManuGH/agribot/internal/signals"
)

const (
	writeTimeout = 2 * time.Second
	maxLine      = 1 << 20
)

// Options configure a Client.
type Options struct {
	Address     string
	DialTimeout time.Duration
	OutboxSize  int
	// CommandsPerSecond throttles chat commands to stay below server spam limits.
	CommandsPerSecond float64
	CommandBurst      int
	StatusPrefix      string
	// Redial paces reconnects to the mod.
	Redial resilience.Backoff
	// StableAfter is the link uptime after which Redial starts over.
	StableAfter time.Duration
}

// Client is safe for concurrent use; the tick thread calls the port methods
// while Run owns the socket.
type Client struct {
	opts    Options
	board   *signals.Board
	limiter *rate.Limiter
	outbox  chan Action
	logger  zerolog.Logger

	mu     sync.RWMutex
	linked bool
	snap   Snapshot
}

var (
	_ ports.World   = (*Client)(nil)
	_ ports.Chat    = (*Client)(nil)
	_ ports.Session = (*Client)(nil)
)

// New returns an unlinked client. Chat lines pushed by the mod go to board.
func New(opts Options, board *signals.Board) *Client {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 256
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.CommandsPerSecond <= 0 {
		opts.CommandsPerSecond = 1
	}
	if opts.CommandBurst <= 0 {
		opts.CommandBurst = 1
	}
	if opts.Redial.InitialDelay <= 0 {
		opts.Redial = resilience.Backoff{InitialDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2}
	}
	if opts.StableAfter <= 0 {
		opts.StableAfter = 30 * time.Second
	}
	if board == nil {
		board = signals.NewBoard(0)
	}
	return &Client{
		opts:    opts,
		board:   board,
		limiter: rate.NewLimiter(rate.Limit(opts.CommandsPerSecond), opts.CommandBurst),
		outbox:  make(chan Action, opts.OutboxSize),
		logger:  xglog.WithComponent("bridge"),
	}
}

// Linked reports whether the mod socket is up.
func (c *Client) Linked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.linked
}

// Run keeps the link to the mod alive until ctx is done. Failed dials and
// dropped links both wait out Redial; the attempt count only resets once a
// link stayed up for StableAfter.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := c.opts.Redial.Delay(attempt)
			attempt++
			c.logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "bridge.dial_failed").
				Int(xglog.FieldRetry, attempt).
				Dur("retry_in", delay).
				Msg("cannot reach client bridge")
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}

		linkedAt := time.Now()
		c.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(linkedAt) >= c.opts.StableAfter {
			attempt = 0
		}
		delay := c.opts.Redial.Delay(attempt)
		attempt++
		c.logger.Debug().
			Str(xglog.FieldEvent, "bridge.redial_scheduled").
			Int(xglog.FieldRetry, attempt).
			Dur("retry_in", delay).
			Msg("redialing client bridge")
		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

// sleepCtx waits d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", c.opts.Address, err)
	}
	return conn, nil
}

// serve runs one link until it drops or ctx is done.
func (c *Client) serve(ctx context.Context, conn net.Conn) {
	c.setLinked(true)
	c.logger.Info().Str(xglog.FieldEvent, "bridge.linked").Str("address", c.opts.Address).Msg("client bridge linked")

	readDone := make(chan error, 1)
	go func() { readDone <- c.read(conn) }()

	readerExited, err := c.write(ctx, conn, readDone)
	_ = conn.Close()
	if !readerExited {
		if rerr := <-readDone; err == nil {
			err = rerr
		}
	}

	c.setLinked(false)
	dropped := c.flushOutbox()
	c.logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "bridge.unlinked").
		Int("dropped_actions", dropped).
		Msg("client bridge link lost")
}

// write drains the outbox into conn. readerExited reports whether the
// reader's result was consumed.
func (c *Client) write(ctx context.Context, conn net.Conn, readDone <-chan error) (readerExited bool, err error) {
	enc := json.NewEncoder(conn)
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case err := <-readDone:
			return true, err
		case a := <-c.outbox:
			if a.Op == OpCommand {
				if err := c.limiter.Wait(ctx); err != nil {
					return false, nil
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := enc.Encode(a); err != nil {
				return false, fmt.Errorf("bridge: write %s: %w", a.Op, err)
			}
			if a.Op == OpCommand {
				metrics.RecordChatCommand("sent")
			}
		}
	}
}

func (c *Client) read(conn net.Conn) error {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			c.logger.Debug().Err(err).Str(xglog.FieldEvent, "bridge.bad_message").Msg("ignoring malformed message")
			continue
		}
		c.handle(m)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("bridge: closed by peer")
}

func (c *Client) handle(m Message) {
	switch m.Type {
	case TypeState:
		if m.State == nil {
			return
		}
		c.mu.Lock()
		c.snap = *m.State
		c.mu.Unlock()
	case TypeChat:
		c.board.Publish(m.Line)
	}
}

func (c *Client) setLinked(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linked = v
	if !v {
		c.snap = Snapshot{}
	}
}

func (c *Client) flushOutbox() int {
	n := 0
	for {
		select {
		case <-c.outbox:
			n++
		default:
			return n
		}
	}
}

func (c *Client) enqueue(a Action) {
	select {
	case c.outbox <- a:
	default:
		if a.Op == OpCommand {
			metrics.RecordChatCommand("dropped")
		}
		c.logger.Warn().Str(xglog.FieldEvent, "bridge.outbox_full").Str("op", a.Op).Msg("dropping action")
	}
}

func (c *Client) view() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap, c.linked
}

// World

func (c *Client) MoveTo(dest string)  { c.enqueue(Action{Op: OpMove, Dest: dest}) }
func (c *Client) PrimaryInteract()    { c.enqueue(Action{Op: OpPrimary}) }
func (c *Client) SecondaryInteract()  { c.enqueue(Action{Op: OpSecondary}) }
func (c *Client) SelectSlot(i int)    { c.enqueue(Action{Op: OpSelect, Slot: i}) }
func (c *Client) CloseSurface()       { c.enqueue(Action{Op: OpClose}) }
func (c *Client) BeginPosture()       { c.enqueue(Action{Op: OpPosture, On: true}) }
func (c *Client) EndPosture()         { c.enqueue(Action{Op: OpPosture, On: false}) }
func (c *Client) Connect(addr string) { c.enqueue(Action{Op: OpConnect, Address: addr}) }
func (c *Client) Disconnect()         { c.enqueue(Action{Op: OpDisconnect}) }

func (c *Client) InteractWithSlot(slot int, click ports.ClickKind) {
	c.enqueue(Action{Op: OpSlotClick, Slot: slot, Click: click.String()})
}

func (c *Client) HasArrived(dest string) bool {
	s, _ := c.view()
	return strings.EqualFold(s.Position, dest)
}

func (c *Client) IsSurfaceOpen(kind ports.SurfaceKind) bool {
	s, linked := c.view()
	switch kind {
	case ports.SurfaceDisconnected:
		return !linked || !s.Connected
	case ports.SurfaceAny:
		return s.Surface != ""
	default:
		return s.Surface == kind.String()
	}
}

func (c *Client) CountItems(kind ports.ItemKind, loc ports.Location) int {
	s, _ := c.view()
	return s.Items[loc.String()][kind.String()]
}

func (c *Client) FindSlot(kind ports.ItemKind, loc ports.Location) int {
	s, _ := c.view()
	if slot, ok := s.Slots[loc.String()][kind.String()]; ok {
		return slot
	}
	return ports.NoSlot
}

// Chat

func (c *Client) SendCommand(text string) { c.enqueue(Action{Op: OpCommand, Text: text}) }
func (c *Client) SendMessage(text string) { c.enqueue(Action{Op: OpMessage, Text: text}) }

// DetectEventText must be called from the tick thread only.
func (c *Client) DetectEventText(pattern string) bool { return c.board.Match(pattern) }

func (c *Client) ShowStatus(text string, severity ports.Severity) {
	if c.opts.StatusPrefix != "" {
		text = c.opts.StatusPrefix + " " + text
	}
	c.enqueue(Action{Op: OpStatus, Text: text, Severity: severity.String()})
}

// Session

func (c *Client) IsConnected() bool {
	s, linked := c.view()
	return linked && s.Connected
}
