// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/resilience"
	"github.com/ManuGH/agribot/internal/signals"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeMod accepts one link at a time and records received actions.
type fakeMod struct {
	ln      net.Listener
	conns   chan net.Conn
	actions chan Action
}

func newFakeMod(t *testing.T) *fakeMod {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	m := &fakeMod{ln: ln, conns: make(chan net.Conn, 4), actions: make(chan Action, 64)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			m.conns <- conn
			go func() {
				sc := bufio.NewScanner(conn)
				for sc.Scan() {
					var a Action
					if json.Unmarshal(sc.Bytes(), &a) == nil {
						m.actions <- a
					}
				}
			}()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return m
}

func (m *fakeMod) push(t *testing.T, conn net.Conn, msg Message) {
	t.Helper()
	require.NoError(t, json.NewEncoder(conn).Encode(msg))
}

func (m *fakeMod) next(t *testing.T) Action {
	t.Helper()
	select {
	case a := <-m.actions:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("no action received")
		return Action{}
	}
}

var fastRedial = resilience.Backoff{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}

func startClient(t *testing.T, addr string, board *signals.Board) (*Client, func()) {
	t.Helper()
	return startClientWith(t, addr, board, fastRedial)
}

func startClientWith(t *testing.T, addr string, board *signals.Board, redial resilience.Backoff) (*Client, func()) {
	t.Helper()
	c := New(Options{
		Address:           addr,
		DialTimeout:       time.Second,
		CommandsPerSecond: 1000,
		CommandBurst:      10,
		StatusPrefix:      "[agribot]",
		Redial:            redial,
	}, board)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return c, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestClient_ActionsAndSnapshot(t *testing.T) {
	mod := newFakeMod(t)
	board := signals.NewBoard(0)
	c, stop := startClient(t, mod.ln.Addr().String(), board)
	defer stop()

	var conn net.Conn
	select {
	case conn = <-mod.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("client never dialed")
	}
	defer conn.Close()

	assert.False(t, c.IsConnected(), "no snapshot yet")
	assert.True(t, c.IsSurfaceOpen(ports.SurfaceDisconnected))

	mod.push(t, conn, Message{Type: TypeState, State: &Snapshot{
		Connected: true,
		Position:  "farm1",
		Surface:   "station",
		Items:     map[string]map[string]int{"inventory": {"full_unit": 12, "empty_unit": 4}},
		Slots:     map[string]map[string]int{"hotbar": {"seed": 8}},
	}})
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	assert.True(t, c.HasArrived("farm1"))
	assert.True(t, c.IsSurfaceOpen(ports.SurfaceStation))
	assert.True(t, c.IsSurfaceOpen(ports.SurfaceAny))
	assert.False(t, c.IsSurfaceOpen(ports.SurfaceStorage))
	assert.Equal(t, 12, c.CountItems(ports.ItemFullUnit, ports.LocationInventory))
	assert.Equal(t, 0, c.CountItems(ports.ItemSeed, ports.LocationInventory))
	assert.Equal(t, 8, c.FindSlot(ports.ItemSeed, ports.LocationHotbar))
	assert.Equal(t, ports.NoSlot, c.FindSlot(ports.ItemEntryItem, ports.LocationHotbar))

	c.MoveTo("farm2")
	c.InteractWithSlot(27, ports.ClickQuickMove)
	c.SendCommand("/home farm2")
	c.ShowStatus("Station 1/3", ports.SeverityInfo)

	assert.Equal(t, Action{Op: OpMove, Dest: "farm2"}, mod.next(t))
	assert.Equal(t, Action{Op: OpSlotClick, Slot: 27, Click: "quick_move"}, mod.next(t))
	assert.Equal(t, Action{Op: OpCommand, Text: "/home farm2"}, mod.next(t))
	assert.Equal(t, Action{Op: OpStatus, Text: "[agribot] Station 1/3", Severity: "info"}, mod.next(t))

	mod.push(t, conn, Message{Type: TypeChat, Line: "Un événement commence !"})
	require.Eventually(t, func() bool { return board.Match("événement") }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_LinkLossMarksDisconnected(t *testing.T) {
	mod := newFakeMod(t)
	redial := resilience.Backoff{InitialDelay: 300 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	c, stop := startClientWith(t, mod.ln.Addr().String(), nil, redial)
	defer stop()

	conn := <-mod.conns
	mod.push(t, conn, Message{Type: TypeState, State: &Snapshot{Connected: true}})
	require.Eventually(t, c.IsConnected, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !c.Linked() }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.IsSurfaceOpen(ports.SurfaceDisconnected))

	// The client redials.
	select {
	case conn = <-mod.conns:
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("client did not redial")
	}
}

func TestClient_DroppedLinksBackOff(t *testing.T) {
	mod := newFakeMod(t)
	redial := resilience.Backoff{InitialDelay: 50 * time.Millisecond, MaxDelay: 400 * time.Millisecond, Multiplier: 2}
	_, stop := startClientWith(t, mod.ln.Addr().String(), nil, redial)

	// The mod accepts and hangs up at once, every time.
	dials := 0
	deadline := time.After(300 * time.Millisecond)
loop:
	for {
		select {
		case conn := <-mod.conns:
			dials++
			conn.Close()
		case <-deadline:
			break loop
		}
	}
	stop()

	assert.GreaterOrEqual(t, dials, 2, "client redials after a dropped link")
	assert.LessOrEqual(t, dials, 4, "dropped links wait out the backoff")
}

func TestClient_OutboxFullDrops(t *testing.T) {
	c := New(Options{Address: "127.0.0.1:1", OutboxSize: 2}, nil)
	c.SendCommand("/a")
	c.SendCommand("/b")
	c.SendCommand("/c")
	assert.Len(t, c.outbox, 2)
	assert.Equal(t, 2, c.flushOutbox())
}

func TestClient_RunStopsWhileUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, stop := startClient(t, addr, nil)
	time.Sleep(30 * time.Millisecond)
	stop()
}
