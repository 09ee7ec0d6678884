// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sim is a deterministic in-memory environment implementing the
// World, Chat and Session ports. It backs the --simulate mode and the
// workflow tests.
//
// Commands take effect immediately; callers still observe them through the
// detector methods on later ticks, as with a real client.
package sim

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/clock"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/ports"
	"github.com/ManuGH/agribot/internal/signals"
)

// storageSlots is the size of a storage surface. While a surface is open,
// inventory slots are numbered after it.
const storageSlots = 27

// Config describes the initial world.
type Config struct {
	Stations []string
	// Capacity is how many units fill a station.
	Capacity int
	// InitialWater is the fill level of every station at start.
	InitialWater int
	// ReadyAtStart marks every station as holding a ripe crop.
	ReadyAtStart bool
	GrowthTime   time.Duration
	// WaterDuration empties a full station after this long. Zero keeps water forever.
	WaterDuration time.Duration

	FullUnits    int
	EmptyUnits   int
	Seeds        int
	StorageUnits int

	TeleportPrefix  string
	LoginPrefix     string
	RefillCommand   string
	DepositHome     string
	RetrieveHome    string
	StationFullText string

	// RequireLogin keeps a fresh connection logged out until a login command.
	RequireLogin bool
	// RequireEntry puts the player in a lobby holding the entry item after login.
	RequireEntry bool
	// BlockLogins is how many logins show the block artifact.
	BlockLogins int
	// FailConnects is how many Connect calls fail.
	FailConnects int
	// StuckSurfaces is how many surface open attempts are ignored.
	StuckSurfaces int

	SeedSlot        int
	FullSlot        int
	EmptySlot       int
	EntrySlot       int
	BlockSlot       int
	HarvestSlot     int
	EntryOptionSlot int
}

// DefaultConfig returns a world with the given stations and slot layout
// matching the agent defaults.
func DefaultConfig(stations ...string) Config {
	return Config{
		Stations:        stations,
		Capacity:        4,
		ReadyAtStart:    true,
		GrowthTime:      time.Hour,
		FullUnits:       16,
		Seeds:           64,
		StorageUnits:    64,
		TeleportPrefix:  "/home ",
		LoginPrefix:     "/login ",
		RefillCommand:   "/fill",
		DepositHome:     "coffre1",
		RetrieveHome:    "coffre2",
		StationFullText: "Votre Station de Croissance est déjà pleine d'eau !",
		SeedSlot:        8,
		FullSlot:        0,
		EmptySlot:       1,
		EntrySlot:       4,
		BlockSlot:       7,
		HarvestSlot:     0,
		EntryOptionSlot: 13,
	}
}

// Station is the simulated state of one station.
type Station struct {
	Name      string
	Water     int
	Planted   bool
	PlantedAt time.Time
	Ripe      bool
	FilledAt  time.Time
	Harvests  int
	Plantings int
	Visits    int
}

// World is the simulated environment. All methods are safe for concurrent
// use so hosts may inspect it while the tick thread drives it.
type World struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	board  *signals.Board
	logger zerolog.Logger

	stations map[string]*Station
	position string
	surface  ports.SurfaceKind
	open     bool
	selected int
	posture  bool

	full, empty, seeds int
	storage            map[string]int

	connected  bool
	loggedIn   bool
	inLobby    bool
	blocked    bool
	blockLeft  int
	failLeft   int
	stuckLeft  int
	commands   []string
	messages   []string
	statuses   []string
	connects   int
	disconnect int
}

// New builds a world. The board receives chat lines the server would print.
func New(cfg Config, clk clock.Clock, board *signals.Board) *World {
	if clk == nil {
		clk = clock.Real{}
	}
	if board == nil {
		board = signals.NewBoard(0)
	}
	w := &World{
		cfg:       cfg,
		clock:     clk,
		board:     board,
		logger:    xglog.WithComponent("sim"),
		stations:  make(map[string]*Station, len(cfg.Stations)),
		storage:   map[string]int{cfg.DepositHome: 0, cfg.RetrieveHome: cfg.StorageUnits},
		full:      cfg.FullUnits,
		empty:     cfg.EmptyUnits,
		seeds:     cfg.Seeds,
		connected: true,
		loggedIn:  true,
		blockLeft: cfg.BlockLogins,
		failLeft:  cfg.FailConnects,
		stuckLeft: cfg.StuckSurfaces,
		selected:  -1,
	}
	for _, name := range cfg.Stations {
		w.stations[name] = &Station{
			Name:    name,
			Water:   cfg.InitialWater,
			Planted: cfg.ReadyAtStart,
			Ripe:    cfg.ReadyAtStart,
		}
	}
	return w
}

// Board returns the chat signal board.
func (w *World) Board() *signals.Board { return w.board }

// --- inspection helpers ---

// Station returns a copy of a station's state.
func (w *World) Station(name string) (Station, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.stations[name]
	if !ok {
		return Station{}, false
	}
	return *s, true
}

// Units returns held full and empty units.
func (w *World) Units() (full, empty int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.full, w.empty
}

// SetUnits overrides the held units.
func (w *World) SetUnits(full, empty int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.full, w.empty = full, empty
}

// Storage returns the units stored at a storage home.
func (w *World) Storage(home string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage[home]
}

// Commands returns every chat command sent so far.
func (w *World) Commands() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.commands...)
}

// Statuses returns every status line shown so far.
func (w *World) Statuses() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.statuses...)
}

// Position returns the current location.
func (w *World) Position() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

// Posture reports whether the posture is held.
func (w *World) Posture() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.posture
}

// SurfaceOpen reports whether any surface is open.
func (w *World) SurfaceOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// ConnectCount returns how many times Connect was called.
func (w *World) ConnectCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connects
}

// DisconnectCount returns how many times Disconnect was called.
func (w *World) DisconnectCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disconnect
}

// SetLoggedIn puts the player directly in the world (true) or logged out.
func (w *World) SetLoggedIn(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loggedIn = v
	w.inLobby = false
}

// Drop simulates a lost connection.
func (w *World) Drop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected, w.loggedIn, w.inLobby, w.blocked = false, false, false, false
	w.open, w.posture = false, false
	w.logger.Info().Str("event", "sim.dropped").Msg("connection dropped")
}

// Say makes the server print a chat line.
func (w *World) Say(line string) {
	w.board.Publish(line)
}

// --- World port ---

func (w *World) teleport(dest string) {
	w.position = dest
	w.open = false
	if st, ok := w.stations[dest]; ok {
		st.Visits++
	}
}

func (w *World) MoveTo(dest string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.teleport(dest)
}

func (w *World) HasArrived(dest string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loggedIn && !w.inLobby && w.position == dest
}

func (w *World) ripen(st *Station) {
	if st.Planted && !st.Ripe && w.cfg.GrowthTime > 0 && w.clock.Now().Sub(st.PlantedAt) >= w.cfg.GrowthTime {
		st.Ripe = true
	}
}

func (w *World) PrimaryInteract() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected || !w.loggedIn {
		return
	}
	if w.inLobby {
		if w.selected == w.cfg.EntrySlot && !w.stuck() {
			w.surface, w.open = ports.SurfaceEntryMenu, true
		}
		return
	}
	if w.position == w.cfg.DepositHome || w.position == w.cfg.RetrieveHome {
		if !w.stuck() {
			w.surface, w.open = ports.SurfaceStorage, true
		}
		return
	}
	st, ok := w.stations[w.position]
	if !ok || w.selected == w.cfg.FullSlot {
		return
	}
	if w.posture {
		if w.selected == w.cfg.SeedSlot && !st.Planted && w.seeds > 0 {
			st.Planted, st.PlantedAt, st.Ripe = true, w.clock.Now(), false
			st.Plantings++
			w.seeds--
		}
		return
	}
	if w.stuck() {
		return
	}
	w.surface, w.open = ports.SurfaceStation, true
}

func (w *World) stuck() bool {
	if w.stuckLeft > 0 {
		w.stuckLeft--
		return true
	}
	return false
}

func (w *World) SecondaryInteract() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.loggedIn || w.open || w.selected != w.cfg.FullSlot || w.full == 0 {
		return
	}
	if w.posture {
		// Poured on the ground.
		w.full--
		w.empty++
		return
	}
	st, ok := w.stations[w.position]
	if !ok {
		return
	}
	if w.cfg.WaterDuration > 0 && st.Water >= w.cfg.Capacity && w.clock.Now().Sub(st.FilledAt) >= w.cfg.WaterDuration {
		st.Water = 0
	}
	if st.Water >= w.cfg.Capacity {
		w.board.Publish(w.cfg.StationFullText)
		return
	}
	st.Water++
	w.full--
	w.empty++
	if st.Water == w.cfg.Capacity {
		st.FilledAt = w.clock.Now()
	}
}

func (w *World) InteractWithSlot(slot int, click ports.ClickKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return
	}
	switch w.surface {
	case ports.SurfaceEntryMenu:
		if slot == w.cfg.EntryOptionSlot {
			w.open, w.inLobby = false, false
		}
	case ports.SurfaceStation:
		st := w.stations[w.position]
		if st == nil {
			return
		}
		w.ripen(st)
		if slot == w.cfg.HarvestSlot && st.Ripe {
			st.Ripe, st.Planted = false, false
			st.Harvests++
		}
	case ports.SurfaceStorage:
		if click != ports.ClickQuickMove {
			return
		}
		home := w.position
		switch {
		case slot < storageSlots:
			if w.storage[home] > 0 {
				w.storage[home]--
				w.full++
			}
		case slot-storageSlots == w.cfg.FullSlot && w.full > 0:
			w.full--
			w.storage[home]++
		case slot-storageSlots == w.cfg.EmptySlot && w.empty > 0:
			w.empty--
			w.storage[home]++
		}
	}
}

func (w *World) SelectSlot(index int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = index
}

func (w *World) CloseSurface() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.open = false
}

func (w *World) IsSurfaceOpen(kind ports.SurfaceKind) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == ports.SurfaceDisconnected {
		return !w.connected
	}
	if !w.open {
		return false
	}
	return kind == ports.SurfaceAny || kind == w.surface
}

func (w *World) CountItems(kind ports.ItemKind, loc ports.Location) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if loc == ports.LocationSurface {
		if !w.open {
			return 0
		}
		switch {
		case kind == ports.ItemReadyHarvest && w.surface == ports.SurfaceStation:
			st := w.stations[w.position]
			if st == nil {
				return 0
			}
			w.ripen(st)
			if st.Ripe {
				return 1
			}
		case kind == ports.ItemFullUnit && w.surface == ports.SurfaceStorage:
			return w.storage[w.position]
		}
		return 0
	}
	switch kind {
	case ports.ItemFullUnit:
		return w.full
	case ports.ItemEmptyUnit:
		return w.empty
	case ports.ItemSeed:
		return w.seeds
	case ports.ItemEntryItem:
		if w.inLobby {
			return 1
		}
	case ports.ItemBlockArtifact:
		if w.blocked {
			return 1
		}
	}
	return 0
}

func (w *World) FindSlot(kind ports.ItemKind, loc ports.Location) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if loc == ports.LocationSurface {
		if w.open && w.surface == ports.SurfaceStorage && kind == ports.ItemFullUnit && w.storage[w.position] > 0 {
			return 0
		}
		return ports.NoSlot
	}
	offset := 0
	if w.open && w.surface == ports.SurfaceStorage {
		offset = storageSlots
	}
	slot := ports.NoSlot
	switch kind {
	case ports.ItemFullUnit:
		if w.full > 0 {
			slot = w.cfg.FullSlot
		}
	case ports.ItemEmptyUnit:
		if w.empty > 0 {
			slot = w.cfg.EmptySlot
		}
	case ports.ItemSeed:
		if w.seeds > 0 {
			slot = w.cfg.SeedSlot
		}
	case ports.ItemEntryItem:
		if w.inLobby {
			slot = w.cfg.EntrySlot
		}
	case ports.ItemBlockArtifact:
		if w.blocked {
			slot = w.cfg.BlockSlot
		}
	}
	if slot == ports.NoSlot {
		return slot
	}
	return slot + offset
}

func (w *World) BeginPosture() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posture = true
}

func (w *World) EndPosture() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posture = false
}

// --- Chat port ---

func (w *World) SendCommand(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands = append(w.commands, text)
	if !w.connected {
		return
	}
	switch {
	case strings.HasPrefix(text, w.cfg.LoginPrefix):
		w.login()
	case strings.HasPrefix(text, w.cfg.TeleportPrefix):
		if w.loggedIn && !w.inLobby {
			w.teleport(strings.TrimSpace(strings.TrimPrefix(text, w.cfg.TeleportPrefix)))
		}
	case text == w.cfg.RefillCommand:
		w.full += w.empty
		w.empty = 0
	}
}

func (w *World) login() {
	w.loggedIn = true
	if w.blockLeft > 0 {
		w.blockLeft--
		w.blocked = true
		w.inLobby = true
		return
	}
	w.inLobby = w.cfg.RequireEntry
}

func (w *World) SendMessage(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, text)
}

func (w *World) DetectEventText(pattern string) bool {
	return w.board.Match(pattern)
}

func (w *World) ShowStatus(text string, severity ports.Severity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses = append(w.statuses, fmt.Sprintf("%s: %s", severity, text))
}

// --- Session port ---

func (w *World) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *World) Connect(address string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connects++
	if w.failLeft > 0 {
		w.failLeft--
		w.logger.Debug().Str("address", address).Msg("simulated connect failure")
		return
	}
	w.connected = true
	w.loggedIn = !w.cfg.RequireLogin
	w.inLobby = false
	w.blocked = false
	w.position = ""
}

func (w *World) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disconnect++
	w.connected, w.loggedIn, w.inLobby, w.blocked = false, false, false, false
	w.open, w.posture = false, false
}

var (
	_ ports.World   = (*World)(nil)
	_ ports.Chat    = (*World)(nil)
	_ ports.Session = (*World)(nil)
)
