// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the collaborators the automation core talks to.
//
// All world and chat operations are fire-and-forget. Their effects are
// observed on later ticks through the detector methods (IsSurfaceOpen,
// CountItems, HasArrived, DetectEventText), never through return values.
package ports

// ItemKind identifies a class of items the core needs to count or locate.
type ItemKind int

const (
	ItemFullUnit ItemKind = iota
	ItemEmptyUnit
	ItemSeed
	ItemReadyHarvest
	ItemBlockArtifact
	ItemEntryItem
)

func (k ItemKind) String() string {
	switch k {
	case ItemFullUnit:
		return "full_unit"
	case ItemEmptyUnit:
		return "empty_unit"
	case ItemSeed:
		return "seed"
	case ItemReadyHarvest:
		return "ready_harvest"
	case ItemBlockArtifact:
		return "block_artifact"
	case ItemEntryItem:
		return "entry_item"
	default:
		return "unknown"
	}
}

// Location scopes an item query.
type Location int

const (
	// LocationHotbar is the quick-access bar.
	LocationHotbar Location = iota
	// LocationInventory is the hotbar plus the main inventory.
	LocationInventory
	// LocationSurface is the currently open interaction surface (station or container).
	LocationSurface
)

func (l Location) String() string {
	switch l {
	case LocationHotbar:
		return "hotbar"
	case LocationInventory:
		return "inventory"
	case LocationSurface:
		return "surface"
	default:
		return "unknown"
	}
}

// SurfaceKind identifies an interaction surface (a menu or screen).
type SurfaceKind int

const (
	SurfaceAny SurfaceKind = iota
	SurfaceStation
	SurfaceStorage
	SurfaceEntryMenu
	SurfaceDisconnected
)

func (s SurfaceKind) String() string {
	switch s {
	case SurfaceAny:
		return "any"
	case SurfaceStation:
		return "station"
	case SurfaceStorage:
		return "storage"
	case SurfaceEntryMenu:
		return "entry_menu"
	case SurfaceDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ClickKind selects how a slot is clicked.
type ClickKind int

const (
	ClickPrimary ClickKind = iota
	ClickSecondary
	// ClickQuickMove transfers the whole stack between surface and inventory.
	ClickQuickMove
)

func (c ClickKind) String() string {
	switch c {
	case ClickPrimary:
		return "primary"
	case ClickSecondary:
		return "secondary"
	case ClickQuickMove:
		return "quick_move"
	default:
		return "unknown"
	}
}

// Severity of a status line shown to the operator.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SessionKind classifies a session for statistics.
type SessionKind string

const (
	SessionHarvest   SessionKind = "harvest"
	SessionWaterOnly SessionKind = "water"
	SessionRecovery  SessionKind = "recovery"
)

// NoSlot is returned by FindSlot when nothing matches.
const NoSlot = -1

// World drives the avatar inside the remote environment.
type World interface {
	MoveTo(dest string)
	HasArrived(dest string) bool
	PrimaryInteract()
	SecondaryInteract()
	InteractWithSlot(slot int, click ClickKind)
	SelectSlot(index int)
	CloseSurface()
	IsSurfaceOpen(kind SurfaceKind) bool
	CountItems(kind ItemKind, loc Location) int
	FindSlot(kind ItemKind, loc Location) int
	BeginPosture()
	EndPosture()
}

// Chat sends commands and surfaces status lines.
type Chat interface {
	SendCommand(text string)
	SendMessage(text string)
	DetectEventText(pattern string) bool
	ShowStatus(text string, severity Severity)
}

// Session controls the base network connection.
type Session interface {
	IsConnected() bool
	Connect(address string)
	Disconnect()
}

// Stats records completed work. Implementations are best effort; callers
// log and ignore errors.
type Stats interface {
	RecordStationCompleted(kind SessionKind) error
	RecordSessionCompleted(kind SessionKind) error
}

// NopStats discards all records.
type NopStats struct{}

func (NopStats) RecordStationCompleted(SessionKind) error { return nil }
func (NopStats) RecordSessionCompleted(SessionKind) error { return nil }
