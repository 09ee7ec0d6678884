// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/agribot/internal/schedule"
)

// AppConfig is the full agent configuration.
type AppConfig struct {
	Version      string        `yaml:"-"`
	ConfigPath   string        `yaml:"-"`
	LogLevel     string        `yaml:"log_level"`
	DataDir      string        `yaml:"data_dir"`
	TickInterval time.Duration `yaml:"tick_interval"`
	// Simulate runs against the in-memory world instead of a game client.
	Simulate bool `yaml:"simulate"`

	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Stations  []StationConfig `yaml:"stations"`
	Plant     PlantConfig     `yaml:"plant"`
	Timing    TimingConfig    `yaml:"timing"`
	Retries   RetryConfig     `yaml:"retries"`
	Resource  ResourceConfig  `yaml:"resource"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Chat      ChatConfig      `yaml:"chat"`
	Slots     SlotConfig      `yaml:"slots"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig describes the remote environment and how to log into it.
type ServerConfig struct {
	Address string `yaml:"address"`
	// Password is submitted with LoginCommand. Empty disables authentication.
	Password string `yaml:"password"`
	// RequireAuth makes an empty password a configuration error.
	RequireAuth  bool   `yaml:"require_auth"`
	LoginCommand string `yaml:"login_command"`
}

// BridgeConfig locates the game client bridge that executes world actions.
// Unused when Simulate is set.
type BridgeConfig struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// OutboxSize bounds actions queued while the bridge is slow.
	OutboxSize int `yaml:"outbox_size"`
}

// StationConfig is one station. NeedsResource defaults to true.
type StationConfig struct {
	Name          string `yaml:"name"`
	NeedsResource *bool  `yaml:"needs_resource,omitempty"`
}

// RequiresResource resolves the NeedsResource default.
func (s StationConfig) RequiresResource() bool {
	return s.NeedsResource == nil || *s.NeedsResource
}

// PlantConfig selects the crop and its growth time.
type PlantConfig struct {
	Type string `yaml:"type"`
	// GrowthBoost is a percentage applied by the growth formula.
	GrowthBoost float64 `yaml:"growth_boost"`
	// GrowthTime overrides the table when positive.
	GrowthTime time.Duration `yaml:"growth_time"`
}

// TimingConfig holds the delays between sub-steps. Each is rounded up to
// whole ticks.
type TimingConfig struct {
	StartupDelay          time.Duration `yaml:"startup_delay"`
	TeleportDelay         time.Duration `yaml:"teleport_delay"`
	FirstStationExtra     time.Duration `yaml:"first_station_extra"`
	ArrivalPoll           time.Duration `yaml:"arrival_poll"`
	OpenPoll              time.Duration `yaml:"open_poll"`
	OpenStabilize         time.Duration `yaml:"open_stabilize"`
	HarvestPoll           time.Duration `yaml:"harvest_poll"`
	PostureStep           time.Duration `yaml:"posture_step"`
	CloseDelay            time.Duration `yaml:"close_delay"`
	CredentialsWait       time.Duration `yaml:"credentials_wait"`
	EntryMenuPoll         time.Duration `yaml:"entry_menu_poll"`
	TargetEnvironmentWait time.Duration `yaml:"target_environment_wait"`
	BlockReconnectDelay   time.Duration `yaml:"block_reconnect_delay"`
	TransferStep          time.Duration `yaml:"transfer_step"`
	ConnectPoll           time.Duration `yaml:"connect_poll"`
}

// RetryConfig bounds local retry loops.
type RetryConfig struct {
	Arrival           int `yaml:"arrival"`
	OpenStation       int `yaml:"open_station"`
	Harvest           int `yaml:"harvest"`
	EntryMenu         int `yaml:"entry_menu"`
	TargetEnvironment int `yaml:"target_environment"`
	BlockSignal       int `yaml:"block_signal"`
	StorageOpen       int `yaml:"storage_open"`
	Connect           int `yaml:"connect"`
	// SurfaceEscalations is how many times a surface failure may force a
	// reconnect before the agent stops.
	SurfaceEscalations int `yaml:"surface_escalations"`
}

// ResourceConfig tunes the consumable accounting.
type ResourceConfig struct {
	FullCount          int           `yaml:"full_count"`
	DepositKeep        int           `yaml:"deposit_keep"`
	MaxUnitsPerStation int           `yaml:"max_units_per_station"`
	MaxUnitsSingleMode int           `yaml:"max_units_single_mode"`
	UnitTimeout        time.Duration `yaml:"unit_timeout"`
	StationTimeout     time.Duration `yaml:"station_timeout"`
	RefillTimeout      time.Duration `yaml:"refill_timeout"`
	DelayMin           time.Duration `yaml:"delay_min"`
	DelayMax           time.Duration `yaml:"delay_max"`
	DelayMultiplier    float64       `yaml:"delay_multiplier"`
	DepositHome        string        `yaml:"deposit_home"`
	RetrieveHome       string        `yaml:"retrieve_home"`
	RefillCommand      string        `yaml:"refill_command"`
}

// SingleUnit reports whether the agent works with a single full unit.
func (r ResourceConfig) SingleUnit() bool { return r.FullCount <= 1 }

// StationCap is the safety cap on units poured into one station.
func (r ResourceConfig) StationCap() int {
	if r.SingleUnit() {
		return r.MaxUnitsSingleMode
	}
	return r.MaxUnitsPerStation
}

// ScheduleConfig holds the daily windows and cycle timings.
type ScheduleConfig struct {
	Maintenance    schedule.Window `yaml:"maintenance"`
	Deposit        schedule.Window `yaml:"deposit"`
	Retrieve       schedule.Window `yaml:"retrieve"`
	WaterDuration  time.Duration   `yaml:"water_duration"`
	WaterMargin    time.Duration   `yaml:"water_margin"`
	HarvestMargin  time.Duration   `yaml:"harvest_margin"`
	MergeThreshold time.Duration   `yaml:"merge_threshold"`
}

// RecoveryConfig tunes crash and event recovery.
type RecoveryConfig struct {
	ProbeInterval       time.Duration `yaml:"probe_interval"`
	CrashReconnectDelay time.Duration `yaml:"crash_reconnect_delay"`
	EventPause          time.Duration `yaml:"event_pause"`
	ErrorRetryDelay     time.Duration `yaml:"error_retry_delay"`
	BackoffInitial      time.Duration `yaml:"backoff_initial"`
	BackoffMax          time.Duration `yaml:"backoff_max"`
	BackoffMultiplier   float64       `yaml:"backoff_multiplier"`
}

// ChatConfig holds command templates and the patterns watched in chat.
type ChatConfig struct {
	TeleportCommand    string  `yaml:"teleport_command"`
	StationFullPattern string  `yaml:"station_full_pattern"`
	EventPattern       string  `yaml:"event_pattern"`
	DisconnectPattern  string  `yaml:"disconnect_pattern"`
	LogPath            string  `yaml:"log_path"`
	LogEncoding        string  `yaml:"log_encoding"`
	CommandsPerSecond  float64 `yaml:"commands_per_second"`
	CommandBurst       int     `yaml:"command_burst"`
	StatusPrefix       string  `yaml:"status_prefix"`
}

// SlotConfig maps hotbar slots (0-based).
type SlotConfig struct {
	Seed     int `yaml:"seed"`
	FullUnit int `yaml:"full_unit"`
	Entry    int `yaml:"entry"`
	// Harvest is the surface slot holding the ready crop.
	Harvest int `yaml:"harvest"`
	// EntryOption is the entry menu slot that leads to the target environment.
	EntryOption int `yaml:"entry_option"`
}

// APIConfig configures the control HTTP server.
type APIConfig struct {
	Enabled         bool          `yaml:"enabled"`
	ListenAddr      string        `yaml:"listen_addr"`
	Token           string        `yaml:"token"`
	RateLimit       int           `yaml:"rate_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ExporterType string  `yaml:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// StationNames returns the configured station names in order.
func (c AppConfig) StationNames() []string {
	out := make([]string, 0, len(c.Stations))
	for _, s := range c.Stations {
		out = append(out, s.Name)
	}
	return out
}

// Clone returns a deep copy. The workflow snapshots config per session.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Stations = make([]StationConfig, len(c.Stations))
	for i, s := range c.Stations {
		out.Stations[i] = s
		if s.NeedsResource != nil {
			v := *s.NeedsResource
			out.Stations[i].NeedsResource = &v
		}
	}
	return out
}
