// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/agribot/internal/schedule"
)

const (
	// DefaultStationFullText is what the server prints when a station refuses more water.
	DefaultStationFullText = "Votre Station de Croissance est déjà pleine d'eau !"
	// DefaultGrowthTime is used when neither a plant type nor an override is set.
	DefaultGrowthTime = 10 * time.Hour
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:     "info",
		DataDir:      "data",
		TickInterval: 50 * time.Millisecond,
		Server: ServerConfig{
			LoginCommand: "/login %s",
		},
		Bridge: BridgeConfig{
			Address:     "127.0.0.1:25580",
			DialTimeout: 5 * time.Second,
			OutboxSize:  256,
		},
		Timing: TimingConfig{
			StartupDelay:          5 * time.Second,
			TeleportDelay:         2 * time.Second,
			FirstStationExtra:     3 * time.Second,
			ArrivalPoll:           500 * time.Millisecond,
			OpenPoll:              500 * time.Millisecond,
			OpenStabilize:         800 * time.Millisecond,
			HarvestPoll:           500 * time.Millisecond,
			PostureStep:           300 * time.Millisecond,
			CloseDelay:            300 * time.Millisecond,
			CredentialsWait:       2 * time.Second,
			EntryMenuPoll:         500 * time.Millisecond,
			TargetEnvironmentWait: 8 * time.Second,
			BlockReconnectDelay:   10 * time.Second,
			TransferStep:          300 * time.Millisecond,
			ConnectPoll:           time.Second,
		},
		Retries: RetryConfig{
			Arrival:            3,
			OpenStation:        3,
			Harvest:            3,
			EntryMenu:          5,
			TargetEnvironment:  3,
			BlockSignal:        3,
			StorageOpen:        3,
			Connect:            30,
			SurfaceEscalations: 3,
		},
		Resource: ResourceConfig{
			FullCount:          16,
			DepositKeep:        1,
			MaxUnitsPerStation: 32,
			MaxUnitsSingleMode: 50,
			UnitTimeout:        5 * time.Second,
			StationTimeout:     3 * time.Minute,
			RefillTimeout:      10 * time.Second,
			DelayMin:           500 * time.Millisecond,
			DelayMax:           3 * time.Second,
			DelayMultiplier:    1.5,
			DepositHome:        "coffre1",
			RetrieveHome:       "coffre2",
			RefillCommand:      "/fill",
		},
		Schedule: ScheduleConfig{
			Maintenance:    schedule.MustParseWindow("05:50-06:30"),
			Deposit:        schedule.MustParseWindow("06:30-11:30"),
			Retrieve:       schedule.MustParseWindow("11:30-24:00"),
			WaterDuration:  12 * time.Hour,
			WaterMargin:    10 * time.Minute,
			HarvestMargin:  time.Minute,
			MergeThreshold: time.Hour,
		},
		Recovery: RecoveryConfig{
			ProbeInterval:       5 * time.Second,
			CrashReconnectDelay: 30 * time.Second,
			EventPause:          2 * time.Hour,
			ErrorRetryDelay:     time.Minute,
			BackoffInitial:      10 * time.Second,
			BackoffMax:          5 * time.Minute,
			BackoffMultiplier:   2,
		},
		Chat: ChatConfig{
			TeleportCommand:    "/home %s",
			StationFullPattern: DefaultStationFullText,
			LogEncoding:        "utf-8",
			CommandsPerSecond:  1,
			CommandBurst:       3,
			StatusPrefix:       "[agribot]",
		},
		Slots: SlotConfig{
			Seed:        8,
			FullUnit:    0,
			Entry:       4,
			Harvest:     0,
			EntryOption: 13,
		},
		API: APIConfig{
			Enabled:         true,
			ListenAddr:      "127.0.0.1:8089",
			RateLimit:       60,
			ShutdownTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
