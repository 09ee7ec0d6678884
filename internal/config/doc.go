// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates and persists the agent configuration.
//
// Precedence is ENV (AGRIBOT_*) > YAML file > defaults. The file is decoded
// strictly: unknown keys are rejected. Store keeps rotating known-good
// backups next to the file and restores the newest valid one when the
// primary file fails to parse or validate. Holder publishes reloads to
// listeners; the workflow applies them at the next session boundary.
package config
