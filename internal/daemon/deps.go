// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/agribot/internal/config"
)

// Service is a long-running loop owned by the manager, such as the tick
// runner, the bridge link or the chat log tailer. Run must return once ctx
// is done.
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Config is the configuration snapshot taken at boot
	Config config.AppConfig

	// APIHandler serves the control API. Required when the API is enabled.
	APIHandler http.Handler

	// Services are started in order after the API server.
	Services []Service
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.Config.API.Enabled && d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	for i, s := range d.Services {
		if s.Run == nil {
			return fmt.Errorf("service %d (%q) has no run function", i, s.Name)
		}
	}
	return nil
}
