// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/agribot/internal/host"
	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/workflow"
)

type commandResponse struct {
	Accepted bool            `json:"accepted"`
	Message  string          `json:"message,omitempty"`
	Status   workflow.Status `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, host.CommandStart)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, host.CommandStop)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, cmd host.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.CommandTimeout)
	defer cancel()

	err := s.ctrl.Submit(ctx, cmd)
	logger := xglog.FromContext(r.Context())
	logger.Info().
		Str(xglog.FieldEvent, "api.command").
		Str("command", cmd.String()).
		AnErr("result", err).
		Msg("command submitted")

	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, commandResponse{Accepted: true, Status: s.ctrl.Status()})
	case errors.Is(err, workflow.ErrMaintenanceWindow):
		// Running, but paused until the window closes.
		writeJSON(w, r, http.StatusAccepted, commandResponse{Accepted: true, Message: err.Error(), Status: s.ctrl.Status()})
	case errors.Is(err, workflow.ErrRunning):
		RespondError(w, r, http.StatusConflict, ErrAlreadyRunning)
	case workflow.KindOf(err) == workflow.KindConfiguration:
		RespondError(w, r, http.StatusUnprocessableEntity, ErrConfiguration, err.Error())
	case errors.Is(err, host.ErrBusy), errors.Is(err, host.ErrStopped):
		RespondError(w, r, http.StatusServiceUnavailable, ErrBusy, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(w, r, http.StatusGatewayTimeout, ErrTimeout)
	default:
		RespondError(w, r, http.StatusInternalServerError, ErrInternal, err.Error())
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.reporter == nil {
		RespondError(w, r, http.StatusNotFound, ErrStatsDisabled)
		return
	}
	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			RespondError(w, r, http.StatusBadRequest, ErrBadRequest, "since must be a positive duration such as 24h")
			return
		}
		since = time.Now().Add(-d)
	}
	rep, err := s.reporter.Report(r.Context(), since)
	if err != nil {
		RespondError(w, r, http.StatusInternalServerError, ErrInternal, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}
