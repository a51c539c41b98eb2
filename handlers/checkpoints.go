// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/proxy"
)

// LiveCounter reads the live count of a checkpoint
type LiveCounter interface {
	Get(ctx context.Context, checkpointID string) (int64, error)
}

type CheckpointHandler struct {
	fwd     checkin.Forwarder
	prefix  string
	counter LiveCounter
}

// NewCheckpointHandler builds the checkpoint routes. A nil counter disables
// live counts.
func NewCheckpointHandler(fwd checkin.Forwarder, prefix string, counter LiveCounter) *CheckpointHandler {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = checkin.DefaultPrefix
	}
	return &CheckpointHandler{fwd: fwd, prefix: prefix, counter: counter}
}

// List handles GET /checkpoints
// Fetches the checkpoints the operator may scan at from the event backend
func (h *CheckpointHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.fwd.Forward(r.Context(), proxy.Outbound{
		Method:      http.MethodGet,
		Path:        h.prefix + "/get-checkin-points-name",
		AccessToken: auth.RequestToken(r),
	})
	if err != nil {
		slog.Error("failed to fetch checkpoints", "error", err)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Failed to fetch checkpoints")
		return
	}
	defer resp.Body.Close()

	var payload struct {
		Data    []models.Checkpoint `json:"data"`
		Message string              `json:"message"`
	}
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("backend refused checkpoint list", "status", resp.StatusCode)
		middleware.ErrorResponse(w, http.StatusBadGateway, "Failed to fetch checkpoints")
		return
	}
	if decodeErr != nil || payload.Data == nil {
		message := payload.Message
		if message == "" {
			message = "No checkpoints available"
		}
		middleware.ErrorResponse(w, http.StatusBadGateway, message)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CheckpointListResponse{Checkpoints: payload.Data})
}

// LiveCount handles GET /checkpoints/{id}/live-count
func (h *CheckpointHandler) LiveCount(w http.ResponseWriter, r *http.Request) {
	if h.counter == nil {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Live count is not configured")
		return
	}

	id := r.PathValue("id")
	n, err := h.counter.Get(r.Context(), id)
	if err != nil {
		slog.Error("failed to read live count", "checkpoint", id, "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Live count unavailable")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.LiveCountResponse{
		CheckinpointID: id,
		CurrentCount:   n,
	})
}
