// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/cliparse"
	"github.com/danielhkuo/scanpoint/db"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/scan"
)

const maxLabelLength = 100

var errStationNotFound = errors.New("station not registered")

type StationHandler struct {
	store    *db.Store
	registry *scan.Registry
	cfg      cliparse.Config
}

func NewStationHandler(store *db.Store, registry *scan.Registry, cfg cliparse.Config) *StationHandler {
	return &StationHandler{store: store, registry: registry, cfg: cfg}
}

// Create handles POST /stations
// Registers a station and returns its ID and station key
func (h *StationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStationRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	req.Label = strings.TrimSpace(req.Label)
	if len(req.Label) > maxLabelLength {
		middleware.ErrorResponse(w, http.StatusBadRequest, "label must be at most 100 characters")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.StationKeySalt)
	now := time.Now()
	station := models.Station{
		ID:         auth.GenerateStationID(),
		Label:      req.Label,
		IPHash:     &ipHash,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := h.store.CreateStation(r.Context(), station); err != nil {
		slog.Error("failed to insert station", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to register station")
		return
	}

	slog.Info("station registered", "station_id", station.ID, "label", station.Label)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateStationResponse{
		StationID:  station.ID,
		StationKey: auth.GenerateStationKey(station.ID, h.cfg.StationKeySalt),
	})
}

// Get handles GET /stations/{id}
// Returns station info with a humanized last-seen time
func (h *StationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	station, err := h.store.GetStation(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Station not registered")
		return
	}
	if err != nil {
		slog.Error("failed to query station", "station_id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	info := models.StationInfo{
		Station:  station,
		LastSeen: humanize.Time(station.LastSeenAt),
	}
	cp, err := h.store.GetCheckpoint(r.Context(), id)
	switch {
	case err == nil:
		info.Checkpoint = &cp
	case !errors.Is(err, db.ErrNotFound):
		slog.Error("failed to query checkpoint", "station_id", id, "error", err)
	}

	h.touch(r.Context(), id)
	middleware.JSONResponse(w, http.StatusOK, info)
}

// GetCheckpoint handles GET /stations/{id}/checkpoint
func (h *StationHandler) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cp, err := h.store.GetCheckpoint(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		middleware.CodedErrorResponse(w, http.StatusNotFound, "No checkpoint selected", "no_checkpoint")
		return
	}
	if err != nil {
		slog.Error("failed to query checkpoint", "station_id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, cp)
}

// PutCheckpoint handles PUT /stations/{id}/checkpoint
// Stores the checkpoint the station scans at and hands it to the live station
func (h *StationHandler) PutCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var cp models.Checkpoint
	if err := middleware.ParseJSONBody(r, &cp); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	cp.ID = strings.TrimSpace(cp.ID)
	if cp.ID == "" || strings.TrimSpace(cp.Name) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id and name are required")
		return
	}

	if _, err := h.store.GetStation(r.Context(), id); err != nil {
		h.stationError(w, id, err)
		return
	}

	if err := h.store.SaveCheckpoint(r.Context(), id, cp); err != nil {
		slog.Error("failed to save checkpoint", "station_id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to save checkpoint")
		return
	}
	if entry, ok := h.registry.Get(id); ok {
		entry.Station.SetCheckpoint(cp)
	}

	slog.Info("checkpoint selected", "station_id", id, "checkpoint", cp.ID)
	middleware.JSONResponse(w, http.StatusOK, cp)
}

// open returns the live station for id, loading it on first use
func (h *StationHandler) open(ctx context.Context, id string) (*scan.Entry, error) {
	if entry, ok := h.registry.Get(id); ok {
		return entry, nil
	}

	if _, err := h.store.GetStation(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, errStationNotFound
		}
		return nil, err
	}

	entry := h.registry.Open(id)
	cp, err := h.store.GetCheckpoint(ctx, id)
	switch {
	case err == nil:
		entry.Station.SetCheckpoint(cp)
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}
	return entry, nil
}

// clearCheckpoint forgets the station's checkpoint in storage and in memory
func (h *StationHandler) clearCheckpoint(ctx context.Context, id string) error {
	if err := h.store.ClearCheckpoint(ctx, id); err != nil {
		return err
	}
	if entry, ok := h.registry.Get(id); ok {
		entry.Station.ClearCheckpoint()
	}
	return nil
}

func (h *StationHandler) touch(ctx context.Context, id string) {
	if err := h.store.TouchStation(ctx, id, time.Now()); err != nil {
		slog.Error("failed to update station last_seen_at", "station_id", id, "error", err)
	}
}

func (h *StationHandler) stationError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, errStationNotFound) || errors.Is(err, db.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Station not registered")
		return
	}
	slog.Error("failed to load station", "station_id", id, "error", err)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
}
