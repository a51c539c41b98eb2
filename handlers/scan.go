// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/camera"
	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/models"
	"github.com/danielhkuo/scanpoint/scan"
)

const maxFrameBytes = 10 << 20

// ScanHandler drives a station's scan workflow
type ScanHandler struct {
	stations *StationHandler
}

func NewScanHandler(stations *StationHandler) *ScanHandler {
	return &ScanHandler{stations: stations}
}

// View handles GET /stations/{id}/scan
func (h *ScanHandler) View(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// Start handles POST /stations/{id}/scan/start
// Body (optional): {"permission": "granted"|"denied"|"prompt"}
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	var req models.StartScanRequest
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	switch req.Permission {
	case "":
	case models.PermissionGranted, models.PermissionDenied, models.PermissionPrompt:
		entry.Camera.SetPermission(camera.Permission(req.Permission))
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "permission must be one of: granted, denied, prompt")
		return
	}

	h.stations.touch(r.Context(), entry.Station.ID())

	if err := entry.Station.StartScanning(r.Context()); err != nil {
		scanError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// Stop handles POST /stations/{id}/scan/stop
func (h *ScanHandler) Stop(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	entry.Station.StopScanning()
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// Restart handles POST /stations/{id}/scan/restart
// Starts a fresh scan with the permission already on record
func (h *ScanHandler) Restart(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := entry.Station.StartScanning(r.Context()); err != nil {
		scanError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// Frame handles POST /stations/{id}/scan/frame
// Body is a PNG, JPEG or WebP camera frame
func (h *ScanHandler) Frame(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxFrameBytes)
	defer body.Close()

	img, err := camera.ReadFrame(body)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Unreadable image")
		return
	}

	found, err := entry.Camera.PushFrame(img)
	if err != nil {
		scanError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.FrameResponse{Found: found})
}

// Decoded handles POST /stations/{id}/scan/decoded
// Body: {"text": "..."} decoded on the device
func (h *ScanHandler) Decoded(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	var req models.DecodedTextRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := entry.Camera.PushText(req.Text); err != nil {
		scanError(w, err)
		return
	}
	middleware.JSONResponse(w, http.StatusAccepted, models.FrameResponse{Found: true})
}

// Manual handles PUT /stations/{id}/scan/manual
// Body: {"input": "..."}; the response carries the live classification
func (h *ScanHandler) Manual(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	var req models.ManualInputRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	entry.Station.EditManual(req.Input)
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// CheckIn handles POST /stations/{id}/scan/checkin
func (h *ScanHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, checkin.DirectionCheckin)
}

// CheckOut handles POST /stations/{id}/scan/checkout
func (h *ScanHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, checkin.DirectionCheckout)
}

func (h *ScanHandler) submit(w http.ResponseWriter, r *http.Request, dir checkin.Direction) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	res, err := entry.Station.Submit(r.Context(), dir, auth.RequestToken(r))
	if err != nil {
		scanError(w, err)
		return
	}

	slog.Info("scan result", "station_id", entry.Station.ID(), "direction", dir, "outcome", res.Outcome)
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

// Dismiss handles POST /stations/{id}/scan/dismiss
// Closes the result and resets the scan; the camera stays off
func (h *ScanHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	entry.Station.Dismiss()
	middleware.JSONResponse(w, http.StatusOK, entry.Station.View())
}

func (h *ScanHandler) entry(w http.ResponseWriter, r *http.Request) (*scan.Entry, bool) {
	id := r.PathValue("id")
	entry, err := h.stations.open(r.Context(), id)
	if err != nil {
		h.stations.stationError(w, id, err)
		return nil, false
	}
	return entry, true
}

func scanError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, camera.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, camera.ErrSuperseded),
		errors.Is(err, camera.ErrNotStreaming),
		errors.Is(err, scan.ErrSubmitInFlight),
		errors.Is(err, scan.ErrNoCheckpoint):
		status = http.StatusConflict
	case errors.Is(err, checkin.ErrValidation), errors.Is(err, scan.ErrDecodeUnparseable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, checkin.ErrBadDirection):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.Error("scan request failed", "error", err)
	}
	middleware.CodedErrorResponse(w, status, err.Error(), scan.ErrorCode(err))
}
