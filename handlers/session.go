// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/scanpoint/auth"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/models"
)

// StationIDHeader names the station whose checkpoint a logout clears
const StationIDHeader = "X-Station-ID"

// noneToken leaves the cookie untouched
const noneToken = "none"

// SessionHandler manages the operator's access token cookie
type SessionHandler struct {
	stations *StationHandler
	secure   bool
}

func NewSessionHandler(stations *StationHandler, secure bool) *SessionHandler {
	return &SessionHandler{stations: stations, secure: secure}
}

// SetCookie handles POST /api/setCookie
// Body: {"accessToken": "..."}
func (h *SessionHandler) SetCookie(w http.ResponseWriter, r *http.Request) {
	var req models.SetCookieRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil || req.AccessToken == "" {
		middleware.JSONResponse(w, http.StatusBadRequest, models.MessageResponse{Message: "Missing token"})
		return
	}

	if req.AccessToken != noneToken {
		cookie, err := auth.NewAccessTokenCookie(req.AccessToken, h.secure)
		if err != nil {
			middleware.JSONResponse(w, http.StatusBadRequest, models.MessageResponse{Message: "Invalid token"})
			return
		}
		http.SetCookie(w, cookie)
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Cookies set successfully"})
}

// Logout handles POST /api/logout
// Clears the token cookie; with X-Station-ID and a valid X-Station-Key it
// also forgets that station's checkpoint
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if stationID := r.Header.Get(StationIDHeader); stationID != "" {
		key := r.Header.Get(middleware.StationKeyHeader)
		if err := auth.ValidateStationKey(stationID, key, h.stations.cfg.StationKeySalt); err != nil {
			middleware.ErrorResponse(w, http.StatusForbidden, "Invalid station key")
			return
		}
		if err := h.stations.clearCheckpoint(r.Context(), stationID); err != nil {
			slog.Error("failed to clear checkpoint", "station_id", stationID, "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to clear checkpoint")
			return
		}
	}

	http.SetCookie(w, auth.ClearAccessTokenCookie(h.secure))
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Logged out"})
}
