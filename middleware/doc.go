// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /checkpoints", middleware.WithLogging(handler))

Each request gets an X-Request-ID (kept when the client sends one) that is
echoed in the response and logged with the status and duration.

# Station Keys

	mux.HandleFunc("GET /stations/{id}", middleware.WithStationKey(salt, handler))

The X-Station-Key header must match the {id} path value. A missing key is
401, a wrong one 403.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.CodedErrorResponse(w, http.StatusConflict, err.Error(), "submit_in_flight")

ParseJSONBody reads at most 1 MiB.

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Handles X-Forwarded-For and X-Real-IP.
*/
package middleware
