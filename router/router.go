// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/scanpoint/cliparse"
	"github.com/danielhkuo/scanpoint/db"
	"github.com/danielhkuo/scanpoint/handlers"
	"github.com/danielhkuo/scanpoint/metrics"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/proxy"
	"github.com/danielhkuo/scanpoint/scan"
)

// Deps are the long-lived services the routes share
type Deps struct {
	Store     *db.Store
	Registry  *scan.Registry
	Forwarder *proxy.Forwarder
	// Counter may be nil when live counts are disabled
	Counter handlers.LiveCounter
	Metrics *prometheus.Registry
}

func NewRouter(deps Deps, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	stationHandler := handlers.NewStationHandler(deps.Store, deps.Registry, cfg)
	scanHandler := handlers.NewScanHandler(stationHandler)
	checkpointHandler := handlers.NewCheckpointHandler(deps.Forwarder, cfg.APIPrefix, deps.Counter)
	sessionHandler := handlers.NewSessionHandler(stationHandler, cfg.Production)

	// station routes need the station's key
	station := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithStationKey(cfg.StationKeySalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler(deps.Metrics))
	}

	// Operator session and backend passthrough
	mux.HandleFunc("POST /api/setCookie", middleware.WithLogging(sessionHandler.SetCookie))
	mux.HandleFunc("POST /api/logout", middleware.WithLogging(sessionHandler.Logout))
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		mux.HandleFunc(method+" /api/proxy", middleware.WithLogging(deps.Forwarder.ServeHTTP))
	}

	// Checkpoints
	mux.HandleFunc("GET /checkpoints", middleware.WithLogging(checkpointHandler.List))
	mux.HandleFunc("GET /checkpoints/{id}/live-count", middleware.WithLogging(checkpointHandler.LiveCount))

	// Station management
	mux.HandleFunc("POST /stations", middleware.WithLogging(stationHandler.Create))
	mux.HandleFunc("GET /stations/{id}", station(stationHandler.Get))
	mux.HandleFunc("GET /stations/{id}/checkpoint", station(stationHandler.GetCheckpoint))
	mux.HandleFunc("PUT /stations/{id}/checkpoint", station(stationHandler.PutCheckpoint))

	// Scan workflow
	mux.HandleFunc("GET /stations/{id}/scan", station(scanHandler.View))
	mux.HandleFunc("POST /stations/{id}/scan/start", station(scanHandler.Start))
	mux.HandleFunc("POST /stations/{id}/scan/stop", station(scanHandler.Stop))
	mux.HandleFunc("POST /stations/{id}/scan/restart", station(scanHandler.Restart))
	mux.HandleFunc("POST /stations/{id}/scan/frame", station(scanHandler.Frame))
	mux.HandleFunc("POST /stations/{id}/scan/decoded", station(scanHandler.Decoded))
	mux.HandleFunc("PUT /stations/{id}/scan/manual", station(scanHandler.Manual))
	mux.HandleFunc("POST /stations/{id}/scan/checkin", station(scanHandler.CheckIn))
	mux.HandleFunc("POST /stations/{id}/scan/checkout", station(scanHandler.CheckOut))
	mux.HandleFunc("POST /stations/{id}/scan/dismiss", station(scanHandler.Dismiss))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("scanpoint API v1"))
	})

	return mux
}
