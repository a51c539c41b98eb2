// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/scanpoint/checkin"
	"github.com/danielhkuo/scanpoint/cliparse"
	"github.com/danielhkuo/scanpoint/db"
	"github.com/danielhkuo/scanpoint/livecount"
	"github.com/danielhkuo/scanpoint/metrics"
	"github.com/danielhkuo/scanpoint/middleware"
	"github.com/danielhkuo/scanpoint/proxy"
	"github.com/danielhkuo/scanpoint/router"
	"github.com/danielhkuo/scanpoint/scan"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Production)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Connect to the station database
	dbConn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	// Backend transport and check-in client
	fwd := proxy.New(proxy.Config{BaseURL: cfg.APIBaseURL, AuthToken: cfg.AuthToken})
	client := checkin.NewClient(fwd, checkin.Config{
		Prefix:  cfg.APIPrefix,
		Timeout: cfg.SubmitTimeout,
		Logger:  logger,
	})

	reg := metrics.NewRegistry()
	observers := scan.Observers{metrics.New(reg)}

	deps := router.Deps{
		Store:     db.NewStore(dbConn),
		Forwarder: fwd,
		Metrics:   reg,
	}

	// Live counts are optional
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = livecount.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		counter := livecount.New(rdb, logger)
		observers = append(observers, counter)
		deps.Counter = counter
		slog.Info("Live counts enabled")
	}

	registry := scan.NewRegistry(client, scan.Config{
		Cooldown:    cfg.Cooldown,
		VIPDuration: cfg.VIPDuration,
		Observer:    observers,
		Logger:      logger,
	})
	defer registry.CloseAll()
	deps.Registry = registry

	mux := router.NewRouter(deps, cfg)

	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	slog.Info("Listening", "port", cfg.Port, "backend", cfg.APIBaseURL)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

// newLogger writes text to a terminal and JSON everywhere else
func newLogger(production bool) *slog.Logger {
	level := slog.LevelDebug
	if production {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
