// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

// Command server runs the fleet dashboard backend: a session relay in
// front of a Traccar server plus a realtime WebSocket bridge, all under
// a suture supervision tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/8technologia/gps-realtime-tracker/internal/api"
	"github.com/8technologia/gps-realtime-tracker/internal/bridge"
	"github.com/8technologia/gps-realtime-tracker/internal/config"
	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/supervisor"
	"github.com/8technologia/gps-realtime-tracker/internal/supervisor/services"
	"github.com/8technologia/gps-realtime-tracker/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.URL).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting GPS realtime tracker")
	if cfg.Upstream.Email == "" || cfg.Upstream.Password == "" {
		// Not fatal: requests will surface authentication failures.
		logging.Warn().Msg("Upstream credentials not configured, relay calls will fail until they are set")
	}

	client := upstream.NewClient(cfg.Upstream)
	registry := bridge.NewRegistry()
	b := bridge.NewBridge(client, registry)
	monitor := bridge.NewMonitor(registry, bridge.DefaultSweepInterval)

	handler := api.NewHandler(client, b, cfg)
	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: api.NewRouter(handler, cfg),
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddBridgeService(monitor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping supervisor tree")
	case err := <-errCh:
		if err != nil && !errFromContext(err) {
			logging.Error().Err(err).Msg("Supervisor tree failed")
			os.Exit(1)
		}
	}

	// Wait for the tree to drain after a signal-triggered stop.
	if err := <-errCh; err != nil && !errFromContext(err) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// errFromContext reports whether an error is just the cancellation we
// asked for.
func errFromContext(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
