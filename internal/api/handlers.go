// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/8technologia/gps-realtime-tracker/internal/bridge"
	"github.com/8technologia/gps-realtime-tracker/internal/config"
	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/models"
	"github.com/8technologia/gps-realtime-tracker/internal/upstream"
	"github.com/8technologia/gps-realtime-tracker/internal/validation"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Handler carries the dependencies of every endpoint.
type Handler struct {
	upstream  *upstream.Client
	bridge    *bridge.Bridge
	cfg       *config.Config
	startedAt time.Time
}

// NewHandler creates the endpoint handler set.
func NewHandler(client *upstream.Client, b *bridge.Bridge, cfg *config.Config) *Handler {
	return &Handler{
		upstream:  client,
		bridge:    b,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// Devices relays the upstream device list.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "/api/devices", nil)
}

// Positions relays the latest known positions.
func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, "/api/positions", nil)
}

// RouteReport validates the history query server-side, then relays it.
// Validation failures never reach the upstream.
func (h *Handler) RouteReport(w http.ResponseWriter, r *http.Request) {
	q := validation.RouteQuery{
		DeviceID: r.URL.Query().Get("deviceId"),
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
	}
	params, err := q.Validate(time.Now())
	if err != nil {
		respondError(w, r, http.StatusBadRequest, models.ErrCodeValidation, err.Error())
		return
	}

	query := url.Values{}
	query.Set("deviceId", q.DeviceID)
	query.Set("from", params.From.UTC().Format(time.RFC3339))
	query.Set("to", params.To.UTC().Format(time.RFC3339))
	h.relay(w, r, "/api/reports/route", query)
}

// Health reports process health. Always 200: an unauthenticated
// upstream session is conveyed in the body, not as a failing probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:        "ok",
		Authenticated: h.upstream.Sessions().Authenticated(),
		Version:       Version,
		Uptime:        time.Since(h.startedAt).Round(time.Second).String(),
		Timestamp:     time.Now().UTC(),
	})
}

// AppConfig serves frontend bootstrap settings.
func (h *Handler) AppConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.AppConfigResponse{
		MapboxToken: h.cfg.Map.MapboxToken,
	})
}

// WebSocket hands the connection to the realtime bridge.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.bridge.ServeHTTP(w, r)
}

// relay forwards a REST call upstream and streams the response back
// unchanged, translating relay-boundary errors into the taxonomy.
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, path string, query url.Values) {
	resp, err := h.upstream.Relay(r.Context(), r.Method, path, query)
	if err != nil {
		h.relayError(w, r, path, err)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// Mid-stream failure; status already sent, log and move on.
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", path).Msg("Relay body copy interrupted")
	}
}

// relayError maps upstream package errors to the HTTP error taxonomy.
func (h *Handler) relayError(w http.ResponseWriter, r *http.Request, path string, err error) {
	log := logging.Ctx(r.Context())

	var protoErr *upstream.ProtocolError
	switch {
	case errors.As(err, &protoErr):
		// Excerpt already logged by the upstream client.
		respondError(w, r, http.StatusBadGateway, models.ErrCodeUpstreamProtocol,
			"invalid response from tracking server")
	case errors.Is(err, upstream.ErrUnavailable):
		log.Warn().Err(err).Str("path", path).Msg("Tracking server unavailable")
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeUpstreamUnavailable,
			"tracking server unavailable")
	default:
		log.Error().Err(err).Str("path", path).Msg("Relay failed")
		respondError(w, r, http.StatusInternalServerError, models.ErrCodeInternal,
			"internal server error")
	}
}
