// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the relay and the realtime bridge:
// - API endpoint latency and throughput
// - Upstream relay attempts, retries, and failures
// - Session authentication outcomes
// - WebSocket bridge population and liveness sweeps

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Upstream Relay Metrics
	RelayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of requests relayed to the tracking server",
		},
		[]string{"endpoint", "outcome"}, // outcome: "ok", "unauthorized", "protocol", "unavailable", "transport"
	)

	RelayRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_retries_total",
			Help: "Total number of relay attempts retried after re-authentication",
		},
	)

	RelayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Duration of upstream relay round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	UpstreamProtocolViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_protocol_violations_total",
			Help: "Total number of non-JSON success responses received from the tracking server",
		},
	)

	// Session Metrics
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of upstream authentication attempts",
		},
		[]string{"outcome"}, // "success", "rejected", "unavailable"
	)

	SessionAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_authenticated",
			Help: "Whether an upstream session token is currently held (1) or not (0)",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upstream_circuit_breaker_state",
			Help: "Circuit breaker state for the tracking server (0=closed, 1=half-open, 2=open)",
		},
	)

	// Realtime Bridge Metrics
	BridgesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_active_pairs",
			Help: "Current number of active browser/upstream socket pairs",
		},
	)

	BridgesOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_opened_total",
			Help: "Total number of realtime bridges established",
		},
	)

	BridgeFramesForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_frames_forwarded_total",
			Help: "Total number of WebSocket frames forwarded across bridges",
		},
		[]string{"direction"}, // "downstream" (upstream->browser), "upstream" (browser->upstream)
	)

	BridgeAuthRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_auth_rejections_total",
			Help: "Total number of bridge handshakes rejected for missing upstream credentials",
		},
	)

	LivenessSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveness_sweeps_total",
			Help: "Total number of liveness monitor sweep cycles",
		},
	)

	LivenessTerminations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveness_terminations_total",
			Help: "Total number of connections terminated for missing two consecutive liveness probes",
		},
	)
)

// RecordAPIRequest records metrics for a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRelayRequest records the outcome and duration of one relayed call.
func RecordRelayRequest(endpoint, outcome string, duration time.Duration) {
	RelayRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	RelayRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAuthAttempt records an upstream login outcome and keeps the
// session gauge in step with it.
func RecordAuthAttempt(outcome string) {
	AuthAttemptsTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		SessionAuthenticated.Set(1)
	} else {
		SessionAuthenticated.Set(0)
	}
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
