// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package bridge

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/8technologia/gps-realtime-tracker/internal/logging"
	"github.com/8technologia/gps-realtime-tracker/internal/metrics"
	"github.com/8technologia/gps-realtime-tracker/internal/middleware"
	"github.com/8technologia/gps-realtime-tracker/internal/upstream"
)

// Bridge upgrades browser connections and pairs each one with its own
// upstream Traccar socket. There is no shared hub or fan-out: every
// browser gets a dedicated upstream connection whose frames it
// receives verbatim and in order.
type Bridge struct {
	upstream *upstream.Client
	registry *Registry
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader
}

// NewBridge creates a bridge backed by the shared upstream client and
// connection registry.
func NewBridge(client *upstream.Client, registry *Registry) *Bridge {
	return &Bridge{
		upstream: client,
		registry: registry,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The dashboard is served same-origin; cross-origin pages
			// gain nothing here since the session lives server-side.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles a browser WebSocket request end to end: upgrade,
// session check, upstream dial, then bidirectional pumping until
// either side goes away.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	connID := middleware.GetRequestID(r.Context())
	if connID == "" {
		connID = uuid.New().String()
	}
	log := logging.With().Str("conn_id", connID).Logger()

	browserConn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := newClientConnection(connID, browserConn, nil)

	sess, err := b.upstream.EnsureSession(r.Context())
	if err != nil {
		metrics.BridgeAuthRejections.Inc()
		log.Warn().Err(err).Msg("Rejecting realtime client, upstream session unavailable")
		conn.CloseWithPolicy("tracking server authentication failed")
		return
	}

	header := http.Header{}
	header.Set("Cookie", sess.Cookie().String())
	upstreamConn, resp, err := b.dialer.Dial(b.upstream.SocketURL(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		metrics.BridgeAuthRejections.Inc()
		log.Warn().Err(err).Int("status", status).Msg("Upstream WebSocket dial failed")
		conn.CloseWithPolicy("tracking server unavailable")
		return
	}
	conn.upstream = upstreamConn
	upstreamConn.SetReadLimit(maxMessageSize)

	b.registry.Add(conn)
	metrics.BridgesOpenedTotal.Inc()
	metrics.BridgesActive.Inc()
	log.Info().Msg("Realtime bridge established")

	go b.pumpDownstream(conn, &log)
	go b.pumpUpstream(conn, &log)

	<-conn.Done()
	b.registry.Remove(conn)
	metrics.BridgesActive.Dec()
	log.Info().Msg("Realtime bridge closed")
}

// pumpDownstream copies frames from the upstream socket to the
// browser. Any error on either side ends the pair.
func (b *Bridge) pumpDownstream(conn *ClientConnection, log *zerolog.Logger) {
	defer conn.Terminate()
	for {
		messageType, payload, err := conn.upstream.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				log.Warn().Err(err).Msg("Upstream socket read failed")
			}
			return
		}
		if err := conn.writeBrowser(messageType, payload); err != nil {
			log.Debug().Err(err).Msg("Browser write failed")
			return
		}
		metrics.BridgeFramesForwarded.WithLabelValues("downstream").Inc()
	}
}

// pumpUpstream copies frames from the browser to the upstream socket.
// Browsers normally send nothing beyond protocol-level control frames,
// but anything they do send is forwarded untouched.
func (b *Bridge) pumpUpstream(conn *ClientConnection, log *zerolog.Logger) {
	defer conn.Terminate()
	for {
		messageType, payload, err := conn.browser.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				log.Debug().Err(err).Msg("Browser socket read ended")
			}
			return
		}
		if err := conn.upstream.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := conn.upstream.WriteMessage(messageType, payload); err != nil {
			log.Debug().Err(err).Msg("Upstream write failed")
			return
		}
		metrics.BridgeFramesForwarded.WithLabelValues("upstream").Inc()
	}
}

// isExpectedClose reports whether a read error is a routine
// end-of-connection rather than something worth a warning.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
