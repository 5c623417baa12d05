// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/8technologia/gps-realtime-tracker/internal/config"
	"github.com/8technologia/gps-realtime-tracker/internal/upstream"
)

// fakeTraccarWS stubs the upstream server: cookie login plus a push
// socket that replays scripted frames.
type fakeTraccarWS struct {
	t *testing.T

	rejectLogin bool
	frames      []string
	// closeAfterFrames makes the upstream close the socket once all
	// frames are sent.
	closeAfterFrames bool

	upgrader websocket.Upgrader

	// handshakeCookie receives the Cookie header of the socket upgrade.
	handshakeCookie chan string
	// socketClosed is closed when the upstream read loop ends.
	socketClosed chan struct{}
}

func newFakeTraccarWS(t *testing.T) *fakeTraccarWS {
	return &fakeTraccarWS{
		t:               t,
		handshakeCookie: make(chan string, 1),
		socketClosed:    make(chan struct{}),
	}
}

func (f *fakeTraccarWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/session":
		if f.rejectLogin {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "upstream-session"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1}`))
	case "/api/socket":
		f.handshakeCookie <- r.Header.Get("Cookie")
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			f.t.Errorf("upstream upgrade failed: %v", err)
			return
		}
		for _, frame := range f.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				f.t.Errorf("upstream frame write failed: %v", err)
				return
			}
		}
		if f.closeAfterFrames {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			close(f.socketClosed)
			return
		}
		// Block until the bridge side goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(f.socketClosed)
				return
			}
		}
	default:
		http.NotFound(w, r)
	}
}

// startBridge wires a Bridge to a fake upstream and returns a dialed
// browser connection.
func startBridge(t *testing.T, fake *fakeTraccarWS) (*websocket.Conn, *Registry) {
	t.Helper()

	upstreamSrv := httptest.NewServer(fake)
	t.Cleanup(upstreamSrv.Close)

	client := upstream.NewClient(config.UpstreamConfig{
		URL:      upstreamSrv.URL,
		Email:    "ops@example.com",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	registry := NewRegistry()
	b := NewBridge(client, registry)

	bridgeSrv := httptest.NewServer(http.HandlerFunc(b.ServeHTTP))
	t.Cleanup(bridgeSrv.Close)

	wsURL := "ws" + strings.TrimPrefix(bridgeSrv.URL, "http")
	browser, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("browser dial failed: %v", err)
	}
	t.Cleanup(func() { _ = browser.Close() })
	return browser, registry
}

func TestBridgeForwardsFramesVerbatimInOrder(t *testing.T) {
	fake := newFakeTraccarWS(t)
	fake.frames = []string{
		`{"positions":[{"id":10,"deviceId":1,"latitude":48.85,"longitude":2.35}]}`,
		`{"devices":[{"id":1,"status":"online"}]}`,
		`{"events":[{"id":7,"type":"geofenceEnter","deviceId":1}]}`,
	}
	browser, _ := startBridge(t, fake)

	for i, want := range fake.frames {
		_ = browser.SetReadDeadline(time.Now().Add(3 * time.Second))
		messageType, payload, err := browser.ReadMessage()
		if err != nil {
			t.Fatalf("frame %d read failed: %v", i, err)
		}
		if messageType != websocket.TextMessage {
			t.Errorf("frame %d type = %d, want text", i, messageType)
		}
		if string(payload) != want {
			t.Errorf("frame %d = %s, want %s byte-for-byte", i, payload, want)
		}
	}
}

func TestBridgeSendsSessionCookieOnHandshake(t *testing.T) {
	fake := newFakeTraccarWS(t)
	startBridge(t, fake)

	select {
	case cookie := <-fake.handshakeCookie:
		if !strings.Contains(cookie, "JSESSIONID=upstream-session") {
			t.Errorf("handshake cookie = %q, want JSESSIONID", cookie)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("upstream never saw a socket handshake")
	}
}

func TestBridgeClosesWith1008WhenAuthFails(t *testing.T) {
	fake := newFakeTraccarWS(t)
	fake.rejectLogin = true
	browser, _ := startBridge(t, fake)

	_ = browser.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := browser.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("read error = %v, want close 1008", err)
	}
}

func TestBrowserCloseTearsDownUpstream(t *testing.T) {
	fake := newFakeTraccarWS(t)
	browser, registry := startBridge(t, fake)

	// Wait for the pair to form before closing.
	waitFor(t, func() bool { return registry.Len() == 1 }, "bridge never registered")

	_ = browser.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = browser.Close()

	select {
	case <-fake.socketClosed:
	case <-time.After(3 * time.Second):
		t.Fatal("upstream socket not closed after browser went away")
	}
	waitFor(t, func() bool { return registry.Len() == 0 }, "registry entry not removed")
}

func TestUpstreamCloseTearsDownBrowser(t *testing.T) {
	fake := newFakeTraccarWS(t)
	fake.frames = []string{`{"positions":[]}`}
	fake.closeAfterFrames = true
	browser, registry := startBridge(t, fake)

	_ = browser.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := browser.ReadMessage(); err != nil {
		t.Fatalf("expected the scripted frame first, got error: %v", err)
	}

	_ = browser.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := browser.ReadMessage(); err == nil {
		t.Error("browser read should fail after upstream closed")
	}
	waitFor(t, func() bool { return registry.Len() == 0 }, "registry entry not removed")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
