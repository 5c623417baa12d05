// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockServer implements HTTPServer with scriptable behavior.
type mockServer struct {
	listenErr   error
	shutdownErr error
	// started is closed when ListenAndServe is called.
	started chan struct{}
	// release unblocks ListenAndServe.
	release chan struct{}
}

func newMockServer() *mockServer {
	return &mockServer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (m *mockServer) ListenAndServe() error {
	close(m.started)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	mock := newMockServer()
	svc := NewHTTPServerService(mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-mock.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	mock := newMockServer()
	mock.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(mock, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, mock.listenErr) {
		t.Errorf("Serve() = %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	mock := newMockServer()
	mock.shutdownErr = errors.New("connections still draining")
	svc := NewHTTPServerService(mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-mock.started
	cancel()

	select {
	case err := <-done:
		if err == nil || !errors.Is(err, mock.shutdownErr) {
			t.Errorf("Serve() = %v, want wrapped shutdown error", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return")
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newMockServer(), 0)
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want http-server", svc.String())
	}
}
