// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
	"github.com/bureau-foundation/sessionrunner/lib/session"
	"github.com/bureau-foundation/sessionrunner/lib/testutil"
)

type capturedRequest struct {
	method        string
	path          string
	authorization string
	contentType   string
	body          map[string]any
}

// captureServer records every request on a buffered channel and
// responds with status.
func captureServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	requests := make(chan capturedRequest, 64)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		data, _ := io.ReadAll(request.Body)
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("request body is not JSON: %q", data)
		}
		requests <- capturedRequest{
			method:        request.Method,
			path:          request.URL.EscapedPath(),
			authorization: request.Header.Get("Authorization"),
			contentType:   request.Header.Get("Content-Type"),
			body:          body,
		}
		writer.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func closeReporter(t *testing.T, reporter Reporter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:realclock test hang prevention
	defer cancel()
	if err := reporter.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNew_HeadlessWithoutSession(t *testing.T) {
	t.Parallel()

	for _, config := range []Config{
		{ServerURL: "http://control.test"},
		{SessionID: "sess-1"},
		{},
	} {
		if _, ok := New(config).(nopReporter); !ok {
			t.Errorf("New(%+v) should be headless", config)
		}
	}
}

func TestHTTPReporter_Endpoints(t *testing.T) {
	t.Parallel()

	server, requests := captureServer(t, http.StatusNoContent)
	fakeClock := clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	reporter := New(Config{
		ServerURL: server.URL + "/",
		SessionID: "sess 1",
		Token:     "secret-token",
		Clock:     fakeClock,
	})

	usage := session.NewTokenUsage(100, 50, 10, 5, nil)
	reporter.UpdateProgress(Update{Stage: session.StageCompleted, Percent: 100, Summary: "done", TokenUsage: &usage})
	reporter.AppendLog(LogEntry{Level: LevelInfo, Message: "agent line", Stage: session.StageExecuting})
	reporter.CompleteStage(session.StageCloning, 1500*time.Millisecond)
	reporter.ReportMetrics(hwinfo.Metrics{CPUPercent: 12.5, MemoryMB: 2048, MemoryPercent: 25})
	closeReporter(t, reporter)

	want := []struct {
		path  string
		check func(map[string]any) bool
	}{
		{"/api/sessions/sess%201/progress", func(body map[string]any) bool {
			usage, _ := body["token_usage"].(map[string]any)
			return body["stage"] == "completed" && body["percent"] == 100.0 && body["summary"] == "done" &&
				usage["total_tokens"] == 165.0
		}},
		{"/api/sessions/sess%201/logs", func(body map[string]any) bool {
			return body["level"] == "info" && body["message"] == "agent line" &&
				body["stage"] == "executing" && body["timestamp"] == "2026-01-02T03:04:05Z"
		}},
		{"/api/sessions/sess%201/stages/cloning/complete", func(body map[string]any) bool {
			return body["duration_ms"] == 1500.0
		}},
		{"/api/sessions/sess%201/metrics", func(body map[string]any) bool {
			return body["cpu_percent"] == 12.5 && body["memory_mb"] == 2048.0 && body["memory_percent"] == 25.0
		}},
	}
	for _, expected := range want {
		request := testutil.RequireReceive(t, requests, 5*time.Second, "waiting for %s", expected.path)
		if request.method != http.MethodPost {
			t.Errorf("%s: method = %s", expected.path, request.method)
		}
		if request.path != expected.path {
			t.Errorf("path = %s, want %s", request.path, expected.path)
			continue
		}
		if request.authorization != "Bearer secret-token" {
			t.Errorf("%s: Authorization = %q", request.path, request.authorization)
		}
		if request.contentType != "application/json" {
			t.Errorf("%s: Content-Type = %q", request.path, request.contentType)
		}
		if !expected.check(request.body) {
			t.Errorf("%s: unexpected body %v", request.path, request.body)
		}
	}
}

func TestHTTPReporter_ServerErrorsSwallowed(t *testing.T) {
	t.Parallel()

	server, requests := captureServer(t, http.StatusInternalServerError)
	reporter := New(Config{ServerURL: server.URL, SessionID: "s"})

	for i := 0; i < 3; i++ {
		reporter.AppendLog(LogEntry{Level: LevelError, Message: "x"})
	}
	closeReporter(t, reporter)

	// Every report is attempted despite the failures before it.
	for i := 0; i < 3; i++ {
		testutil.RequireReceive(t, requests, 5*time.Second, "request %d", i)
	}
}

func TestHTTPReporter_UnreachableServer(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	reporter := New(Config{ServerURL: address, SessionID: "s", RequestTimeout: time.Second})
	reporter.UpdateProgress(Update{Stage: session.StageCloning, Percent: 10})
	closeReporter(t, reporter)
}

// blockingServer holds every request until release is closed or the
// client gives up, signalling started as each one arrives.
func blockingServer(t *testing.T) (*httptest.Server, <-chan struct{}, chan struct{}) {
	t.Helper()
	started := make(chan struct{}, 16)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		started <- struct{}{}
		select {
		case <-release:
		case <-request.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server, started, release
}

func TestHTTPReporter_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	server, started, release := blockingServer(t)
	reporter := NewHTTPReporter(Config{ServerURL: server.URL, SessionID: "s", QueueSize: 1})

	reporter.AppendLog(LogEntry{Message: "in flight"})
	testutil.RequireReceive(t, started, 5*time.Second, "first request never arrived")

	reporter.AppendLog(LogEntry{Message: "queued"})
	reporter.AppendLog(LogEntry{Message: "dropped 1"})
	reporter.AppendLog(LogEntry{Message: "dropped 2"})
	if dropped := reporter.Dropped(); dropped != 2 {
		t.Errorf("Dropped = %d, want 2", dropped)
	}

	close(release)
	closeReporter(t, reporter)
}

func TestHTTPReporter_CloseDeadline(t *testing.T) {
	t.Parallel()

	server, started, _ := blockingServer(t)
	reporter := NewHTTPReporter(Config{ServerURL: server.URL, SessionID: "s", RequestTimeout: time.Minute})

	reporter.AppendLog(LogEntry{Message: "stuck"})
	reporter.AppendLog(LogEntry{Message: "abandoned"})
	testutil.RequireReceive(t, started, 5*time.Second, "request never arrived")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond) //nolint:realclock flush deadline
	defer cancel()
	if err := reporter.Close(ctx); err == nil {
		t.Fatal("Close should report the missed deadline")
	}

	// Reports after Close are discarded rather than panicking.
	reporter.AppendLog(LogEntry{Message: "late"})
	if dropped := reporter.Dropped(); dropped != 1 {
		t.Errorf("Dropped = %d, want 1", dropped)
	}
	if err := reporter.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
