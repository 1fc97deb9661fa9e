// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
	"github.com/bureau-foundation/sessionrunner/lib/netutil"
	"github.com/bureau-foundation/sessionrunner/lib/session"
)

// DefaultQueueSize bounds the number of reports waiting to be sent.
const DefaultQueueSize = 256

// DefaultRequestTimeout bounds each control-plane request.
const DefaultRequestTimeout = 10 * time.Second

// Config configures the HTTP reporter.
type Config struct {
	// ServerURL is the control-plane base URL.
	ServerURL string

	// SessionID names the session in every request path.
	SessionID string

	// Token, if set, is sent as a bearer token.
	Token string

	QueueSize      int
	RequestTimeout time.Duration

	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     *slog.Logger
}

// New returns an HTTP reporter for config, or Nop when either the
// session ID or the server URL is empty.
func New(config Config) Reporter {
	if config.SessionID == "" || config.ServerURL == "" {
		return Nop()
	}
	return NewHTTPReporter(config)
}

// HTTPReporter posts reports to the control plane from a background
// goroutine.
type HTTPReporter struct {
	baseURL        string
	token          string
	requestTimeout time.Duration
	httpClient     *http.Client
	clock          clock.Clock
	logger         *slog.Logger

	// sendContext is cancelled when Close gives up waiting, aborting
	// the request in flight.
	sendContext context.Context
	cancelSend  context.CancelFunc

	mutex   sync.Mutex
	closed  bool
	dropped int
	queue   chan outgoing
	done    chan struct{}
}

type outgoing struct {
	path string
	body any
}

// logBody is the wire form of LogEntry.
type logBody struct {
	LogEntry
	Timestamp time.Time `json:"timestamp"`
}

type stageCompleteBody struct {
	DurationMS int64 `json:"duration_ms"`
}

type metricsBody struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryMB      int     `json:"memory_mb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// NewHTTPReporter starts the delivery goroutine. Call Close to stop it.
func NewHTTPReporter(config Config) *HTTPReporter {
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	requestTimeout := config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sendContext, cancelSend := context.WithCancel(context.Background())
	reporter := &HTTPReporter{
		baseURL:        strings.TrimRight(config.ServerURL, "/") + "/api/sessions/" + url.PathEscape(config.SessionID),
		token:          config.Token,
		requestTimeout: requestTimeout,
		httpClient:     httpClient,
		clock:          clk,
		logger:         logger,
		sendContext:    sendContext,
		cancelSend:     cancelSend,
		queue:          make(chan outgoing, queueSize),
		done:           make(chan struct{}),
	}
	go reporter.deliver()
	return reporter
}

// UpdateProgress queues a POST to /progress.
func (reporter *HTTPReporter) UpdateProgress(update Update) {
	reporter.enqueue("/progress", update)
}

// AppendLog queues a POST to /logs, timestamped now.
func (reporter *HTTPReporter) AppendLog(entry LogEntry) {
	reporter.enqueue("/logs", logBody{LogEntry: entry, Timestamp: reporter.clock.Now().UTC()})
}

// CompleteStage queues a POST to /stages/<stage>/complete.
func (reporter *HTTPReporter) CompleteStage(stage session.ProgressStage, duration time.Duration) {
	reporter.enqueue("/stages/"+url.PathEscape(string(stage))+"/complete",
		stageCompleteBody{DurationMS: duration.Milliseconds()})
}

// ReportMetrics queues a POST to /metrics.
func (reporter *HTTPReporter) ReportMetrics(metrics hwinfo.Metrics) {
	reporter.enqueue("/metrics", metricsBody{
		CPUPercent:    metrics.CPUPercent,
		MemoryMB:      metrics.MemoryMB,
		MemoryPercent: metrics.MemoryPercent,
	})
}

// Dropped returns how many reports were discarded because the queue
// was full or the reporter closed.
func (reporter *HTTPReporter) Dropped() int {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()
	return reporter.dropped
}

func (reporter *HTTPReporter) enqueue(path string, body any) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	if reporter.closed {
		reporter.dropped++
		return
	}
	select {
	case reporter.queue <- outgoing{path: path, body: body}:
	default:
		reporter.dropped++
		reporter.logger.Warn("progress queue full, dropping report", "path", path, "dropped", reporter.dropped)
	}
}

// Close stops accepting reports and waits for the queue to drain or
// ctx to end, whichever is first. Reports still queued when ctx ends
// are abandoned and ctx's error is returned. Safe to call more than
// once.
func (reporter *HTTPReporter) Close(ctx context.Context) error {
	reporter.mutex.Lock()
	if !reporter.closed {
		reporter.closed = true
		close(reporter.queue)
	}
	reporter.mutex.Unlock()

	select {
	case <-reporter.done:
		reporter.cancelSend()
		return nil
	case <-ctx.Done():
		reporter.cancelSend()
		<-reporter.done
		return fmt.Errorf("flushing progress reports: %w", ctx.Err())
	}
}

func (reporter *HTTPReporter) deliver() {
	defer close(reporter.done)
	for item := range reporter.queue {
		if reporter.sendContext.Err() != nil {
			continue
		}
		if err := reporter.post(item); err != nil {
			reporter.logger.Warn("progress report failed", "path", item.path, "error", err)
		}
	}
}

func (reporter *HTTPReporter) post(item outgoing) error {
	payload, err := json.Marshal(item.body)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	ctx, cancel := context.WithTimeout(reporter.sendContext, reporter.requestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, reporter.baseURL+item.path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if reporter.token != "" {
		request.Header.Set("Authorization", "Bearer "+reporter.token)
	}

	response, err := reporter.httpClient.Do(request)
	if err != nil {
		return err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		message := netutil.ErrorBody(response.Body)
		response.Body.Close()
		return fmt.Errorf("HTTP %d: %s", response.StatusCode, message)
	}
	netutil.DrainAndClose(response.Body)
	return nil
}
