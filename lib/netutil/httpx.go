// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP response helpers for the control-plane
// client. Every body read is bounded so that a misbehaving server
// cannot make the session runner allocate without limit.
package netutil

import (
	"io"
	"strings"
)

// MaxResponseSize bounds control-plane response body reads: 1 MB. The
// progress endpoints return tiny acknowledgements; anything larger is
// read only far enough to be discarded.
const MaxResponseSize int64 = 1 << 20

// maxErrorBodyLength bounds how much of an error body is quoted in a
// log line.
const maxErrorBodyLength = 512

// ErrorBody reads an HTTP error response body and returns a trimmed,
// length-limited string for diagnostic messages. Read errors are
// ignored: a partial or empty body is still useful in a log line.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBodyLength {
		text = text[:maxErrorBodyLength] + "..."
	}
	return text
}

// DrainAndClose discards up to MaxResponseSize bytes of body and closes
// it, letting the HTTP transport reuse the connection.
func DrainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
	_ = body.Close()
}
