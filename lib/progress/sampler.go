// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"context"
	"time"

	"github.com/bureau-foundation/sessionrunner/lib/clock"
	"github.com/bureau-foundation/sessionrunner/lib/hwinfo"
)

// DefaultMetricInterval is how often resource metrics are sampled.
const DefaultMetricInterval = 15 * time.Second

// MetricSource produces resource samples. *hwinfo.Sampler implements
// it.
type MetricSource interface {
	Sample() hwinfo.Metrics
}

// RunMetricSampler reports a sample from source every interval until
// ctx is done. The first report is sent after one interval, when the
// CPU delta is meaningful.
func RunMetricSampler(ctx context.Context, reporter Reporter, source MetricSource, clk clock.Clock, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	// Prime the CPU baseline.
	source.Sample()

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reporter.ReportMetrics(source.Sample())
		}
	}
}
