// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package longpoll

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on the polls counter.
const (
	outcomeOK      = "ok"
	outcomeStale   = "failed_1"
	outcomeExpired = "expired"
	outcomeError   = "error"
)

// metricsCollector records session metrics.
type metricsCollector struct {
	pollsTotal        metric.Int64Counter
	updatesTotal      metric.Int64Counter
	acquisitionsTotal metric.Int64Counter
	pollLatency       metric.Float64Histogram
}

func newMetricsCollector(meterProvider metric.MeterProvider) (*metricsCollector, error) {
	meter := meterProvider.Meter("github.com/tombee/herald/internal/longpoll")

	mc := &metricsCollector{}
	var err error

	mc.pollsTotal, err = meter.Int64Counter(
		"herald_longpoll_polls_total",
		metric.WithDescription("Total number of long-poll requests by outcome"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, err
	}

	mc.updatesTotal, err = meter.Int64Counter(
		"herald_longpoll_updates_total",
		metric.WithDescription("Total number of updates received by type"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	mc.acquisitionsTotal, err = meter.Int64Counter(
		"herald_longpoll_acquisitions_total",
		metric.WithDescription("Total number of session acquisitions by outcome"),
		metric.WithUnit("{acquisition}"),
	)
	if err != nil {
		return nil, err
	}

	mc.pollLatency, err = meter.Float64Histogram(
		"herald_longpoll_poll_duration_seconds",
		metric.WithDescription("Long-poll request duration in seconds, including the server hold"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

func (mc *metricsCollector) recordPoll(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	mc.pollsTotal.Add(ctx, 1, attrs)
	mc.pollLatency.Record(ctx, duration.Seconds(), attrs)
}

func (mc *metricsCollector) recordUpdate(ctx context.Context, eventType string) {
	mc.updatesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (mc *metricsCollector) recordAcquisition(ctx context.Context, success bool) {
	outcome := outcomeOK
	if !success {
		outcome = outcomeError
	}
	mc.acquisitionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
