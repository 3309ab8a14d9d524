// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aggregate

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

var (
	tracer = otel.Tracer("aleutian.impact.aggregate")
	meter  = otel.Meter("aleutian.impact.aggregate")
)

var (
	aggregateLatency metric.Float64Histogram
	aggregateTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		aggregateLatency, err = meter.Float64Histogram(
			"impact_aggregation_duration_seconds",
			metric.WithDescription("Duration of boundary aggregations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		aggregateTotal, err = meter.Int64Counter(
			"impact_aggregation_total",
			metric.WithDescription("Total number of boundary aggregations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startAggregateSpan(ctx context.Context, data layer.Layer, opts Options) (context.Context, trace.Span) {
	boundaries := 0
	if opts.Boundaries != nil {
		boundaries = opts.Boundaries.Len()
	}
	return tracer.Start(ctx, "aggregate.Aggregate",
		trace.WithAttributes(
			attribute.String("aggregate.data", data.Name()),
			attribute.String("aggregate.function", opts.function()),
			attribute.String("aggregate.attribute", opts.attribute()),
			attribute.Int("aggregate.boundaries", boundaries),
		),
	)
}

func setAggregateSpanResult(span trace.Span, out *layer.VectorLayer, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("aggregate.records", out.Len()))
}

func recordAggregateMetrics(ctx context.Context, duration time.Duration, function string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("function", function),
		attribute.Bool("success", success),
	)
	aggregateLatency.Record(ctx, duration.Seconds(), attrs)
	aggregateTotal.Add(ctx, 1, attrs)
}
