// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package functions

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
	tracer = otel.Tracer("aleutian.impact.functions")
	meter  = otel.Meter("aleutian.impact.functions")
)

var (
	runLatency metric.Float64Histogram
	runTotal   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"impact_function_run_duration_seconds",
			metric.WithDescription("Duration of impact function runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"impact_function_run_total",
			metric.WithDescription("Total number of impact function runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// instrument wraps a kernel body with a span and run metrics.
func instrument(ctx context.Context, name string, hazard, exposure layer.Layer, body func(context.Context) (layer.Layer, error)) (layer.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "functions."+name,
		trace.WithAttributes(
			attribute.String("impact.function", name),
			attribute.String("impact.hazard", describe(hazard)),
			attribute.String("impact.exposure", describe(exposure)),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := body(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	recordRunMetrics(ctx, name, time.Since(start), err == nil)
	return out, err
}

func recordRunMetrics(ctx context.Context, name string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("function", name),
		attribute.Bool("success", success),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
}
