// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ManifestPathEnv names the environment variable holding the external
// manifest path. It takes precedence over SetManifestPath.
const ManifestPathEnv = "IMPACT_FUNCTIONS_PATH"

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	registryLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "impact_registry_load_duration_seconds",
		Help:    "Duration of impact function registry loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5},
	})

	registryLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impact_registry_load_errors_total",
		Help: "Total impact function registry load errors",
	})

	registryFunctions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "impact_registry_functions",
		Help: "Impact functions in the loaded registry by source",
	}, []string{"source"})

	registrySkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impact_registry_skipped_total",
		Help: "Manifest entries skipped during registry load by reason",
	}, []string{"reason"})
)

var registryTracer = otel.Tracer("aleutian.impact.registry")

// =============================================================================
// Singleton Registry
// =============================================================================

var (
	defaultMu      sync.RWMutex
	defaultOnce    sync.Once
	cachedDefault  *Registry
	defaultLoadErr error

	manifestPathMu sync.RWMutex
	manifestPath   string
)

// SetManifestPath sets the external manifest used by the next load.
// An empty path disables it unless ManifestPathEnv is set.
func SetManifestPath(path string) {
	manifestPathMu.Lock()
	defer manifestPathMu.Unlock()
	manifestPath = path
}

// ManifestPath returns the external manifest path in effect, or "".
func ManifestPath() string {
	if path := os.Getenv(ManifestPathEnv); path != "" {
		return path
	}
	manifestPathMu.RLock()
	defer manifestPathMu.RUnlock()
	return manifestPath
}

// Default returns the process-wide registry, loading it on first use.
//
// Description:
//
//	Loads the built-in functions plus any external manifest on the first
//	call and caches the result until ResetDefault.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*Registry - The loaded registry. Never nil on success.
//	error - Non-nil if the built-in manifest could not be loaded.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	reg, err := registry.Default(ctx)
//	if err != nil {
//	    return fmt.Errorf("loading impact functions: %w", err)
//	}
//	fns := reg.Admissible(layer.ParamsFor(hazard), layer.ParamsFor(exposure))
func Default(ctx context.Context) (*Registry, error) {
	if ctx == nil {
		return nil, errors.New("registry.Default: ctx must not be nil")
	}

	defaultMu.RLock()
	if cachedDefault != nil || defaultLoadErr != nil {
		reg, err := cachedDefault, defaultLoadErr
		defaultMu.RUnlock()
		return reg, err
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if cachedDefault != nil || defaultLoadErr != nil {
		return cachedDefault, defaultLoadErr
	}
	defaultOnce.Do(func() {
		cachedDefault, defaultLoadErr = load(ctx)
	})
	return cachedDefault, defaultLoadErr
}

// ResetDefault drops the cached registry so the next Default call reloads.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce = sync.Once{}
	cachedDefault = nil
	defaultLoadErr = nil
}

// Discover returns every function of the default registry in registration
// order.
func Discover(ctx context.Context) ([]ImpactFunction, error) {
	reg, err := Default(ctx)
	if err != nil {
		return nil, err
	}
	return reg.All(), nil
}

// =============================================================================
// Loading Logic
// =============================================================================

// load builds a registry from the embedded manifest and, when configured,
// the external one. External failures are logged and skipped.
func load(ctx context.Context) (*Registry, error) {
	ctx, span := registryTracer.Start(ctx, "registry.Load")
	defer span.End()

	startTime := time.Now()
	defer func() {
		registryLoadDuration.Observe(time.Since(startTime).Seconds())
	}()

	builtins, err := builtinFunctions()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "builtin manifest invalid")
		registryLoadErrors.Inc()
		return nil, err
	}

	reg := New()
	for _, fn := range builtins {
		if err := reg.Register(fn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "builtin registration failed")
			registryLoadErrors.Inc()
			return nil, fmt.Errorf("registering builtin: %w", err)
		}
	}
	registryFunctions.WithLabelValues("embedded").Set(float64(len(builtins)))

	external := 0
	if path := ManifestPath(); path != "" {
		external = registerExternal(ctx, reg, path)
	}
	registryFunctions.WithLabelValues("external").Set(float64(external))

	span.SetAttributes(
		attribute.Int("builtin_count", len(builtins)),
		attribute.Int("external_count", external),
	)
	slog.Info("Impact function registry loaded",
		slog.Int("function_count", reg.Len()),
		slog.Int("external_count", external))
	return reg, nil
}

// registerExternal adds the functions of an external manifest, returning
// how many were registered. Duplicates keep the first registration.
func registerExternal(ctx context.Context, reg *Registry, path string) int {
	fns, err := loadExternalManifest(ctx, path)
	if err != nil {
		registryLoadErrors.Inc()
		slog.Warn("External impact function manifest not available, using builtins only",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return 0
	}

	added := 0
	for _, fn := range fns {
		if err := reg.Register(fn); err != nil {
			registrySkipped.WithLabelValues("duplicate").Inc()
			slog.Warn("Skipping impact function from external manifest",
				slog.String("path", path),
				slog.String("id", fn.ID),
				slog.String("error", err.Error()))
			continue
		}
		added++
	}
	return added
}
