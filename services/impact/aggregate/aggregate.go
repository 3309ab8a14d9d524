// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate summarises impact results per administrative boundary.
//
// Point results are assigned to the first boundary polygon containing them;
// polygon results are assigned through their centroids. Raster results are
// not aggregated here.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ctessum/geom"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// Aggregation function names.
const (
	FunctionCount = "count"
	FunctionSum   = "sum"

	// DefaultAttribute names the output attribute when Options.AttributeName
	// is empty.
	DefaultAttribute = "AGGREGATED"
)

var (
	// ErrUnsupportedDataKind is matched by every *UnsupportedDataKindError.
	ErrUnsupportedDataKind = errors.New("data is neither raster, point nor otherwise aggregable")

	// ErrMissingBoundaries indicates no boundary features were supplied.
	ErrMissingBoundaries = errors.New("no aggregation boundaries")

	// ErrInvalidBoundaries indicates boundaries that are not polygons.
	ErrInvalidBoundaries = errors.New("aggregation boundaries must be polygons")

	// ErrUnknownFunction indicates an aggregation function other than count
	// or sum.
	ErrUnknownFunction = errors.New("unknown aggregation function")
)

// UnsupportedDataKindError reports data that cannot be aggregated.
type UnsupportedDataKindError struct {
	// Kind is the Go type of the offending layer.
	Kind string

	// Reason narrows the failure, e.g. missing feature access. Optional.
	Reason string
}

func (e *UnsupportedDataKindError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot aggregate %s: %s: %s", e.Kind, ErrUnsupportedDataKind, e.Reason)
	}
	return fmt.Sprintf("cannot aggregate %s: %s", e.Kind, ErrUnsupportedDataKind)
}

// Is makes errors.Is(err, ErrUnsupportedDataKind) hold.
func (e *UnsupportedDataKindError) Is(target error) bool {
	return target == ErrUnsupportedDataKind
}

// Options controls an aggregation.
type Options struct {
	// Boundaries is a polygon layer, one feature per area. Required unless
	// the data is a raster.
	Boundaries *layer.VectorLayer

	// AttributeName is read from every data feature and receives the result
	// on every boundary feature. Empty means DefaultAttribute, and count then
	// counts every feature.
	AttributeName string

	// Function is "count" (default) or "sum".
	Function string
}

// Aggregate summarises data per boundary.
//
// Description:
//
//	The path is chosen from the data kind. Raster data yields (nil, nil).
//	Point data is aggregated directly and polygon data through feature
//	centroids; both must expose their features through
//	layer.FeatureSource. An empty point layer gives zero per boundary.
//	Each feature is assigned to the
//	first boundary that contains it, edges included, so no feature is
//	counted twice. Features outside every boundary are dropped.
//
//	count counts features whose attribute is truthy: a true bool, a
//	non-zero number, or a string other than "", "0", "false" and "no".
//	sum adds numeric attribute values and ignores the rest.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	data - The impact layer to summarise.
//	opts - Boundaries, attribute and function.
//
// Outputs:
//
//	*layer.VectorLayer - A copy of the boundaries, in order, with the result
//	  stored under the attribute name. Nil for raster data.
//	error - *UnsupportedDataKindError, ErrMissingBoundaries,
//	  ErrInvalidBoundaries, ErrUnknownFunction or the context error.
//
// Example:
//
//	res, err := aggregate.Aggregate(ctx, buildings, aggregate.Options{
//	    Boundaries:    districts,
//	    AttributeName: "AFFECTED",
//	    Function:      aggregate.FunctionCount,
//	})
func Aggregate(ctx context.Context, data layer.Layer, opts Options) (*layer.VectorLayer, error) {
	if data == nil {
		return nil, &UnsupportedDataKindError{Kind: "<nil>"}
	}
	if data.IsRasterData() {
		return nil, nil
	}

	ctx, span := startAggregateSpan(ctx, data, opts)
	defer span.End()
	start := time.Now()

	out, err := aggregate(ctx, data, opts)
	setAggregateSpanResult(span, out, err)
	recordAggregateMetrics(ctx, time.Since(start), opts.function(), err == nil)
	return out, err
}

func (o Options) function() string {
	if o.Function == "" {
		return FunctionCount
	}
	return o.Function
}

func (o Options) attribute() string {
	if o.AttributeName == "" {
		return DefaultAttribute
	}
	return o.AttributeName
}

func aggregate(ctx context.Context, data layer.Layer, opts Options) (*layer.VectorLayer, error) {
	kind := fmt.Sprintf("%T", data)
	src, ok := data.(layer.FeatureSource)
	switch {
	case !ok && data.IsPointData():
		return nil, &UnsupportedDataKindError{Kind: kind, Reason: "point layer without feature access"}
	case !ok, !data.IsPointData() && !polygonal(src):
		return nil, &UnsupportedDataKindError{Kind: kind}
	}
	if opts.Boundaries == nil || opts.Boundaries.Len() == 0 {
		return nil, ErrMissingBoundaries
	}
	if !opts.Boundaries.IsPolygonData() {
		return nil, ErrInvalidBoundaries
	}

	fn := opts.function()
	if fn != FunctionCount && fn != FunctionSum {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, opts.Function)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	areas := make([]area, len(opts.Boundaries.Features))
	for i, f := range opts.Boundaries.Features {
		poly := f.Geometry.(geom.Polygonal)
		areas[i] = area{poly: poly, bounds: poly.Bounds()}
	}

	counts := make([]int, len(areas))
	sums := make([]float64, len(areas))
	unassigned := 0
	for i := range src.Len() {
		f := src.FeatureAt(i)
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p, ok := layer.PointOf(f.Geometry)
		if !ok {
			unassigned++
			continue
		}
		idx := locate(areas, p)
		if idx < 0 {
			unassigned++
			continue
		}

		value, present := f.Attribute(opts.AttributeName)
		switch fn {
		case FunctionCount:
			if opts.AttributeName == "" || (present && truthy(value)) {
				counts[idx]++
			}
		case FunctionSum:
			if v, ok := numeric(value); present && ok && !math.IsNaN(v) {
				sums[idx] += v
			}
		}
	}
	if unassigned > 0 {
		slog.Debug("Features outside all aggregation boundaries",
			slog.String("data", data.Name()),
			slog.Int("count", unassigned))
	}

	out := opts.Boundaries.Copy()
	out.Title = "Aggregated " + data.Name()
	out.Meta["aggregation_function"] = fn
	out.Meta["aggregation_attribute"] = opts.attribute()
	for i := range out.Features {
		if fn == FunctionCount {
			out.Features[i].Attributes[opts.attribute()] = counts[i]
		} else {
			out.Features[i].Attributes[opts.attribute()] = sums[i]
		}
	}
	return out, nil
}

// polygonal reports whether src holds polygon data, asking the layer when it
// can tell and checking every geometry otherwise.
func polygonal(src layer.FeatureSource) bool {
	if p, ok := src.(interface{ IsPolygonData() bool }); ok {
		return p.IsPolygonData()
	}
	if src.Len() == 0 {
		return false
	}
	for i := range src.Len() {
		if _, ok := src.FeatureAt(i).Geometry.(geom.Polygonal); !ok {
			return false
		}
	}
	return true
}

type area struct {
	poly   geom.Polygonal
	bounds *geom.Bounds
}

// locate returns the index of the first area containing p, or -1.
func locate(areas []area, p geom.Point) int {
	for i, a := range areas {
		b := a.bounds
		if b == nil || p.X < b.Min.X || p.X > b.Max.X || p.Y < b.Min.Y || p.Y > b.Max.Y {
			continue
		}
		if p.Within(a.poly) != geom.Outside {
			return i
		}
	}
	return -1
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no":
			return false
		}
		return true
	default:
		f, ok := numeric(v)
		return ok && f != 0 && !math.IsNaN(f)
	}
}

func numeric(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
