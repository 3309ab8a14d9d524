// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package functions holds the built-in impact function kernels.
//
// Each kernel takes a hazard and an exposure layer and derives a new impact
// layer. Inputs are never modified. Summary figures are written to the
// output keywords, already rounded for reporting.
package functions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
	"github.com/AleutianAI/AleutianImpact/services/impact/rounding"
)

// Sentinel errors shared by the kernels.
var (
	// ErrGridMismatch indicates hazard and exposure rasters on different grids.
	ErrGridMismatch = errors.New("hazard and exposure rasters are not aligned")

	// ErrWrongInput indicates a layer of the wrong kind for a kernel.
	ErrWrongInput = errors.New("layer kind not accepted by impact function")
)

// Kernel is the signature shared by every built-in function.
type Kernel func(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error)

// Kernels maps runner names, as used by the function manifest, to kernels.
func Kernels() map[string]Kernel {
	return map[string]Kernel{
		"itb_fatality":           ITBFatality,
		"flood_evacuation":       FloodEvacuation,
		"flood_building_impact":  FloodBuildingImpact,
		"categorised_population": CategorisedPopulation,
	}
}

// Output keyword keys written by the kernels.
const (
	KeyTotalFatalities   = "total_fatalities"
	KeyTotalExposed      = "total_exposed"
	KeyTotalEvacuated    = "total_evacuated"
	KeyTotalPopulation   = "total_population"
	KeyBuildingsAffected = "buildings_affected"
	KeyBuildingsTotal    = "buildings_total"
	KeyPopulationLow     = "population_low"
	KeyPopulationMedium  = "population_medium"
	KeyPopulationHigh    = "population_high"

	// AffectedAttribute flags exposure features inside the hazard zone.
	AffectedAttribute = "AFFECTED"
)

// alignedRasters asserts both layers are rasters on the same grid.
func alignedRasters(name string, hazard, exposure layer.Layer) (*layer.RasterLayer, *layer.RasterLayer, error) {
	h, ok := hazard.(*layer.RasterLayer)
	if !ok {
		return nil, nil, wrongInput(name, "hazard", hazard)
	}
	e, ok := exposure.(*layer.RasterLayer)
	if !ok {
		return nil, nil, wrongInput(name, "exposure", exposure)
	}
	if !h.SameGrid(e) {
		return nil, nil, fmt.Errorf("%s: %dx%d vs %dx%d: %w", name, h.Rows, h.Cols, e.Rows, e.Cols, ErrGridMismatch)
	}
	return h, e, nil
}

func wrongInput(fn, role string, l layer.Layer) error {
	return fmt.Errorf("%s: %s %s: %w", fn, role, describe(l), ErrWrongInput)
}

func describe(l layer.Layer) string {
	if l == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q (%T)", l.Name(), l)
}

// impactKeywords starts the keyword set of an impact layer.
func impactKeywords(subcategory, title string) layer.Keywords {
	return layer.Keywords{
		layer.KeyCategory:    "impact",
		layer.KeySubcategory: subcategory,
		layer.KeyTitle:       title,
	}
}

// reportedPopulation formats a raw estimate the way reports show it.
func reportedPopulation(f float64) string {
	rounded, _ := rounding.RoundFloat(f)
	return strconv.Itoa(rounded)
}
