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
	"math"
	"strconv"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// EvacuationDepth is the water depth in metres from which people are
// evacuated and buildings counted as affected.
const EvacuationDepth = 1.0

// FloodEvacuation estimates the population to evacuate from a flood depth
// raster and a population raster on the same grid.
//
// Each output cell holds the population of cells at or above
// EvacuationDepth and zero elsewhere; no-data propagates.
func FloodEvacuation(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error) {
	return instrument(ctx, "flood_evacuation", hazard, exposure, func(context.Context) (layer.Layer, error) {
		depth, pop, err := alignedRasters("FloodEvacuation", hazard, exposure)
		if err != nil {
			return nil, err
		}

		out := depth.Derive("People needing evacuation", impactKeywords("evacuation", "People needing evacuation"))
		var evacuated, total float64
		for i, d := range depth.Data {
			people := pop.Data[i]
			if math.IsNaN(people) {
				continue
			}
			total += people
			if math.IsNaN(d) {
				continue
			}
			if d >= EvacuationDepth {
				out.Data[i] = people
				evacuated += people
			} else {
				out.Data[i] = 0
			}
		}
		out.Meta[KeyTotalEvacuated] = reportedPopulation(evacuated)
		out.Meta[KeyTotalPopulation] = reportedPopulation(total)
		return out, nil
	})
}

// FloodBuildingImpact flags buildings standing in deep water.
//
// Description:
//
//	The hazard must be a depth raster and the exposure a building layer
//	(points or footprints; footprints are sampled at their centroid). The
//	output is a copy of the exposure with AFFECTED set on every feature.
//	Buildings outside the raster or on no-data cells are not affected.
//
// Outputs:
//
//	layer.Layer - *layer.VectorLayer with AFFECTED per building.
//	error - ErrWrongInput when the layer kinds are wrong.
func FloodBuildingImpact(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error) {
	return instrument(ctx, "flood_building_impact", hazard, exposure, func(context.Context) (layer.Layer, error) {
		depth, ok := hazard.(*layer.RasterLayer)
		if !ok {
			return nil, wrongInput("FloodBuildingImpact", "hazard", hazard)
		}
		buildings, ok := exposure.(*layer.VectorLayer)
		if !ok {
			return nil, wrongInput("FloodBuildingImpact", "exposure", exposure)
		}

		out := buildings.Copy()
		if out.Kind == layer.KindUnknown {
			out.Kind = layer.KindPoint
		}
		out.Title = "Buildings inundated"
		out.Meta = impactKeywords("building", "Buildings inundated")
		out.Meta[layer.KeyLayerType] = layer.TypeVector

		affected := 0
		for i := range out.Features {
			f := &out.Features[i]
			hit := false
			if p, ok := layer.PointOf(f.Geometry); ok {
				d := depth.ValueAt(p)
				hit = !math.IsNaN(d) && d >= EvacuationDepth
			}
			f.Attributes[AffectedAttribute] = hit
			if hit {
				affected++
			}
		}
		out.Meta[KeyBuildingsAffected] = strconv.Itoa(affected)
		out.Meta[KeyBuildingsTotal] = strconv.Itoa(out.Len())
		return out, nil
	})
}
