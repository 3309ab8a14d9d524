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

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// Hazard categories of a categorised hazard raster.
const (
	CategoryLow    = 1
	CategoryMedium = 2
	CategoryHigh   = 3
)

// CategorisedPopulation counts people per hazard category.
//
// The hazard raster holds 1 (low), 2 (medium) or 3 (high); any other value
// is treated as outside the hazard zone. Each output cell holds the
// population of cells in some category and zero elsewhere.
func CategorisedPopulation(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error) {
	return instrument(ctx, "categorised_population", hazard, exposure, func(context.Context) (layer.Layer, error) {
		zones, pop, err := alignedRasters("CategorisedPopulation", hazard, exposure)
		if err != nil {
			return nil, err
		}

		out := zones.Derive("People in hazard zones", impactKeywords("population", "People in hazard zones"))
		var perCategory [CategoryHigh + 1]float64
		for i, z := range zones.Data {
			people := pop.Data[i]
			if math.IsNaN(people) || math.IsNaN(z) {
				continue
			}
			category := int(z)
			if float64(category) != z || category < CategoryLow || category > CategoryHigh {
				out.Data[i] = 0
				continue
			}
			out.Data[i] = people
			perCategory[category] += people
		}
		out.Meta[KeyPopulationLow] = reportedPopulation(perCategory[CategoryLow])
		out.Meta[KeyPopulationMedium] = reportedPopulation(perCategory[CategoryMedium])
		out.Meta[KeyPopulationHigh] = reportedPopulation(perCategory[CategoryHigh])
		return out, nil
	})
}
