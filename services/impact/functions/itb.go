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

// ITB empirical fatality model coefficients (Indonesian earthquakes).
const (
	itbSlope     = 0.62275231
	itbIntercept = -8.03314466
)

// ITBFatalityRate is the fraction of people killed at a given MMI.
func ITBFatalityRate(mmi float64) float64 {
	return math.Pow(10, itbSlope*mmi+itbIntercept)
}

// ITBFatality estimates earthquake fatalities from an MMI raster and a
// population raster on the same grid.
//
// Description:
//
//	Each output cell holds population * ITBFatalityRate(mmi). Cells where
//	either input is no-data stay no-data. total_exposed counts people in
//	cells with a defined intensity.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	hazard - MMI raster.
//	exposure - Population raster.
//
// Outputs:
//
//	layer.Layer - *layer.RasterLayer of fatalities per cell.
//	error - ErrWrongInput or ErrGridMismatch.
func ITBFatality(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error) {
	return instrument(ctx, "itb_fatality", hazard, exposure, func(context.Context) (layer.Layer, error) {
		mmi, pop, err := alignedRasters("ITBFatality", hazard, exposure)
		if err != nil {
			return nil, err
		}

		out := mmi.Derive("Estimated fatalities", impactKeywords("fatalities", "Estimated fatalities"))
		var fatalities, exposed float64
		for i, intensity := range mmi.Data {
			people := pop.Data[i]
			if math.IsNaN(intensity) || math.IsNaN(people) {
				continue
			}
			dead := people * ITBFatalityRate(intensity)
			out.Data[i] = dead
			fatalities += dead
			exposed += people
		}
		out.Meta[KeyTotalFatalities] = reportedPopulation(fatalities)
		out.Meta[KeyTotalExposed] = reportedPopulation(exposed)
		return out, nil
	})
}
