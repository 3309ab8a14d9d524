// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rounding turns raw population estimates into report-safe figures.
//
// Estimates are never reported more precisely than the model supports, and
// they are always rounded up so a report never understates the number of
// people affected.
package rounding

import "math"

// band maps an exclusive upper bound to the rounding granularity used below it.
type band struct {
	below       int
	granularity int
}

// populationBands is ordered by bound. Values at or above the last bound use
// maxGranularity.
var populationBands = []band{
	{below: 1000, granularity: 10},
	{below: 100000, granularity: 100},
}

const maxGranularity = 1000

// MaxPopulation is the largest input rounded as is. Larger inputs are
// clamped to it so the rounded value cannot overflow.
const MaxPopulation = math.MaxInt - maxGranularity

// Precision returns the rounding granularity used for n.
func Precision(n int) int {
	for _, b := range populationBands {
		if n < b.below {
			return b.granularity
		}
	}
	return maxGranularity
}

// RoundPopulation rounds n up to the granularity for its magnitude.
//
// Description:
//
//	Picks the granularity from the band table (10 below 1,000, 100 below
//	100,000, 1,000 above) and rounds up to the next multiple of it.
//	Negative input is treated as zero and input above MaxPopulation as
//	MaxPopulation.
//
// Inputs:
//
//	n - The computed number of people.
//
// Outputs:
//
//	rounded - The rounded population, always >= n for n <= MaxPopulation.
//	precision - The granularity that was applied.
//
// Example:
//
//	rounded, precision := rounding.RoundPopulation(8888) // 8900, 100
func RoundPopulation(n int) (rounded, precision int) {
	n = min(max(n, 0), MaxPopulation)
	precision = Precision(n)
	rounded = ceilDiv(n, precision) * precision
	return rounded, precision
}

// RoundPopulationSimple returns only the rounded value of RoundPopulation.
func RoundPopulationSimple(n int) int {
	rounded, _ := RoundPopulation(n)
	return rounded
}

// RoundFloat rounds a fractional estimate, as produced by raster sums, by
// first taking its ceiling.
func RoundFloat(f float64) (rounded, precision int) {
	switch {
	case f <= 0 || math.IsNaN(f):
		return RoundPopulation(0)
	case f >= float64(MaxPopulation):
		return RoundPopulation(MaxPopulation)
	}
	return RoundPopulation(int(math.Ceil(f)))
}

// ceilDiv computes ceil(a/b) for a >= 0, b > 0 without floating point.
func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
