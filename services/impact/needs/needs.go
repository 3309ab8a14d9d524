// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package needs computes relief resource needs for an affected population.
//
// Compute is pure: no I/O, no logging, deterministic output. Profile
// loading lives beside it but is never called from Compute.
package needs

import "math"

// Need is the total requirement for one resource.
type Need struct {
	Name      string `json:"name"`
	Amount    int    `json:"amount"`
	TableName string `json:"table_name"`
}

// Report groups needs by reporting frequency.
type Report struct {
	// Frequencies lists buckets in first-appearance order of the input.
	Frequencies []string `json:"frequencies"`

	// Needs maps a frequency to its entries, in input order.
	Needs map[string][]Need `json:"needs"`
}

// Bucket returns the entries for a frequency, or nil.
func (r Report) Bucket(frequency string) []Need {
	return r.Needs[frequency]
}

// Amounts maps table names to amounts for one bucket.
func (r Report) Amounts(frequency string) map[string]int {
	out := make(map[string]int, len(r.Needs[frequency]))
	for _, n := range r.Needs[frequency] {
		out[n.TableName] = n.Amount
	}
	return out
}

// Compute scales per-person rations by the affected population.
//
// Description:
//
//	For every resource, amount = round_half_up(population * value). This is
//	plain arithmetic rounding, not the population rounding table. Results
//	are bucketed by frequency with input order preserved. A zero population
//	or a zero ration still produces an entry with amount 0.
//
// Inputs:
//
//	population - Number of affected people. Negative values count as zero.
//	resources - Per-person rations.
//
// Outputs:
//
//	Report - Needs grouped by frequency.
//
// Example:
//
//	report := needs.Compute(20, needs.DefaultMinimumNeeds())
//	report.Amounts("weekly")["Rice [kg]"] // 56
func Compute(population int, resources []ResourceParameter) Report {
	if population < 0 {
		population = 0
	}
	report := Report{
		Frequencies: make([]string, 0, 2),
		Needs:       make(map[string][]Need),
	}
	for _, res := range resources {
		if _, seen := report.Needs[res.Frequency]; !seen {
			report.Frequencies = append(report.Frequencies, res.Frequency)
			report.Needs[res.Frequency] = make([]Need, 0, len(resources))
		}
		report.Needs[res.Frequency] = append(report.Needs[res.Frequency], Need{
			Name:      res.Name,
			Amount:    roundHalfUp(float64(population) * res.Value),
			TableName: res.TableName(),
		})
	}
	return report
}

func roundHalfUp(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return int(math.Floor(v + 0.5))
}
