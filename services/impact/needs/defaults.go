// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package needs

// DefaultMinimumNeeds returns the standard relief ratios per displaced person.
//
// Order is part of the contract: Rice, Drinking Water, Clean Water,
// Family Kits, Toilets. A fresh slice is returned on every call.
func DefaultMinimumNeeds() []ResourceParameter {
	return []ResourceParameter{
		{
			Name:                "Rice",
			Description:         "Basic food",
			Unit:                Unit{Name: "kilogram", Abbreviation: "kg", Plural: "kilograms"},
			Frequency:           FrequencyWeekly,
			MinimumAllowedValue: 1,
			MaximumAllowedValue: 5,
			Value:               2.8,
		},
		{
			Name:                "Drinking Water",
			Description:         "For drinking",
			Unit:                Unit{Name: "litre", Abbreviation: "l", Plural: "litres"},
			Frequency:           FrequencyWeekly,
			MinimumAllowedValue: 3,
			MaximumAllowedValue: 30,
			Value:               17.5,
		},
		{
			Name:                "Clean Water",
			Description:         "For washing",
			Unit:                Unit{Name: "litre", Abbreviation: "l", Plural: "litres"},
			Frequency:           FrequencyWeekly,
			MinimumAllowedValue: 20,
			MaximumAllowedValue: 100,
			Value:               67,
		},
		{
			Name:                "Family Kits",
			Description:         "Hygiene kits, one per family of five",
			Unit:                Unit{Name: "unit", Plural: "units"},
			Frequency:           FrequencyWeekly,
			MinimumAllowedValue: 0.1,
			MaximumAllowedValue: 1,
			Value:               0.2,
		},
		{
			Name:                "Toilets",
			Description:         "One toilet per twenty people",
			Unit:                Unit{Name: "unit", Plural: "units"},
			Frequency:           FrequencySingle,
			MinimumAllowedValue: 0.02,
			MaximumAllowedValue: 1,
			Value:               0.05,
		},
	}
}
