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

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Reporting frequencies used by the default needs.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencySingle = "single"
)

// resourceValidate is shared; validator.Validate caches struct metadata and
// is safe for concurrent use.
var resourceValidate = validator.New()

// Unit describes how a resource is measured.
type Unit struct {
	Name         string `json:"name" yaml:"name"`
	Abbreviation string `json:"abbreviation" yaml:"abbreviation"`
	Plural       string `json:"plural" yaml:"plural"`
}

// ResourceParameter is a per-person ration of one resource.
type ResourceParameter struct {
	// Name is the display name, e.g. "Rice".
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description is free text shown next to the resource.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Unit of Value.
	Unit Unit `json:"unit" yaml:"unit"`

	// Frequency is the reporting bucket, e.g. "weekly".
	Frequency string `json:"frequency" yaml:"frequency" validate:"required"`

	// MinimumAllowedValue and MaximumAllowedValue bound Value.
	MinimumAllowedValue float64 `json:"minimum_allowed_value" yaml:"minimum_allowed_value"`
	MaximumAllowedValue float64 `json:"maximum_allowed_value" yaml:"maximum_allowed_value" validate:"gtefield=MinimumAllowedValue"`

	// Value is the amount per person per Frequency.
	Value float64 `json:"value" yaml:"value" validate:"gtefield=MinimumAllowedValue,ltefield=MaximumAllowedValue"`
}

// Validate checks the resource record.
//
// Compute does not call this; range checks belong to whoever edits or
// loads the ratios.
func (r ResourceParameter) Validate() error {
	if err := resourceValidate.Struct(r); err != nil {
		return fmt.Errorf("resource %q: %w", r.Name, err)
	}
	return nil
}

// TableName is the column heading used in reports, "Name [abbr]" or just
// "Name" when the unit has no abbreviation.
func (r ResourceParameter) TableName() string {
	if r.Unit.Abbreviation == "" {
		return r.Name
	}
	return fmt.Sprintf("%s [%s]", r.Name, r.Unit.Abbreviation)
}
