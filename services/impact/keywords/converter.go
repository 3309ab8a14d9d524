// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package keywords converts dataset keywords from the current vocabulary to
// the legacy one still expected by older impact functions.
package keywords

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

//go:embed converter.yaml
var defaultTableYAML []byte

// ErrUnknownKeyword indicates a category, subcategory or unit that has no
// entry in the conversion table.
var ErrUnknownKeyword = errors.New("keyword has no legacy mapping")

// Table maps category -> subcategory -> new unit -> legacy unit.
type Table map[string]map[string]map[string]string

var (
	defaultTable     Table
	defaultTableErr  error
	defaultTableOnce sync.Once
)

// DefaultTable returns the embedded conversion table.
//
// The table is parsed once and shared; callers must not mutate it.
func DefaultTable() (Table, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = ParseTable(defaultTableYAML)
	})
	return defaultTable, defaultTableErr
}

// ParseTable decodes a conversion table document.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshaling keyword table: %w", err)
	}
	if len(t) == 0 {
		return nil, errors.New("keyword table is empty")
	}
	return t, nil
}

// Convert maps the unit keyword to its legacy value.
//
// Description:
//
//	The unit is looked up as table[category][subcategory][unit]. A unit that
//	is already a legacy value for that subcategory is kept as is, so
//	converting twice gives the same result. Keywords without a unit are
//	returned unchanged. The input is never modified.
//
// Inputs:
//
//	table - Conversion table, usually DefaultTable().
//	kw - Keywords to convert.
//
// Outputs:
//
//	layer.Keywords - A converted copy.
//	error - Wraps ErrUnknownKeyword when no mapping exists.
//
// Example:
//
//	out, _ := keywords.Convert(table, layer.Keywords{
//	    "category": "hazard", "subcategory": "tsunami", "unit": "metres_depth",
//	})
//	out["unit"] // "m"
func Convert(table Table, kw layer.Keywords) (layer.Keywords, error) {
	out := kw.Clone()
	unit, ok := out[layer.KeyUnit]
	if !ok {
		return out, nil
	}

	category := out[layer.KeyCategory]
	subcategories, ok := table[category]
	if !ok {
		return nil, fmt.Errorf("%w: category %q", ErrUnknownKeyword, category)
	}
	subcategory := out[layer.KeySubcategory]
	units, ok := subcategories[subcategory]
	if !ok {
		return nil, fmt.Errorf("%w: subcategory %q of %q", ErrUnknownKeyword, subcategory, category)
	}

	if legacy, ok := units[unit]; ok {
		out[layer.KeyUnit] = legacy
		return out, nil
	}
	for _, legacy := range units {
		if legacy == unit {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: unit %q of %s/%s", ErrUnknownKeyword, unit, category, subcategory)
}

// ConvertAll converts every keyword set, stopping at the first failure.
func ConvertAll(table Table, all []layer.Keywords) ([]layer.Keywords, error) {
	out := make([]layer.Keywords, 0, len(all))
	for i, kw := range all {
		converted, err := Convert(table, kw)
		if err != nil {
			return nil, fmt.Errorf("keyword set %d: %w", i, err)
		}
		out = append(out, converted)
	}
	return out, nil
}
