// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
	"github.com/AleutianAI/AleutianImpact/services/impact/requirements"
)

// RunFunc derives an impact layer from a hazard and an exposure layer.
type RunFunc func(ctx context.Context, hazard, exposure layer.Layer) (layer.Layer, error)

// Metadata describes an impact function for listings and reports.
type Metadata struct {
	ID              string `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Title           string `yaml:"title,omitempty" json:"title,omitempty"`
	Impact          string `yaml:"impact" json:"impact"`
	Author          string `yaml:"author" json:"author"`
	DateImplemented string `yaml:"date_implemented" json:"date_implemented"`
	Overview        string `yaml:"overview" json:"overview"`
}

// ImpactFunction is a registered analysis: metadata, the predicates its
// inputs must satisfy, and the kernel that runs it.
type ImpactFunction struct {
	Metadata

	// Requirements holds one predicate per line, usually one per input role.
	Requirements []string

	// Run is the kernel. Nil for functions that are listed but not runnable.
	Run RunFunc
}

// AsDict returns the metadata as a flat map. "title" is present only when
// the function has one.
func (f ImpactFunction) AsDict() map[string]string {
	d := map[string]string{
		"id":               f.ID,
		"name":             f.Name,
		"impact":           f.Impact,
		"author":           f.Author,
		"date_implemented": f.DateImplemented,
		"overview":         f.Overview,
	}
	if f.Title != "" {
		d["title"] = f.Title
	}
	return d
}

// ExtractRequirements returns a copy of the declared predicates, in order.
func ExtractRequirements(f ImpactFunction) []string {
	out := make([]string, len(f.Requirements))
	copy(out, f.Requirements)
	return out
}

// Matches reports whether the datasets satisfy a function's requirements.
//
// Description:
//
//	True iff requirements is non-empty and every predicate holds for at
//	least one of the parameter sets. With a single set this is a plain AND
//	across lines; with a hazard and an exposure set each role line may be
//	met by either dataset. Predicates that fail to evaluate count as not
//	satisfied and are logged by requirements.Check.
//
// Inputs:
//
//	reqs - Predicates, as returned by ExtractRequirements.
//	params - One parameter set per dataset, see layer.ParamsFor.
//
// Outputs:
//
//	bool - True when every predicate is met.
//
// Example:
//
//	ok := registry.Matches(fn.Requirements, layer.ParamsFor(hazard), layer.ParamsFor(exposure))
func Matches(reqs []string, params ...layer.Keywords) bool {
	if len(reqs) == 0 || len(params) == 0 {
		return false
	}
	for _, predicate := range reqs {
		if !anySatisfies(predicate, params) {
			return false
		}
	}
	return true
}

func anySatisfies(predicate string, params []layer.Keywords) bool {
	for _, p := range params {
		if requirements.Check(p, predicate) {
			return true
		}
	}
	return false
}

// CompatibleWith reports whether a single dataset can fill at least one
// role of a function, i.e. whether any predicate holds for it.
func CompatibleWith(reqs []string, params layer.Keywords) bool {
	for _, predicate := range reqs {
		if requirements.Check(params, predicate) {
			return true
		}
	}
	return false
}

// TitleOf returns the display title, falling back to the ID.
func TitleOf(f ImpactFunction) string {
	if f.Title != "" {
		return f.Title
	}
	return f.ID
}
