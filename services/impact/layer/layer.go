// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layer provides the in-memory dataset model consumed by impact
// functions, requirement matching and boundary aggregation.
//
// Loading datasets from disk is out of scope; callers construct layers from
// whatever reader they use and hand them over fully materialised.
//
// Thread Safety:
//
//	Layers are not synchronised. They are safe for concurrent reads as long
//	as no goroutine mutates them.
package layer

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Well-known keyword keys.
const (
	KeyCategory    = "category"
	KeySubcategory = "subcategory"
	KeyLayerType   = "layertype"
	KeyUnit        = "unit"
	KeyDataType    = "datatype"
	KeyTitle       = "title"
)

// Layer type keyword values.
const (
	TypeRaster = "raster"
	TypeVector = "vector"
)

// Keywords is the descriptive metadata attached to a dataset.
//
// It doubles as the parameter set against which requirement predicates are
// evaluated.
type Keywords map[string]string

// Clone returns an independent copy of the keywords. A nil receiver yields an
// empty, non-nil map.
func (k Keywords) Clone() Keywords {
	out := make(Keywords, len(k))
	for key, val := range k {
		out[key] = val
	}
	return out
}

// String renders one "key: value" line per keyword, sorted by key.
func (k Keywords) String() string {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(k[key])
	}
	return b.String()
}

// Layer is the minimal capability surface of a dataset.
type Layer interface {
	// Name is a human-readable identifier.
	Name() string

	// IsPointData reports whether every feature is a point.
	IsPointData() bool

	// IsRasterData reports whether the layer is a grid.
	IsRasterData() bool

	// Keywords returns the layer metadata. Callers must not mutate it.
	Keywords() Keywords
}

// ParamsFor builds the requirement parameter set for a layer.
//
// The layer keywords are copied and "layertype" is filled in from the data
// kind when the keywords do not already carry it.
func ParamsFor(l Layer) Keywords {
	if l == nil {
		return Keywords{}
	}
	params := l.Keywords().Clone()
	if _, ok := params[KeyLayerType]; !ok {
		if l.IsRasterData() {
			params[KeyLayerType] = TypeRaster
		} else {
			params[KeyLayerType] = TypeVector
		}
	}
	return params
}

// NewID returns a fresh identifier for a derived layer.
func NewID() string {
	return uuid.NewString()
}
