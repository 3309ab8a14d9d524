// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layer

import (
	"github.com/ctessum/geom"
)

// Feature is a single vector record: a geometry plus its attribute row.
type Feature struct {
	Geometry   geom.Geom
	Attributes map[string]any
}

// Attribute returns the named attribute and whether it was present.
func (f Feature) Attribute(name string) (any, bool) {
	if f.Attributes == nil {
		return nil, false
	}
	v, ok := f.Attributes[name]
	return v, ok
}

// GeometryKind declares the geometry of a vector layer.
type GeometryKind string

// Geometry kinds.
const (
	KindUnknown GeometryKind = ""
	KindPoint   GeometryKind = "point"
	KindPolygon GeometryKind = "polygon"
)

// FeatureSource is a layer whose features can be read one by one.
type FeatureSource interface {
	Layer

	// Len returns the number of features.
	Len() int

	// FeatureAt returns feature i, 0 <= i < Len().
	FeatureAt(i int) Feature
}

// VectorLayer is an ordered collection of features.
type VectorLayer struct {
	ID       string
	Title    string
	Features []Feature
	Meta     Keywords

	// Kind is the declared geometry kind. It decides the kind of an empty
	// layer; a non-empty layer is judged by its geometries.
	Kind GeometryKind
}

// NewVectorLayer creates a vector layer with a fresh ID. Kind is taken from
// the features and stays KindUnknown when there are none.
func NewVectorLayer(title string, features []Feature, kw Keywords) *VectorLayer {
	v := &VectorLayer{
		ID:       NewID(),
		Title:    title,
		Features: features,
		Meta:     kw,
	}
	switch {
	case v.IsPointData():
		v.Kind = KindPoint
	case v.IsPolygonData():
		v.Kind = KindPolygon
	}
	return v
}

// NewPointLayer creates a point layer. It stays point data when empty.
func NewPointLayer(title string, features []Feature, kw Keywords) *VectorLayer {
	v := NewVectorLayer(title, features, kw)
	v.Kind = KindPoint
	return v
}

// Name implements Layer.
func (v *VectorLayer) Name() string {
	if v.Title != "" {
		return v.Title
	}
	return v.ID
}

// Keywords implements Layer.
func (v *VectorLayer) Keywords() Keywords {
	if v.Meta == nil {
		return Keywords{}
	}
	return v.Meta
}

// IsRasterData implements Layer. Always false.
func (v *VectorLayer) IsRasterData() bool { return false }

// IsPointData implements Layer.
//
// An empty layer is point data only when declared KindPoint.
func (v *VectorLayer) IsPointData() bool {
	if len(v.Features) == 0 {
		return v.Kind == KindPoint
	}
	for _, f := range v.Features {
		switch f.Geometry.(type) {
		case geom.Point, *geom.Point:
		default:
			return false
		}
	}
	return true
}

// IsPolygonData reports whether every feature geometry is polygonal. An
// empty layer is polygon data only when declared KindPolygon.
func (v *VectorLayer) IsPolygonData() bool {
	if len(v.Features) == 0 {
		return v.Kind == KindPolygon
	}
	for _, f := range v.Features {
		if _, ok := f.Geometry.(geom.Polygonal); !ok {
			return false
		}
	}
	return true
}

// Len returns the number of features.
func (v *VectorLayer) Len() int {
	return len(v.Features)
}

// FeatureAt implements FeatureSource.
func (v *VectorLayer) FeatureAt(i int) Feature {
	return v.Features[i]
}

// Copy returns a copy of the layer with independent attribute maps.
// Geometries are shared; they are treated as immutable.
func (v *VectorLayer) Copy() *VectorLayer {
	features := make([]Feature, len(v.Features))
	for i, f := range v.Features {
		features[i] = Feature{
			Geometry:   f.Geometry,
			Attributes: copyAttributes(f.Attributes),
		}
	}
	return &VectorLayer{
		ID:       NewID(),
		Title:    v.Title,
		Features: features,
		Meta:     v.Meta.Clone(),
		Kind:     v.Kind,
	}
}

func copyAttributes(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, val := range in {
		out[k] = val
	}
	return out
}

// PointOf returns the representative point of a feature geometry: the point
// itself or the centroid of a polygonal geometry.
func PointOf(g geom.Geom) (geom.Point, bool) {
	switch t := g.(type) {
	case geom.Point:
		return t, true
	case *geom.Point:
		if t == nil {
			return geom.Point{}, false
		}
		return *t, true
	case geom.Polygonal:
		return t.Centroid(), true
	default:
		return geom.Point{}, false
	}
}
