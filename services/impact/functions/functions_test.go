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
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// grid builds a 2x2 raster whose top-left corner is (0, 2) with unit cells.
func grid(t *testing.T, kw layer.Keywords, data ...float64) *layer.RasterLayer {
	t.Helper()
	r, err := layer.NewRasterLayer("grid", 2, 2, 0, 2, 1, data, kw)
	require.NoError(t, err)
	return r
}

func TestITBFatality(t *testing.T) {
	nan := math.NaN()
	mmi := grid(t, layer.Keywords{"unit": "MMI"}, 8, nan, 5, 9)
	pop := grid(t, layer.Keywords{"datatype": "population"}, 1000, 500, 2000, 0)

	out, err := ITBFatality(context.Background(), mmi, pop)
	require.NoError(t, err)

	r, ok := out.(*layer.RasterLayer)
	require.True(t, ok)
	assert.InDelta(t, 1000*ITBFatalityRate(8), r.Data[0], 1e-12)
	assert.True(t, math.IsNaN(r.Data[1]))
	assert.InDelta(t, 2000*ITBFatalityRate(5), r.Data[2], 1e-12)
	assert.Zero(t, r.Data[3])

	assert.Equal(t, "10", r.Keywords()[KeyTotalFatalities])
	assert.Equal(t, "3000", r.Keywords()[KeyTotalExposed])
	assert.NotEqual(t, mmi.ID, r.ID)
	assert.Equal(t, 8.0, mmi.Data[0], "hazard must not be modified")
}

func TestITBFatalityRate(t *testing.T) {
	assert.InDelta(t, math.Pow(10, 0.62275231*7-8.03314466), ITBFatalityRate(7), 1e-15)
	assert.Less(t, ITBFatalityRate(6), ITBFatalityRate(7))
}

func TestRasterKernels_InputErrors(t *testing.T) {
	ctx := context.Background()
	ok := grid(t, nil, 1, 1, 1, 1)
	other, err := layer.NewRasterLayer("wide", 1, 4, 0, 2, 1, []float64{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	points := layer.NewVectorLayer("pts", []layer.Feature{{Geometry: geom.Point{X: 0.5, Y: 0.5}}}, nil)

	for name, k := range map[string]Kernel{
		"itb":         ITBFatality,
		"evacuation":  FloodEvacuation,
		"categorised": CategorisedPopulation,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := k(ctx, ok, other)
			assert.ErrorIs(t, err, ErrGridMismatch)

			_, err = k(ctx, points, ok)
			assert.ErrorIs(t, err, ErrWrongInput)

			_, err = k(ctx, ok, points)
			assert.ErrorIs(t, err, ErrWrongInput)

			_, err = k(ctx, nil, ok)
			assert.ErrorIs(t, err, ErrWrongInput)
		})
	}
}

func TestKernels_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := grid(t, nil, 1, 1, 1, 1)
	_, err := FloodEvacuation(ctx, r, r)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFloodEvacuation(t *testing.T) {
	nan := math.NaN()
	depth := grid(t, layer.Keywords{"unit": "m"}, 0.5, 1.0, 2.0, nan)
	pop := grid(t, nil, 100, 200, 300, 400)

	out, err := FloodEvacuation(context.Background(), depth, pop)
	require.NoError(t, err)

	r := out.(*layer.RasterLayer)
	assert.Equal(t, []float64{0, 200, 300}, r.Data[:3])
	assert.True(t, math.IsNaN(r.Data[3]))
	assert.Equal(t, "500", r.Keywords()[KeyTotalEvacuated])
	assert.Equal(t, "1000", r.Keywords()[KeyTotalPopulation])
	assert.Equal(t, "impact", r.Keywords()[layer.KeyCategory])
}

func TestFloodBuildingImpact_NoBuildings(t *testing.T) {
	depth := grid(t, nil, 0.2, 1.5, 3.0, math.NaN())
	out, err := FloodBuildingImpact(context.Background(), depth, layer.NewVectorLayer("buildings", nil, nil))
	require.NoError(t, err)

	v := out.(*layer.VectorLayer)
	assert.Equal(t, 0, v.Len())
	assert.True(t, v.IsPointData())
	assert.Equal(t, "0", v.Keywords()[KeyBuildingsAffected])
	assert.Equal(t, "0", v.Keywords()[KeyBuildingsTotal])
}

func TestFloodBuildingImpact(t *testing.T) {
	depth := grid(t, nil, 0.2, 1.5, 3.0, math.NaN())
	buildings := layer.NewVectorLayer("buildings", []layer.Feature{
		{Geometry: geom.Point{X: 0.5, Y: 1.5}, Attributes: map[string]any{"id": 1}},
		{Geometry: geom.Point{X: 1.5, Y: 1.5}, Attributes: map[string]any{"id": 2}},
		{Geometry: geom.Point{X: 0.5, Y: 0.5}, Attributes: map[string]any{"id": 3}},
		{Geometry: geom.Point{X: 1.5, Y: 0.5}, Attributes: map[string]any{"id": 4}},
		{Geometry: geom.Point{X: 10, Y: 10}, Attributes: map[string]any{"id": 5}},
	}, layer.Keywords{"subcategory": "structure"})

	out, err := FloodBuildingImpact(context.Background(), depth, buildings)
	require.NoError(t, err)

	v, ok := out.(*layer.VectorLayer)
	require.True(t, ok)
	assert.True(t, v.IsPointData())

	var flags []bool
	for _, f := range v.Features {
		flag, _ := f.Attribute(AffectedAttribute)
		flags = append(flags, flag.(bool))
	}
	assert.Equal(t, []bool{false, true, true, false, false}, flags)
	assert.Equal(t, "2", v.Keywords()[KeyBuildingsAffected])
	assert.Equal(t, "5", v.Keywords()[KeyBuildingsTotal])

	_, touched := buildings.Features[1].Attribute(AffectedAttribute)
	assert.False(t, touched, "exposure must not be modified")

	_, err = FloodBuildingImpact(context.Background(), buildings, buildings)
	assert.ErrorIs(t, err, ErrWrongInput)
	_, err = FloodBuildingImpact(context.Background(), depth, depth)
	assert.ErrorIs(t, err, ErrWrongInput)
}

func TestCategorisedPopulation(t *testing.T) {
	zones := grid(t, nil, 1, 2, 3, 0)
	pop := grid(t, nil, 10, 20, 30, 40)

	out, err := CategorisedPopulation(context.Background(), zones, pop)
	require.NoError(t, err)

	r := out.(*layer.RasterLayer)
	assert.Equal(t, []float64{10, 20, 30, 0}, r.Data)
	assert.Equal(t, "10", r.Keywords()[KeyPopulationLow])
	assert.Equal(t, "20", r.Keywords()[KeyPopulationMedium])
	assert.Equal(t, "30", r.Keywords()[KeyPopulationHigh])
}

func TestKernels_Names(t *testing.T) {
	k := Kernels()
	assert.Len(t, k, 4)
	for _, name := range []string{"itb_fatality", "flood_evacuation", "flood_building_impact", "categorised_population"} {
		assert.NotNil(t, k[name], name)
	}
}
