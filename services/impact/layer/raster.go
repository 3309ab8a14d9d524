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
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// ErrBadGrid indicates raster dimensions that do not match the data length.
var ErrBadGrid = errors.New("raster grid does not match data length")

// RasterLayer is a north-up grid stored row-major. NaN cells are no-data.
//
// Row 0 is the top row; OriginX/OriginY is the top-left corner.
type RasterLayer struct {
	ID       string
	Title    string
	Rows     int
	Cols     int
	OriginX  float64
	OriginY  float64
	CellSize float64
	Data     []float64
	Meta     Keywords
}

// NewRasterLayer validates the grid and returns a raster layer with a fresh ID.
func NewRasterLayer(title string, rows, cols int, originX, originY, cellSize float64, data []float64, kw Keywords) (*RasterLayer, error) {
	if rows <= 0 || cols <= 0 || rows*cols != len(data) {
		return nil, fmt.Errorf("NewRasterLayer %q: %dx%d with %d cells: %w", title, rows, cols, len(data), ErrBadGrid)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("NewRasterLayer %q: cell size must be positive, got %v", title, cellSize)
	}
	return &RasterLayer{
		ID:       NewID(),
		Title:    title,
		Rows:     rows,
		Cols:     cols,
		OriginX:  originX,
		OriginY:  originY,
		CellSize: cellSize,
		Data:     data,
		Meta:     kw,
	}, nil
}

// Name implements Layer.
func (r *RasterLayer) Name() string {
	if r.Title != "" {
		return r.Title
	}
	return r.ID
}

// Keywords implements Layer.
func (r *RasterLayer) Keywords() Keywords {
	if r.Meta == nil {
		return Keywords{}
	}
	return r.Meta
}

// IsPointData implements Layer. Always false.
func (r *RasterLayer) IsPointData() bool { return false }

// IsRasterData implements Layer. Always true.
func (r *RasterLayer) IsRasterData() bool { return true }

// At returns the value of a cell, or NaN when out of range.
func (r *RasterLayer) At(row, col int) float64 {
	if row < 0 || col < 0 || row >= r.Rows || col >= r.Cols {
		return math.NaN()
	}
	return r.Data[row*r.Cols+col]
}

// CellOf returns the cell containing p.
func (r *RasterLayer) CellOf(p geom.Point) (row, col int, ok bool) {
	col = int(math.Floor((p.X - r.OriginX) / r.CellSize))
	row = int(math.Floor((r.OriginY - p.Y) / r.CellSize))
	if row < 0 || col < 0 || row >= r.Rows || col >= r.Cols {
		return 0, 0, false
	}
	return row, col, true
}

// ValueAt samples the raster at a point. NaN outside the grid.
func (r *RasterLayer) ValueAt(p geom.Point) float64 {
	row, col, ok := r.CellOf(p)
	if !ok {
		return math.NaN()
	}
	return r.At(row, col)
}

// Sum adds every non-NaN cell.
func (r *RasterLayer) Sum() float64 {
	var total float64
	for _, v := range r.Data {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// SameGrid reports whether two rasters share shape and georeference.
func (r *RasterLayer) SameGrid(o *RasterLayer) bool {
	if o == nil {
		return false
	}
	return r.Rows == o.Rows && r.Cols == o.Cols &&
		r.OriginX == o.OriginX && r.OriginY == o.OriginY &&
		r.CellSize == o.CellSize
}

// Derive returns an empty raster on the same grid, filled with NaN.
func (r *RasterLayer) Derive(title string, kw Keywords) *RasterLayer {
	data := make([]float64, len(r.Data))
	for i := range data {
		data[i] = math.NaN()
	}
	return &RasterLayer{
		ID:       NewID(),
		Title:    title,
		Rows:     r.Rows,
		Cols:     r.Cols,
		OriginX:  r.OriginX,
		OriginY:  r.OriginY,
		CellSize: r.CellSize,
		Data:     data,
		Meta:     kw,
	}
}
