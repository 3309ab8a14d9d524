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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianImpact/services/impact/functions"
	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// =============================================================================
// Fixtures
// =============================================================================

var basicFunctionCore = ImpactFunction{
	Metadata:     Metadata{ID: "BasicFunctionCore", Name: "Basic Function Core", Author: "Allen"},
	Requirements: []string{`category=="test_cat1"`, `unit=="MMI"`},
}

var syntaxErrorFunction = ImpactFunction{
	Metadata:     Metadata{ID: "SyntaxErrorFunction"},
	Requirements: []string{`category=="test_cat1"`, `unit="MMI"`},
}

func fixtureFunctions() []ImpactFunction {
	return []ImpactFunction{
		{
			Metadata: Metadata{ID: "F1", Title: "Title for F1"},
			Requirements: []string{
				"category=='test_cat1' and \\\n subcategory.startswith('flood') and \\\n layertype=='raster' and \\\n unit=='m'",
				"category=='test_cat2' and \\\n subcategory.startswith('population') and \\\n layertype=='raster' and \\\n datatype=='population'",
			},
		},
		{
			Metadata: Metadata{ID: "F2", Title: "Title for F2"},
			Requirements: []string{
				"category=='test_cat1' and subcategory.startswith('flood') and layertype=='raster' and unit=='m'",
				"category=='test_cat2' and subcategory.startswith('building')",
			},
		},
		{
			Metadata:     Metadata{ID: "F3", Title: "F3"},
			Requirements: []string{"category=='test_cat1'", "category=='test_cat2'"},
		},
		{
			Metadata: Metadata{ID: "F4"},
			Requirements: []string{
				"category=='hazard' and subcategory in ['flood', 'tsunami']",
				"category=='exposure' and subcategory in ['building', 'structure'] and layertype=='vector'",
			},
		},
	}
}

func fixtureRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := New()
	for _, fn := range fixtureFunctions() {
		require.NoError(t, reg.Register(fn))
	}
	return reg
}

func ids(fns []ImpactFunction) []string {
	out := make([]string, 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn.ID)
	}
	return out
}

// isolateDefault resets the cached registry around a test and clears any
// external manifest configuration.
func isolateDefault(t *testing.T) {
	t.Helper()
	t.Setenv(ManifestPathEnv, "")
	SetManifestPath("")
	ResetDefault()
	t.Cleanup(func() {
		SetManifestPath("")
		ResetDefault()
	})
}

// =============================================================================
// Requirements
// =============================================================================

func TestExtractRequirements_BasicFunctionCore(t *testing.T) {
	reqs := ExtractRequirements(basicFunctionCore)
	assert.Equal(t, []string{`category=="test_cat1"`, `unit=="MMI"`}, reqs)

	reqs[0] = "changed"
	assert.Equal(t, `category=="test_cat1"`, basicFunctionCore.Requirements[0])
}

func TestMatches_BasicFunctionCore(t *testing.T) {
	reqs := ExtractRequirements(basicFunctionCore)
	assert.True(t, Matches(reqs, layer.Keywords{"category": "test_cat1", "unit": "MMI"}))
	assert.False(t, Matches(reqs, layer.Keywords{"category": "test_cat2", "unit": "mmi2"}))
	assert.False(t, Matches(reqs, layer.Keywords{"category": "test_cat2"}))
}

func TestMatches_SyntaxErrorNeverMatches(t *testing.T) {
	params := layer.Keywords{"category": "test_cat1", "unit": "MMI"}
	assert.False(t, Matches(syntaxErrorFunction.Requirements, params))
	assert.True(t, CompatibleWith(syntaxErrorFunction.Requirements, params))
}

func TestMatches_EmptyInputs(t *testing.T) {
	assert.False(t, Matches(nil, layer.Keywords{"category": "x"}))
	assert.False(t, Matches([]string{"category == 'x'"}))
	assert.False(t, CompatibleWith(nil, layer.Keywords{"category": "x"}))
}

func TestCompatibleWith(t *testing.T) {
	f4 := fixtureFunctions()[3]
	assert.True(t, CompatibleWith(f4.Requirements, layer.Keywords{"category": "hazard", "subcategory": "flood"}))
	assert.True(t, CompatibleWith(f4.Requirements, layer.Keywords{"category": "exposure", "subcategory": "structure", "layertype": "vector"}))
	assert.False(t, CompatibleWith(f4.Requirements, layer.Keywords{"category": "hazard", "subcategory": "earthquake"}))
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistry_Admissible(t *testing.T) {
	reg := fixtureRegistry(t)

	tests := []struct {
		name     string
		hazard   layer.Keywords
		exposure layer.Keywords
		want     []string
	}{
		{
			name:     "flood on population raster",
			hazard:   layer.Keywords{"category": "test_cat1", "subcategory": "flood", "layertype": "raster", "unit": "m"},
			exposure: layer.Keywords{"category": "test_cat2", "subcategory": "population", "layertype": "raster", "datatype": "population"},
			want:     []string{"F1", "F3"},
		},
		{
			name:     "flood on buildings",
			hazard:   layer.Keywords{"category": "test_cat1", "subcategory": "flood_depth", "layertype": "raster", "unit": "m"},
			exposure: layer.Keywords{"category": "test_cat2", "subcategory": "building"},
			want:     []string{"F2", "F3"},
		},
		{
			name:     "tsunami on structures",
			hazard:   layer.Keywords{"category": "hazard", "subcategory": "tsunami", "layertype": "raster", "unit": "m"},
			exposure: layer.Keywords{"category": "exposure", "subcategory": "structure", "layertype": "vector"},
			want:     []string{"F4"},
		},
		{
			name:     "nothing fits",
			hazard:   layer.Keywords{"category": "hazard", "subcategory": "earthquake", "layertype": "raster", "unit": "MMI"},
			exposure: layer.Keywords{"category": "exposure", "subcategory": "road", "layertype": "vector"},
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(reg.Admissible(tt.hazard, tt.exposure)))
		})
	}
}

func TestRegistry_RegisterRejectsBadIDs(t *testing.T) {
	reg := fixtureRegistry(t)

	err := reg.Register(ImpactFunction{Metadata: Metadata{ID: "F1"}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	err = reg.Register(ImpactFunction{Metadata: Metadata{ID: "  "}})
	assert.ErrorIs(t, err, ErrEmptyID)

	assert.Equal(t, 4, reg.Len())
	fn, ok := reg.Get("F1")
	require.True(t, ok)
	assert.Equal(t, "Title for F1", fn.Title)
}

func TestRegistry_FilterByName(t *testing.T) {
	reg := fixtureRegistry(t)
	require.NoError(t, reg.Register(ImpactFunction{Metadata: Metadata{ID: "F10"}, Requirements: []string{"category == 'x'"}}))

	assert.Equal(t, []string{"F1"}, ids(reg.FilterByName("F1")))
	assert.Equal(t, []string{"F1", "F2", "F3", "F4", "F10"}, ids(reg.FilterByName("F")))
	assert.Len(t, reg.FilterByName(""), 5)
	assert.Empty(t, reg.FilterByName("G"))
}

func TestRegistry_AllKeepsOrderAndCopiesRequirements(t *testing.T) {
	fn := ImpactFunction{Metadata: Metadata{ID: "X"}, Requirements: []string{"category == 'a'"}}
	reg := New()
	require.NoError(t, reg.Register(fn))
	fn.Requirements[0] = "mutated"

	got, ok := reg.Get("X")
	require.True(t, ok)
	assert.Equal(t, "category == 'a'", got.Requirements[0])
	assert.Equal(t, []string{"F1", "F2", "F3", "F4"}, ids(fixtureRegistry(t).All()))
}

func TestTitleOfAndAsDict(t *testing.T) {
	fns := fixtureFunctions()
	assert.Equal(t, "Title for F1", TitleOf(fns[0]))
	assert.Equal(t, "F4", TitleOf(fns[3]))

	d := fns[0].AsDict()
	assert.Equal(t, "F1", d["id"])
	assert.Equal(t, "Title for F1", d["title"])
	_, hasTitle := fns[3].AsDict()["title"]
	assert.False(t, hasTitle)

	listing := ListingString(fns)
	assert.Len(t, strings.Split(listing, "\n"), 4)
	for _, fn := range fns {
		assert.Contains(t, listing, TitleOf(fn))
	}
}

func TestRegistry_Run(t *testing.T) {
	ctx := context.Background()
	isolateDefault(t)
	reg, err := Default(ctx)
	require.NoError(t, err)

	mmi, err := layer.NewRasterLayer("shake", 1, 2, 0, 1, 1, []float64{7, 8},
		layer.Keywords{"category": "hazard", "subcategory": "earthquake", "unit": "MMI"})
	require.NoError(t, err)
	pop, err := layer.NewRasterLayer("people", 1, 2, 0, 1, 1, []float64{100, 200},
		layer.Keywords{"category": "exposure", "subcategory": "population"})
	require.NoError(t, err)
	depth, err := layer.NewRasterLayer("flood", 1, 2, 0, 1, 1, []float64{0.5, 2},
		layer.Keywords{"category": "hazard", "subcategory": "flood", "unit": "m"})
	require.NoError(t, err)

	out, err := reg.Run(ctx, "ITBFatalityFunction", mmi, pop)
	require.NoError(t, err)
	assert.Contains(t, out.Keywords(), functions.KeyTotalFatalities)

	out, err = reg.Run(ctx, "FloodEvacuationFunction", depth, pop)
	require.NoError(t, err)
	assert.Equal(t, "200", out.Keywords()[functions.KeyTotalEvacuated])

	_, err = reg.Run(ctx, "ITBFatalityFunction", depth, pop)
	assert.ErrorIs(t, err, ErrNotAdmissible)

	_, err = reg.Run(ctx, "NoSuchFunction", mmi, pop)
	assert.ErrorIs(t, err, ErrNotFound)

	bare := New()
	require.NoError(t, bare.Register(basicFunctionCore))
	_, err = bare.Run(ctx, "BasicFunctionCore", mmi, pop)
	assert.ErrorIs(t, err, ErrNotRunnable)
}

// =============================================================================
// Manifest and default registry
// =============================================================================

func TestDefault_BuiltinFunctions(t *testing.T) {
	isolateDefault(t)
	fns, err := Discover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, fns)

	listing := ListingString(fns)
	params := layer.Keywords{"category": "hazard", "subcategory": "earthquake", "layerType": "raster"}
	for _, fn := range fns {
		assert.Contains(t, listing, TitleOf(fn))
		assert.NotEmpty(t, ExtractRequirements(fn), fn.ID)
		assert.NotNil(t, fn.Run, fn.ID)
		for _, req := range fn.Requirements {
			assert.NotPanics(t, func() { CompatibleWith([]string{req}, params) })
		}
	}

	reg, err := Default(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, reg.FilterByName("ITBFatalityFunction"))
}

func TestDefault_BuiltinAdmissibility(t *testing.T) {
	isolateDefault(t)
	reg, err := Default(context.Background())
	require.NoError(t, err)

	flood := layer.Keywords{"category": "hazard", "subcategory": "flood", "layertype": "raster", "unit": "m"}
	people := layer.Keywords{"category": "exposure", "subcategory": "population", "layertype": "raster"}
	buildings := layer.Keywords{"category": "exposure", "subcategory": "structure", "layertype": "vector"}

	assert.Equal(t, []string{"FloodEvacuationFunction"}, ids(reg.Admissible(flood, people)))
	assert.Equal(t, []string{"FloodBuildingImpactFunction"}, ids(reg.Admissible(flood, buildings)))
}

func TestDefault_CachedUntilReset(t *testing.T) {
	isolateDefault(t)
	ctx := context.Background()

	first, err := Default(ctx)
	require.NoError(t, err)
	second, err := Default(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	ResetDefault()
	third, err := Default(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, ids(first.All()), ids(third.All()))
}

func TestDefault_ConcurrentAccess(t *testing.T) {
	isolateDefault(t)

	var g errgroup.Group
	results := make([]*Registry, 32)
	for i := range results {
		g.Go(func() error {
			reg, err := Default(context.Background())
			results[i] = reg
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, reg := range results {
		assert.Same(t, results[0], reg)
	}
}

func TestDefault_NilContext(t *testing.T) {
	_, err := Default(nil)
	assert.Error(t, err)
}

const externalManifest = `functions:
  - id: TsunamiEvacuationFunction
    name: Tsunami Evacuation Function
    title: Need evacuation from tsunami
    impact: Need evacuation
    runner: flood_evacuation
    requirements:
      - category == "hazard" and subcategory == "tsunami" and layertype == "raster"
      - category == "exposure" and subcategory == "population" and layertype == "raster"
  - id: ITBFatalityFunction
    name: Shadowing builtin
    runner: itb_fatality
    requirements:
      - category == "nothing"
`

func TestDefault_ExternalManifest(t *testing.T) {
	isolateDefault(t)
	path := filepath.Join(t.TempDir(), "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(externalManifest), 0o600))
	t.Setenv(ManifestPathEnv, path)

	skipped := testutil.ToFloat64(registrySkipped.WithLabelValues("duplicate"))

	reg, err := Default(context.Background())
	require.NoError(t, err)

	fn, ok := reg.Get("TsunamiEvacuationFunction")
	require.True(t, ok)
	assert.Equal(t, "Need evacuation from tsunami", fn.Title)
	assert.NotNil(t, fn.Run)

	builtin, ok := reg.Get("ITBFatalityFunction")
	require.True(t, ok)
	assert.Equal(t, "ITB Fatality Function", builtin.Name, "first registration wins")
	assert.Equal(t, skipped+1, testutil.ToFloat64(registrySkipped.WithLabelValues("duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(registryFunctions.WithLabelValues("external")))
}

func TestDefault_ConfiguredManifestPath(t *testing.T) {
	isolateDefault(t)
	path := filepath.Join(t.TempDir(), "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(externalManifest), 0o600))
	SetManifestPath(path)
	assert.Equal(t, path, ManifestPath())

	reg, err := Default(context.Background())
	require.NoError(t, err)
	_, ok := reg.Get("TsunamiEvacuationFunction")
	assert.True(t, ok)
}

func TestDefault_BrokenExternalManifestFallsBack(t *testing.T) {
	isolateDefault(t)
	builtins, err := builtinFunctions()
	require.NoError(t, err)

	dir := t.TempDir()
	cases := map[string]string{
		"malformed":      "functions: [",
		"unknown runner": "functions:\n  - id: X\n    runner: nope\n    requirements: [\"category == 'a'\"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
			t.Setenv(ManifestPathEnv, path)
			ResetDefault()

			reg, err := Default(context.Background())
			require.NoError(t, err)
			assert.Equal(t, len(builtins), reg.Len())
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(ManifestPathEnv, filepath.Join(dir, "absent.yaml"))
		ResetDefault()
		reg, err := Default(context.Background())
		require.NoError(t, err)
		assert.Equal(t, len(builtins), reg.Len())
	})
}

func TestParseManifest_Validation(t *testing.T) {
	kernels := functions.Kernels()

	_, err := ParseManifest([]byte("functions:\n  - runner: itb_fatality\n    requirements: [\"a == 'b'\"]\n"), kernels)
	assert.ErrorIs(t, err, ErrEmptyID)

	_, err = ParseManifest([]byte("functions:\n  - id: A\n    runner: warp_drive\n    requirements: [\"a == 'b'\"]\n"), kernels)
	assert.ErrorIs(t, err, ErrUnknownRunner)

	_, err = ParseManifest([]byte("functions:\n  - id: A\n    runner: itb_fatality\n"), kernels)
	assert.Error(t, err)

	fns, err := ParseManifest([]byte("functions: []\n"), kernels)
	require.NoError(t, err)
	assert.Empty(t, fns)
}

func TestLoadExternalManifest_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxManifestFileSize+1), 0o600))
	_, err := loadExternalManifest(context.Background(), path)
	assert.Error(t, err)
}

// =============================================================================
// Watcher
// =============================================================================

func TestManifestWatcher_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "functions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(externalManifest), 0o600))

	changed := make(chan struct{}, 8)
	w, err := NewManifestWatcher(path, func() { changed <- struct{}{} })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(externalManifest+"\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification for manifest write")
	}
}

func TestWatch_ResetsDefault(t *testing.T) {
	isolateDefault(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "functions.yaml")
	t.Setenv(ManifestPathEnv, path)

	first, err := Default(context.Background())
	require.NoError(t, err)
	_, ok := first.Get("TsunamiEvacuationFunction")
	require.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path) }()

	// Give the watcher time to register before the file appears.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(externalManifest), 0o600))

	assert.Eventually(t, func() bool {
		reg, err := Default(context.Background())
		if err != nil {
			return false
		}
		_, ok := reg.Get("TsunamiEvacuationFunction")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "functions.yaml"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
