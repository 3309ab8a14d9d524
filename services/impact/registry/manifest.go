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
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianImpact/services/impact/functions"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxManifestFileSize is the maximum external manifest size (1MB).
	MaxManifestFileSize = 1024 * 1024

	// MaxManifestEntries caps the functions one manifest may declare.
	MaxManifestEntries = 500
)

//go:embed manifest.yaml
var builtinManifestYAML []byte

// ErrUnknownRunner indicates a manifest entry naming no known kernel.
var ErrUnknownRunner = errors.New("unknown impact function runner")

// =============================================================================
// Types
// =============================================================================

// Manifest is the root of a function manifest document.
type Manifest struct {
	Functions []ManifestEntry `yaml:"functions"`
}

// ManifestEntry declares one impact function.
type ManifestEntry struct {
	Metadata `yaml:",inline"`

	// Runner names the kernel, see functions.Kernels.
	Runner string `yaml:"runner"`

	// Requirements holds one predicate per line.
	Requirements []string `yaml:"requirements"`
}

// =============================================================================
// Parsing
// =============================================================================

// ParseManifest decodes a manifest and binds its entries to kernels.
//
// Description:
//
//	Every entry needs an ID, a known runner and at least one requirement.
//	Duplicate IDs are not rejected here; Register decides which one wins.
//
// Inputs:
//
//	data - Manifest YAML.
//	kernels - Runner name to kernel, usually functions.Kernels().
//
// Outputs:
//
//	[]ImpactFunction - Functions in manifest order.
//	error - Non-nil if the document or any entry is invalid.
func ParseManifest(data []byte, kernels map[string]functions.Kernel) ([]ImpactFunction, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshaling manifest: %w", err)
	}
	if len(m.Functions) > MaxManifestEntries {
		return nil, fmt.Errorf("manifest declares %d functions (max %d)", len(m.Functions), MaxManifestEntries)
	}

	out := make([]ImpactFunction, 0, len(m.Functions))
	for i, entry := range m.Functions {
		if entry.ID == "" {
			return nil, fmt.Errorf("manifest entry %d: %w", i, ErrEmptyID)
		}
		if len(entry.Requirements) == 0 {
			return nil, fmt.Errorf("manifest entry %s: no requirements", entry.ID)
		}
		kernel, ok := kernels[entry.Runner]
		if !ok {
			return nil, fmt.Errorf("manifest entry %s: %w: %q", entry.ID, ErrUnknownRunner, entry.Runner)
		}
		out = append(out, ImpactFunction{
			Metadata:     entry.Metadata,
			Requirements: entry.Requirements,
			Run:          RunFunc(kernel),
		})
	}
	return out, nil
}

// builtinFunctions parses the embedded manifest.
func builtinFunctions() ([]ImpactFunction, error) {
	fns, err := ParseManifest(builtinManifestYAML, functions.Kernels())
	if err != nil {
		return nil, fmt.Errorf("builtin manifest: %w", err)
	}
	return fns, nil
}

// loadExternalManifest reads and parses a manifest file with a size cap.
func loadExternalManifest(ctx context.Context, path string) ([]ImpactFunction, error) {
	_, span := registryTracer.Start(ctx, "registry.LoadExternal",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	if info.Size() > MaxManifestFileSize {
		return nil, fmt.Errorf("manifest too large: %d bytes (max %d)", info.Size(), MaxManifestFileSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, functions.Kernels())
}
