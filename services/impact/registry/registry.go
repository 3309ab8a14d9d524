// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry discovers, qualifies and invokes impact functions.
//
// Functions are declared in a YAML manifest (an embedded one for the
// built-ins plus an optional external file) and bound to Go kernels by
// runner name. Requirement predicates decide which functions can run on a
// given pair of datasets.
//
// Thread Safety:
//
//	Registry and the package-level Default cache are safe for concurrent use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyID indicates a function registered without an ID.
	ErrEmptyID = errors.New("impact function has no id")

	// ErrDuplicateID indicates a second function with an existing ID.
	ErrDuplicateID = errors.New("impact function id already registered")

	// ErrNotFound indicates an unknown function ID.
	ErrNotFound = errors.New("impact function not found")

	// ErrNotAdmissible indicates datasets that do not meet a function's
	// requirements.
	ErrNotAdmissible = errors.New("datasets do not meet impact function requirements")

	// ErrNotRunnable indicates a function with no kernel.
	ErrNotRunnable = errors.New("impact function has no runner")
)

// =============================================================================
// Registry
// =============================================================================

// Registry holds impact functions in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]ImpactFunction
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]ImpactFunction)}
}

// Register adds a function. IDs must be non-empty and unique.
func (r *Registry) Register(fn ImpactFunction) error {
	if strings.TrimSpace(fn.ID) == "" {
		return ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[fn.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, fn.ID)
	}
	fn.Requirements = ExtractRequirements(fn)
	r.byID[fn.ID] = fn
	r.order = append(r.order, fn.ID)
	return nil
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns every function in registration order.
func (r *Registry) All() []ImpactFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ImpactFunction, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Get looks a function up by ID.
func (r *Registry) Get(id string) (ImpactFunction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.byID[id]
	return fn, ok
}

// FilterByName narrows the registry by function ID.
//
// An exact match returns just that function. Otherwise every function whose
// ID starts with name is returned, in registration order. An empty name
// returns everything.
func (r *Registry) FilterByName(name string) []ImpactFunction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.byID[name]; ok {
		return []ImpactFunction{fn}
	}
	var out []ImpactFunction
	for _, id := range r.order {
		if strings.HasPrefix(id, name) {
			out = append(out, r.byID[id])
		}
	}
	return out
}

// Admissible returns the functions whose requirements are met by the given
// dataset parameter sets, in registration order.
func (r *Registry) Admissible(params ...layer.Keywords) []ImpactFunction {
	var out []ImpactFunction
	for _, fn := range r.All() {
		if Matches(fn.Requirements, params...) {
			out = append(out, fn)
		}
	}
	return out
}

// Run executes a function after checking that the datasets qualify.
//
// Inputs:
//
//	ctx - Context passed to the kernel.
//	id - Function ID.
//	hazard, exposure - Input layers.
//
// Outputs:
//
//	layer.Layer - The impact layer.
//	error - ErrNotFound, ErrNotRunnable, ErrNotAdmissible or a kernel error.
func (r *Registry) Run(ctx context.Context, id string, hazard, exposure layer.Layer) (layer.Layer, error) {
	fn, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if fn.Run == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRunnable, id)
	}
	if !Matches(fn.Requirements, layer.ParamsFor(hazard), layer.ParamsFor(exposure)) {
		return nil, fmt.Errorf("%w: %s", ErrNotAdmissible, id)
	}
	return fn.Run(ctx, hazard, exposure)
}
