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
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxProfileFileSize caps profile files (256KB).
const MaxProfileFileSize = 256 * 1024

// ErrEmptyProfile indicates a profile without resources.
var ErrEmptyProfile = errors.New("needs profile has no resources")

// Profile is a named, versioned set of minimum-needs rations.
//
// Profiles are YAML; JSON files load as well since JSON is a YAML subset.
type Profile struct {
	Name       string              `yaml:"name" json:"name"`
	Provenance string              `yaml:"provenance,omitempty" json:"provenance,omitempty"`
	Resources  []ResourceParameter `yaml:"resources" json:"resources"`
}

// DefaultProfile wraps DefaultMinimumNeeds.
func DefaultProfile() Profile {
	return Profile{
		Name:       "default",
		Provenance: "The Sphere Handbook, minimum standards in humanitarian response",
		Resources:  DefaultMinimumNeeds(),
	}
}

// ParseProfile decodes and validates a profile document.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("unmarshaling needs profile: %w", err)
	}
	if len(p.Resources) == 0 {
		return Profile{}, ErrEmptyProfile
	}
	for i, res := range p.Resources {
		if err := res.Validate(); err != nil {
			return Profile{}, fmt.Errorf("needs profile resource %d: %w", i, err)
		}
	}
	return p, nil
}

// LoadProfile reads a profile from disk.
//
// Inputs:
//
//	path - Profile file path (YAML or JSON).
//
// Outputs:
//
//	Profile - The validated profile.
//	error - Non-nil if the file is missing, too large, malformed or invalid.
func LoadProfile(path string) (Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Profile{}, fmt.Errorf("stat needs profile: %w", err)
	}
	if info.Size() > MaxProfileFileSize {
		return Profile{}, fmt.Errorf("needs profile too large: %d bytes (max %d)", info.Size(), MaxProfileFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading needs profile: %w", err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// SaveProfile validates and writes a profile as YAML.
func SaveProfile(path string, p Profile) error {
	for i, res := range p.Resources {
		if err := res.Validate(); err != nil {
			return fmt.Errorf("needs profile resource %d: %w", i, err)
		}
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling needs profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing needs profile: %w", err)
	}
	return nil
}
