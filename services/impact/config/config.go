// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the impact engine configuration file.
//
// Configuration is read from impact.yaml. Missing files fall back to
// defaults; environment variables override individual fields.
//
// Thread Safety:
//
//	Config values are plain data. Load and Default may be called concurrently.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvFunctionsPath = "IMPACT_FUNCTIONS_PATH"
	EnvLogLevel      = "IMPACT_LOG_LEVEL"
	EnvNeedsProfile  = "IMPACT_NEEDS_PROFILE"
	EnvConfigPath    = "IMPACT_CONFIG"
)

// MaxConfigFileSize is the maximum config file size (64KB).
const MaxConfigFileSize = 64 * 1024

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "impact.yaml"

var validate = validator.New()

// Config is the root of impact.yaml.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Functions FunctionsConfig `yaml:"functions"`
	Needs     NeedsConfig     `yaml:"needs"`
}

// LogConfig controls pkg/logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Dir    string `yaml:"dir,omitempty"`
}

// FunctionsConfig controls the impact function registry.
type FunctionsConfig struct {
	// ManifestPath is an external manifest added to the built-ins.
	ManifestPath string `yaml:"manifest_path,omitempty"`
}

// NeedsConfig controls minimum-needs reporting.
type NeedsConfig struct {
	// ProfilePath is a needs profile replacing the default rations.
	ProfilePath string `yaml:"profile_path,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file and applies environment overrides.
//
// Description:
//
//	An empty path means $IMPACT_CONFIG, then ./impact.yaml. A missing
//	default file is not an error; a missing explicit file is. Fields absent
//	from the file keep their defaults.
//
// Inputs:
//
//	path - Config file path, or "".
//
// Outputs:
//
//	Config - The validated configuration.
//	error - Non-nil if the file is unreadable, malformed or invalid.
//
// Example:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultFileName
	}

	data, err := readFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.resolvePaths(filepath.Dir(path))
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvFunctionsPath); v != "" {
		c.Functions.ManifestPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvNeedsProfile); v != "" {
		c.Needs.ProfilePath = v
	}
}

// resolvePaths makes file references relative to the config file.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Functions.ManifestPath, &c.Needs.ProfilePath, &c.Log.Dir} {
		if *p != "" && !filepath.IsAbs(*p) && (*p)[0] != '~' {
			*p = filepath.Join(base, *p)
		}
	}
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return data, nil
}
