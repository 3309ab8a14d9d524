// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianImpact/pkg/ux"
	"github.com/AleutianAI/AleutianImpact/services/impact/needs"
	"github.com/spf13/cobra"
)

// NeedsResult is the output of "needs".
type NeedsResult struct {
	Population int          `json:"population"`
	Profile    string       `json:"profile"`
	Report     needs.Report `json:"report"`
}

func newNeedsCmd(a *app) *cobra.Command {
	var (
		population  int
		profilePath string
	)
	cmd := &cobra.Command{
		Use:   "needs",
		Short: "Compute minimum relief needs for an affected population",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			start := time.Now()
			if population < 0 {
				return errors.New("--population must not be negative")
			}

			profile, err := a.needsProfile(profilePath)
			if err != nil {
				a.report("needs", start, nil, false, err, nil)
				return nil
			}

			report := needs.Compute(population, profile.Resources)
			result := NeedsResult{Population: population, Profile: profile.Name, Report: report}
			a.report("needs", start, result, false, nil, func(p *ux.Printer) {
				renderNeeds(p, result)
			})
			return nil
		},
	}
	cmd.Flags().IntVarP(&population, "population", "n", 0, "Affected population")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Needs profile file (default: configured profile, else built-in)")
	_ = cmd.MarkFlagRequired("population")
	return cmd
}

// needsProfile resolves the flag, then the configured profile, then the
// built-in one.
func (a *app) needsProfile(flagPath string) (needs.Profile, error) {
	path := flagPath
	if path == "" {
		path = a.cfg.Needs.ProfilePath
	}
	if path == "" {
		return needs.DefaultProfile(), nil
	}
	profile, err := needs.LoadProfile(path)
	if err != nil {
		return needs.Profile{}, err
	}
	a.log.Debug("Loaded needs profile",
		slog.String("path", path),
		slog.String("name", profile.Name),
		slog.Int("resource_count", len(profile.Resources)))
	return profile, nil
}

func renderNeeds(p *ux.Printer, result NeedsResult) {
	p.Title(fmt.Sprintf("Minimum needs for %d people", result.Population))
	p.Subtitle("Profile: " + result.Profile)

	width := 0
	for _, bucket := range result.Report.Needs {
		for _, n := range bucket {
			width = max(width, len(n.TableName)+1)
		}
	}
	for _, freq := range result.Report.Frequencies {
		p.Blank()
		p.Subtitle(capitalize(freq))
		for _, n := range result.Report.Bucket(freq) {
			p.Field(n.TableName, width, fmt.Sprintf("%d", n.Amount))
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
