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
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianImpact/pkg/ux"
	"github.com/AleutianAI/AleutianImpact/services/impact/rounding"
	"github.com/spf13/cobra"
)

// RoundResult is one rounded population figure.
type RoundResult struct {
	Input     string `json:"input"`
	Rounded   int    `json:"rounded"`
	Precision int    `json:"precision"`
}

func newRoundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "round N...",
		Short: "Round population figures for reporting",
		Long: `Rounds each figure up to the precision of its magnitude: nearest 10
below 1,000, nearest 100 below 100,000, nearest 1,000 above. Fractional
figures are first rounded up to a whole person.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			start := time.Now()
			results := make([]RoundResult, 0, len(args))
			for _, arg := range args {
				r, err := roundArg(arg)
				if err != nil {
					return err
				}
				results = append(results, r)
			}

			a.report("round", start, results, false, nil, func(p *ux.Printer) {
				width := 0
				for _, r := range results {
					width = max(width, len(r.Input)+1)
				}
				p.Title("Rounded population")
				for _, r := range results {
					p.Field(r.Input, width, fmt.Sprintf("%d (nearest %d)", r.Rounded, r.Precision))
				}
			})
			return nil
		},
	}
}

func roundArg(arg string) (RoundResult, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		rounded, precision := rounding.RoundPopulation(n)
		return RoundResult{Input: arg, Rounded: rounded, Precision: precision}, nil
	}
	f, err := strconv.ParseFloat(arg, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return RoundResult{}, fmt.Errorf("invalid population %q", arg)
	}
	rounded, precision := rounding.RoundFloat(f)
	return RoundResult{Input: arg, Rounded: rounded, Precision: precision}, nil
}
