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
	"time"

	"github.com/AleutianAI/AleutianImpact/pkg/ux"
	"github.com/AleutianAI/AleutianImpact/services/impact/keywords"
	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
	"github.com/spf13/cobra"
)

// ConvertResult is the output of "keywords convert".
type ConvertResult struct {
	Input  layer.Keywords `json:"input"`
	Output layer.Keywords `json:"output"`
}

func newKeywordsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Work with dataset keywords",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "convert key=value...",
		Short: "Convert keywords to their legacy unit names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			start := time.Now()
			input, err := parseKeyValues(args)
			if err != nil {
				return err
			}

			table, err := keywords.DefaultTable()
			if err != nil {
				a.report("keywords convert", start, nil, false, err, nil)
				return nil
			}
			output, err := keywords.Convert(table, input)
			result := ConvertResult{Input: input, Output: output}
			a.report("keywords convert", start, result, false, err, func(p *ux.Printer) {
				p.Box("Keywords", output.String())
			})
			return nil
		},
	})
	return cmd
}
