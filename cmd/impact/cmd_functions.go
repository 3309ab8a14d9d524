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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianImpact/pkg/ux"
	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
	"github.com/AleutianAI/AleutianImpact/services/impact/registry"
	"github.com/spf13/cobra"
)

// errNoManifest is returned by "functions watch" without a manifest path.
var errNoManifest = errors.New("no manifest path: use --path, functions.manifest_path or " + registry.ManifestPathEnv)

// FunctionView is the listing form of an impact function.
type FunctionView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Impact       string   `json:"impact,omitempty"`
	Requirements []string `json:"requirements"`
	Runnable     bool     `json:"runnable"`
}

func viewOf(fns []registry.ImpactFunction) []FunctionView {
	out := make([]FunctionView, 0, len(fns))
	for _, fn := range fns {
		out = append(out, FunctionView{
			ID:           fn.ID,
			Name:         fn.Name,
			Title:        fn.Title,
			Impact:       fn.Impact,
			Requirements: registry.ExtractRequirements(fn),
			Runnable:     fn.Run != nil,
		})
	}
	return out
}

// MatchResult is the output of "functions match".
type MatchResult struct {
	Datasets  []layer.Keywords `json:"datasets"`
	Functions []FunctionView   `json:"functions"`
}

// WatchResult is the output of "functions watch".
type WatchResult struct {
	Path    string `json:"path"`
	Reloads int    `json:"reloads"`
}

func newFunctionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "functions",
		Short:   "Inspect the impact function registry",
		Aliases: []string{"fn"},
	}
	cmd.AddCommand(
		newFunctionsListCmd(a),
		newFunctionsMatchCmd(a),
		newFunctionsWatchCmd(a),
	)
	return cmd
}

// =============================================================================
// functions list
// =============================================================================

func newFunctionsListCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered impact functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			reg, err := registry.Default(commandContext(cmd))
			if err != nil {
				a.report("functions list", start, nil, false, err, nil)
				return nil
			}

			fns := reg.All()
			if name != "" {
				fns = reg.FilterByName(name)
			}
			// A name filter that selects nothing is a finding.
			findings := name != "" && len(fns) == 0
			a.report("functions list", start, viewOf(fns), findings, nil, func(p *ux.Printer) {
				if findings {
					p.Warning(fmt.Sprintf("No impact function matching %q", name))
					return
				}
				p.Title(fmt.Sprintf("Impact functions (%d)", len(fns)))
				p.List(registry.ListingString(fns))
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Filter by function ID (exact, else prefix)")
	return cmd
}

// =============================================================================
// functions match
// =============================================================================

func newFunctionsMatchCmd(a *app) *cobra.Command {
	var params, datasets []string
	cmd := &cobra.Command{
		Use:   "match",
		Short: "List impact functions admissible for the given keywords",
		Long: `Each --param adds one key=value to a single keyword set. Each
--dataset describes a whole keyword set as "k=v,k=v". A function matches
when every one of its requirements is satisfied by at least one set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			sets, err := keywordSets(params, datasets)
			if err != nil {
				return err
			}

			reg, err := registry.Default(commandContext(cmd))
			if err != nil {
				a.report("functions match", start, nil, false, err, nil)
				return nil
			}

			matched := reg.Admissible(sets...)
			a.log.Debug("Matched impact functions",
				slog.Int("dataset_count", len(sets)),
				slog.Int("match_count", len(matched)))

			result := MatchResult{Datasets: sets, Functions: viewOf(matched)}
			a.report("functions match", start, result, len(matched) == 0, nil, func(p *ux.Printer) {
				if len(matched) == 0 {
					p.Warning("No impact function matches the given keywords")
					return
				}
				p.Title(fmt.Sprintf("Matching impact functions (%d)", len(matched)))
				p.List(registry.ListingString(matched))
			})
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Keyword key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&datasets, "dataset", "d", nil, `Dataset keywords "k=v,k=v" (repeatable)`)
	return cmd
}

// keywordSets combines --param pairs and --dataset values into parameter sets.
func keywordSets(params, datasets []string) ([]layer.Keywords, error) {
	var sets []layer.Keywords
	if len(params) > 0 {
		kw, err := parseKeyValues(params)
		if err != nil {
			return nil, err
		}
		sets = append(sets, kw)
	}
	for _, raw := range datasets {
		kw, err := parseDataset(raw)
		if err != nil {
			return nil, err
		}
		sets = append(sets, kw)
	}
	if len(sets) == 0 {
		return nil, errors.New("no keywords: use --param or --dataset")
	}
	return sets, nil
}

// =============================================================================
// functions watch
// =============================================================================

func newFunctionsWatchCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the registry whenever the external manifest changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			if path == "" {
				path = registry.ManifestPath()
			}
			if path == "" {
				return errNoManifest
			}
			if path != registry.ManifestPath() {
				if env := os.Getenv(registry.ManifestPathEnv); env != "" {
					return fmt.Errorf("--path %s conflicts with %s=%s", path, registry.ManifestPathEnv, env)
				}
				registry.SetManifestPath(path)
				registry.ResetDefault()
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, err := registry.Default(ctx)
			if err != nil {
				a.report("functions watch", start, nil, false, err, nil)
				return nil
			}

			result := WatchResult{Path: path}
			watcher, err := registry.NewManifestWatcher(path, func() {
				registry.ResetDefault()
				reg, err := registry.Default(ctx)
				if err != nil {
					a.log.Warn("Reloading impact function registry failed", slog.String("error", err.Error()))
					return
				}
				result.Reloads++
				if a.humanOutput() {
					a.printer.Success(fmt.Sprintf("Reloaded %d impact functions", reg.Len()))
				}
			})
			if err != nil {
				a.report("functions watch", start, nil, false, err, nil)
				return nil
			}
			defer func() { _ = watcher.Stop() }()

			a.log.Info("Watching impact function manifest",
				slog.String("path", path),
				slog.Int("function_count", reg.Len()))
			if a.humanOutput() {
				a.printer.Title(fmt.Sprintf("Watching %s (%d impact functions)", path, reg.Len()))
			}
			watcher.Start(ctx)

			a.report("functions watch", start, result, false, nil, func(p *ux.Printer) {
				p.Subtitle(fmt.Sprintf("Stopped after %d reloads", result.Reloads))
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Manifest to watch (default: configured manifest)")
	return cmd
}
