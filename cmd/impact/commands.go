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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianImpact/pkg/logging"
	"github.com/AleutianAI/AleutianImpact/pkg/ux"
	"github.com/AleutianAI/AleutianImpact/services/impact/config"
	"github.com/AleutianAI/AleutianImpact/services/impact/layer"
	"github.com/AleutianAI/AleutianImpact/services/impact/registry"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	output     OutputConfig
	configPath string
	verbose    bool

	cfg         config.Config
	logger      *logging.Logger
	log         *logging.Logger
	prevDefault *slog.Logger
	printer     *ux.Printer
	exitCode    int
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, cfg: config.Default()}
}

// =============================================================================
// Root Command
// =============================================================================

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "impact",
		Short: "Match impact functions to hazard and exposure data",
		Long: `impact selects the impact functions whose requirements are satisfied
by the keywords of a hazard and an exposure dataset, and provides the
supporting calculations used when reporting results.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default $IMPACT_CONFIG or ./impact.yaml)")
	flags.BoolVar(&a.output.JSON, "json", false, "Output results as JSON")
	flags.BoolVar(&a.output.Compact, "compact", false, "Compact JSON without indentation")
	flags.BoolVarP(&a.output.Quiet, "quiet", "q", false, "No output, exit code only")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newFunctionsCmd(a),
		newRoundCmd(a),
		newNeedsCmd(a),
		newKeywordsCmd(a),
	)
	return root
}

// setup loads configuration and installs the process logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if a.verbose {
		level = logging.LevelDebug
	}
	if a.output.Quiet {
		level = logging.LevelError
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "impact",
		JSON:    cfg.Log.Format == "json",
		Output:  a.stderr,
	})
	a.prevDefault = slog.Default()
	slog.SetDefault(a.logger.Slog())
	a.log = a.logger.With(slog.String("command", cmd.CommandPath()))
	if path := a.logger.FilePath(); path != "" {
		a.log.Debug("Writing log file", slog.String("path", path))
	}

	registry.SetManifestPath(cfg.Functions.ManifestPath)
	registry.ResetDefault()

	a.printer = ux.NewPrinter(a.stdout, !isTerminal(a.stdout))
	a.log.Debug("Configuration loaded",
		slog.String("manifest_path", cfg.Functions.ManifestPath),
		slog.String("needs_profile", cfg.Needs.ProfilePath))
	return nil
}

// close restores the previous default logger and closes the log file.
// A close failure is reported through a fresh stderr logger since the
// file logger is gone by then.
func (a *app) close() {
	if a.logger == nil {
		return
	}
	if a.prevDefault != nil {
		slog.SetDefault(a.prevDefault)
	}
	if err := a.logger.Close(); err != nil {
		logging.Default().Error("Closing log file failed", slog.String("error", err.Error()))
	}
	a.logger = nil
}

// report writes the command result and records the exit code. human
// renders the text form and is skipped for JSON, quiet and failed runs.
func (a *app) report(command string, start time.Time, data any, hasFindings bool, err error, human func(*ux.Printer)) {
	a.exitCode = OutputResult(a.stdout, a.stderr, a.output, command, start, data, hasFindings, err)
	if err != nil || a.output.JSON || a.output.Quiet || human == nil {
		return
	}
	human(a.printer)
}

// humanOutput reports whether text output is wanted.
func (a *app) humanOutput() bool {
	return !a.output.JSON && !a.output.Quiet
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// =============================================================================
// Argument Parsing
// =============================================================================

// parseKeyValues builds keywords from "key=value" pairs. The value may be
// empty and may itself contain '='.
func parseKeyValues(pairs []string) (layer.Keywords, error) {
	kw := make(layer.Keywords, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid keyword %q: want key=value", pair)
		}
		kw[key] = strings.TrimSpace(value)
	}
	return kw, nil
}

// parseDataset parses a comma separated "k=v,k=v" keyword set.
func parseDataset(raw string) (layer.Keywords, error) {
	var pairs []string
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) != "" {
			pairs = append(pairs, part)
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("empty dataset %q", raw)
	}
	return parseKeyValues(pairs)
}

// commandContext returns ctx, or Background when cobra has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
