// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command impact lists and matches impact functions and runs the
// supporting calculations: population rounding, minimum needs and
// keyword conversion.
//
// Usage:
//
//	impact functions list
//	impact functions match --param category=hazard --param subcategory=flood --param unit=m
//	impact functions match --dataset "category=hazard,subcategory=flood,unit=m" \
//	    --dataset "category=exposure,subcategory=population,layertype=raster"
//	impact functions watch --path ./functions.yaml
//	impact round 1234 99999
//	impact needs --population 20
//	impact keywords convert category=hazard subcategory=tsunami unit=metres_depth
//
// Every command accepts --json for a machine-readable envelope. Exit codes
// are 0 for success, 1 when the command completed with findings (for
// example no matching function) and 2 on error.
package main

import (
	"context"
	"io"
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with the given arguments and returns the exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	return executeContext(context.Background(), args, stdout, stderr)
}

func executeContext(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		OutputError(stdout, stderr, a.output.JSON, "Invalid invocation", err)
		a.close()
		return CLIExitError
	}
	return a.exitCode
}
