// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package requirements evaluates the textual requirement predicates that
// impact functions declare against dataset keywords.
//
// A predicate is a small boolean expression over keyword names, e.g.
//
//	category=='hazard' and subcategory in ['flood', 'tsunami']
//	category=='exposure' and subcategory.startswith('population')
//
// The grammar is parsed by a dedicated recursive-descent parser. No host
// language evaluator is involved, so a predicate can only compare strings.
//
// Thread Safety:
//
//	All exported functions are safe for concurrent use.
package requirements

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrSyntax indicates a malformed predicate.
var ErrSyntax = errors.New("malformed requirement predicate")

// ErrReservedKeyword indicates a parameter set that uses a reserved word as a key.
var ErrReservedKeyword = errors.New("reserved word used as parameter name")

// UndefinedNameError reports a predicate reference to a name that the
// parameter set does not define.
type UndefinedNameError struct {
	Name string
}

func (e *UndefinedNameError) Error() string {
	return fmt.Sprintf("name %q is not defined in dataset parameters", e.Name)
}

// Failure reasons used as metric labels.
const (
	ReasonSyntax          = "syntax"
	ReasonUndefinedName   = "undefined_name"
	ReasonReservedKeyword = "reserved_keyword"
)

var checkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "impact_requirement_check_failures_total",
	Help: "Requirement predicates that could not be evaluated, by reason",
}, []string{"reason"})

// Evaluate compiles and evaluates a predicate, returning the first error.
//
// Unlike Check, Evaluate surfaces the failure. Use it where the caller wants
// to report why a predicate could not be evaluated.
func Evaluate(params map[string]string, predicate string) (bool, error) {
	for key := range params {
		if IsReserved(key) {
			return false, fmt.Errorf("parameter %q: %w", key, ErrReservedKeyword)
		}
	}
	expr, err := Parse(predicate)
	if err != nil {
		return false, err
	}
	return expr.Eval(params)
}

// Check evaluates a requirement predicate against dataset parameters.
//
// Description:
//
//	Check is total: it returns exactly true or false for any input string.
//	Malformed predicates, names absent from params and reserved words used
//	as parameter names all yield false. Each such failure is logged once
//	at warn level with the predicate and the parameters.
//
// Inputs:
//
//	params - Dataset keywords (category, subcategory, layertype, ...).
//	predicate - The requirement predicate source.
//
// Outputs:
//
//	bool - True only if the predicate parsed and evaluated to true.
//
// Example:
//
//	ok := requirements.Check(map[string]string{"category": "hazard"}, "category=='hazard'")
func Check(params map[string]string, predicate string) bool {
	ok, err := Evaluate(params, predicate)
	if err == nil {
		return ok
	}

	reason := failureReason(err)
	checkFailures.WithLabelValues(reason).Inc()
	slog.Warn("Requirement predicate could not be evaluated",
		slog.String("predicate", predicate),
		slog.String("reason", reason),
		slog.String("params", formatParams(params)),
		slog.String("error", err.Error()))
	return false
}

func failureReason(err error) string {
	var undefined *UndefinedNameError
	switch {
	case errors.As(err, &undefined):
		return ReasonUndefinedName
	case errors.Is(err, ErrReservedKeyword):
		return ReasonReservedKeyword
	default:
		return ReasonSyntax
	}
}

// formatParams renders params deterministically for logs.
func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
