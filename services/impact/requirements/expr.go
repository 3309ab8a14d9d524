// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package requirements

import "strings"

// operand is either a string literal or a reference to a parameter.
type operand struct {
	name      string
	literal   string
	isLiteral bool
}

func (o operand) resolve(params map[string]string) (string, error) {
	if o.isLiteral {
		return o.literal, nil
	}
	v, ok := params[o.name]
	if !ok {
		return "", &UndefinedNameError{Name: o.name}
	}
	return v, nil
}

func (o operand) names() []string {
	if o.isLiteral {
		return nil
	}
	return []string{o.name}
}

type compareExpr struct {
	left, right operand
	negate      bool
}

func (e compareExpr) Eval(params map[string]string) (bool, error) {
	l, err := e.left.resolve(params)
	if err != nil {
		return false, err
	}
	r, err := e.right.resolve(params)
	if err != nil {
		return false, err
	}
	return (l == r) != e.negate, nil
}

func (e compareExpr) Names() []string {
	return append(e.left.names(), e.right.names()...)
}

type memberExpr struct {
	value  operand
	items  []operand
	negate bool
}

func (e memberExpr) Eval(params map[string]string) (bool, error) {
	v, err := e.value.resolve(params)
	if err != nil {
		return false, err
	}
	found := false
	// Every item is resolved so an undefined name inside the list is
	// reported even when an earlier item already matched.
	for _, item := range e.items {
		s, err := item.resolve(params)
		if err != nil {
			return false, err
		}
		if s == v {
			found = true
		}
	}
	return found != e.negate, nil
}

func (e memberExpr) Names() []string {
	out := e.value.names()
	for _, item := range e.items {
		out = append(out, item.names()...)
	}
	return out
}

type prefixExpr struct {
	value, prefix operand
}

func (e prefixExpr) Eval(params map[string]string) (bool, error) {
	v, err := e.value.resolve(params)
	if err != nil {
		return false, err
	}
	p, err := e.prefix.resolve(params)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(v, p), nil
}

func (e prefixExpr) Names() []string {
	return append(e.value.names(), e.prefix.names()...)
}

type notExpr struct {
	inner Expr
}

func (e notExpr) Eval(params map[string]string) (bool, error) {
	v, err := e.inner.Eval(params)
	if err != nil {
		return false, err
	}
	return !v, nil
}

func (e notExpr) Names() []string { return e.inner.Names() }

// andExpr and orExpr evaluate every term rather than short-circuiting, so
// that a reference to an absent attribute always fails the predicate no
// matter where it sits.
type andExpr []Expr

func (e andExpr) Eval(params map[string]string) (bool, error) {
	result := true
	for _, term := range e {
		v, err := term.Eval(params)
		if err != nil {
			return false, err
		}
		result = result && v
	}
	return result, nil
}

func (e andExpr) Names() []string { return collectNames(e) }

type orExpr []Expr

func (e orExpr) Eval(params map[string]string) (bool, error) {
	result := false
	for _, term := range e {
		v, err := term.Eval(params)
		if err != nil {
			return false, err
		}
		result = result || v
	}
	return result, nil
}

func (e orExpr) Names() []string { return collectNames(e) }

func collectNames(terms []Expr) []string {
	var out []string
	for _, t := range terms {
		out = append(out, t.Names()...)
	}
	return out
}
