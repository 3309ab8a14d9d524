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

import (
	"fmt"
)

// maxDepth bounds parenthesis and 'not' nesting.
const maxDepth = 64

// Expr is a compiled predicate.
//
// Thread Safety: Expr values are immutable and safe for concurrent use.
type Expr interface {
	// Eval evaluates the predicate against a parameter set.
	// Names missing from params produce an *UndefinedNameError.
	Eval(params map[string]string) (bool, error)

	// Names returns every attribute name referenced, in source order.
	Names() []string
}

// Parse compiles a predicate string.
//
// Description:
//
//	Accepts comparisons (==, !=), membership (in / not in) against a
//	bracketed list, name.startswith(prefix), parentheses, 'not', and the
//	boolean connectives 'and'/'or'. Nothing else is evaluated.
//
// Inputs:
//
//	predicate - The predicate source, e.g. `category=='hazard' and unit=='m'`.
//
// Outputs:
//
//	Expr - The compiled predicate.
//	error - Wraps ErrSyntax on any lexical or grammatical problem.
func Parse(predicate string) (Expr, error) {
	toks, err := lex(predicate)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("empty predicate: %w", ErrSyntax)
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t, "end of input")
	}
	return e, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.unexpected(t, kind.String())
	}
	return t, nil
}

func (p *parser) unexpected(t token, want string) error {
	got := t.kind.String()
	if t.text != "" {
		got = fmt.Sprintf("%s %q", got, t.text)
	}
	return fmt.Errorf("at offset %d: expected %s, got %s: %w", t.pos, want, got, ErrSyntax)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("nesting deeper than %d: %w", maxDepth, ErrSyntax)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return orExpr(terms), nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return andExpr(terms), nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.peek().kind != tokNot {
		return p.parsePrimary()
	}
	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	inner, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return notExpr{inner: inner}, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().kind == tokLParen {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	t := p.next()
	switch t.kind {
	case tokEq, tokNe:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return compareExpr{left: left, right: right, negate: t.kind == tokNe}, nil

	case tokIn:
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return memberExpr{value: left, items: items}, nil

	case tokNot:
		if _, err := p.expect(tokIn); err != nil {
			return nil, err
		}
		items, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return memberExpr{value: left, items: items, negate: true}, nil

	case tokDot:
		method, err := p.expect(tokName)
		if err != nil {
			return nil, err
		}
		if method.text != "startswith" {
			return nil, fmt.Errorf("at offset %d: unsupported method %q: %w", method.pos, method.text, ErrSyntax)
		}
		if _, err := p.expect(tokLParen); err != nil {
			return nil, err
		}
		prefix, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return prefixExpr{value: left, prefix: prefix}, nil

	default:
		return nil, p.unexpected(t, "comparison, 'in' or '.startswith'")
	}
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return operand{literal: t.text, isLiteral: true}, nil
	case tokName:
		if IsReserved(t.text) {
			return operand{}, fmt.Errorf("at offset %d: reserved word %q used as a name: %w", t.pos, t.text, ErrSyntax)
		}
		return operand{name: t.text}, nil
	default:
		return operand{}, p.unexpected(t, "name or string")
	}
}

func (p *parser) parseList() ([]operand, error) {
	if _, err := p.expect(tokLBrack); err != nil {
		return nil, err
	}
	var items []operand
	for p.peek().kind != tokRBrack {
		item, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRBrack); err != nil {
		return nil, err
	}
	return items, nil
}
