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
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokEq     // ==
	tokNe     // !=
	tokLParen // (
	tokRParen // )
	tokLBrack // [
	tokRBrack // ]
	tokComma  // ,
	tokDot    // .
	tokAnd
	tokOr
	tokNot
	tokIn
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokName:
		return "name"
	case tokString:
		return "string"
	case tokEq:
		return "'=='"
	case tokNe:
		return "'!='"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBrack:
		return "'['"
	case tokRBrack:
		return "']'"
	case tokComma:
		return "','"
	case tokDot:
		return "'.'"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokNot:
		return "'not'"
	case tokIn:
		return "'in'"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// MaxPredicateLength bounds the input accepted by the lexer (8KB).
const MaxPredicateLength = 8 * 1024

// reservedWords cannot be used as dataset attribute names. The grammar
// keywords are listed alongside words that were reserved by the original
// predicate host language, so that metadata written for it keeps failing
// the same way.
var reservedWords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {},
	"class": {}, "def": {}, "if": {}, "elif": {}, "else": {},
	"for": {}, "while": {}, "break": {}, "continue": {}, "return": {},
	"import": {}, "from": {}, "as": {}, "with": {}, "lambda": {},
	"try": {}, "except": {}, "finally": {}, "raise": {}, "assert": {},
	"del": {}, "global": {}, "nonlocal": {}, "pass": {}, "yield": {},
	"async": {}, "await": {}, "exec": {}, "print": {},
	"None": {}, "True": {}, "False": {},
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool {
	_, ok := reservedWords[name]
	return ok
}

// lex splits a predicate into tokens. It rejects a lone '=' so that an
// assignment typed in place of a comparison is never accepted.
func lex(src string) ([]token, error) {
	if len(src) > MaxPredicateLength {
		return nil, fmt.Errorf("predicate too long: %d bytes (max %d): %w", len(src), MaxPredicateLength, ErrSyntax)
	}

	var toks []token
	i := 0
	for i < len(src) {
		r, w := utf8.DecodeRuneInString(src[i:])
		switch {
		case r == '\\' && i+1 < len(src) && (src[i+1] == '\n' || src[i+1] == '\r'):
			// Line continuation inside multi-line declarations.
			i++
		case unicode.IsSpace(r):
			i += w
		case r == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokEq, text: "==", pos: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("at offset %d: single '=' is not a comparison: %w", i, ErrSyntax)
		case r == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				toks = append(toks, token{kind: tokNe, text: "!=", pos: i})
				i += 2
				continue
			}
			return nil, fmt.Errorf("at offset %d: unexpected '!': %w", i, ErrSyntax)
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == '[':
			toks = append(toks, token{kind: tokLBrack, text: "[", pos: i})
			i++
		case r == ']':
			toks = append(toks, token{kind: tokRBrack, text: "]", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '.':
			toks = append(toks, token{kind: tokDot, text: ".", pos: i})
			i++
		case r == '\'' || r == '"':
			s, n, err := lexString(src[i:], byte(r))
			if err != nil {
				return nil, fmt.Errorf("at offset %d: %w", i, err)
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(src) {
				r, w = utf8.DecodeRuneInString(src[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += w
			}
			word := src[start:i]
			toks = append(toks, keywordOrName(word, start))
		default:
			return nil, fmt.Errorf("at offset %d: unexpected character %q: %w", i, r, ErrSyntax)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func keywordOrName(word string, pos int) token {
	switch word {
	case "and":
		return token{kind: tokAnd, text: word, pos: pos}
	case "or":
		return token{kind: tokOr, text: word, pos: pos}
	case "not":
		return token{kind: tokNot, text: word, pos: pos}
	case "in":
		return token{kind: tokIn, text: word, pos: pos}
	}
	return token{kind: tokName, text: word, pos: pos}
}

// lexString reads a quoted literal starting at s[0]. It returns the
// unescaped value and the number of bytes consumed.
func lexString(s string, quote byte) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case quote:
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape: %w", ErrSyntax)
			}
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		case '\n':
			return "", 0, fmt.Errorf("newline in string literal: %w", ErrSyntax)
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal: %w", ErrSyntax)
}
