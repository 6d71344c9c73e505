// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package exchange

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// literalLexer tokenizes the compact map syntax. Float must come before Int
// so that "1.5" is not split into "1" and ".5".
var literalLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Float", Pattern: `[-+]?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?|[-+]?\d+[eE][-+]?\d+`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Bool", Pattern: `\b(true|false)\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[{}:=,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type literal struct {
	Braced []*literalEntry `parser:"  '{' ( @@ ( ',' @@ )* ','? )? '}'"`
	Bare   []*literalEntry `parser:"| @@ ( ',' @@ )* ','?"`
}

type literalEntry struct {
	Pos   lexer.Position
	Key   string        `parser:"@( Ident | Bool ) ( ':' | '=' )"`
	Value *literalValue `parser:"@@"`
}

type literalValue struct {
	Float *string `parser:"  @Float"`
	Int   *string `parser:"| @Int"`
	Bool  *string `parser:"| @Bool"`
}

var literalParser *participle.Parser[literal]

func init() {
	var err error
	literalParser, err = participle.Build[literal](
		participle.Lexer(literalLexer),
		participle.Elide("Whitespace"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to build exchange literal parser: %v", err))
	}
}

// ParseLiteral parses the compact text form of a map, either braced
// ({a: 1, b: 2.5, c: true}) or bare (a=1,b=2.5,c=true). The empty string
// and "{}" both yield an empty map. Integers are decimal; a number with a
// fraction or exponent is a float.
func ParseLiteral(text string) (Map, error) {
	if strings.TrimSpace(text) == "" {
		return New(), nil
	}
	lit, err := parseLiteral(text)
	if err != nil {
		return nil, oops.In("exchange").
			Code(CodeInvalidValue).
			With("literal", text).
			Hint("expected {key: value, ...} or key=value,...").
			Wrap(err)
	}

	entries := lit.Braced
	if entries == nil {
		entries = lit.Bare
	}

	out := make(Map, len(entries))
	for _, e := range entries {
		if _, dup := out[e.Key]; dup {
			return nil, oops.In("exchange").
				Code(CodeInvalidValue).
				With("key", e.Key).
				With("column", e.Pos.Column).
				Errorf("duplicate key %q", e.Key)
		}
		v, err := e.Value.value()
		if err != nil {
			return nil, oops.In("exchange").With("key", e.Key).With("column", e.Pos.Column).Wrap(err)
		}
		out[e.Key] = v
	}
	return out, nil
}

// parseLiteral runs the parser and reports a parser panic as an error.
func parseLiteral(text string) (lit *literal, err error) {
	defer func() {
		if r := recover(); r != nil {
			lit, err = nil, fmt.Errorf("malformed literal: %v", r)
		}
	}()
	return literalParser.ParseString("", text)
}

// MustParseLiteral is ParseLiteral for fixed test inputs. It panics on error.
func MustParseLiteral(text string) Map {
	m, err := ParseLiteral(text)
	if err != nil {
		panic(err)
	}
	return m
}

func (lv *literalValue) value() (Value, error) {
	switch {
	case lv.Float != nil:
		f, err := strconv.ParseFloat(*lv.Float, 64)
		if err != nil {
			return Value{}, oops.Code(CodeInvalidValue).Wrap(err)
		}
		return Float(f), nil
	case lv.Int != nil:
		i, err := strconv.ParseInt(*lv.Int, 10, 64)
		if err != nil {
			return Value{}, oops.Code(CodeInvalidValue).Hint("integers must fit in 64 bits").Wrap(err)
		}
		return Int(i), nil
	case lv.Bool != nil:
		return Bool(*lv.Bool == "true"), nil
	default:
		return Value{}, oops.Code(CodeInvalidValue).Errorf("missing value")
	}
}
