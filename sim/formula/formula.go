// Package formula parses and evaluates model output formulas.
//
// The grammar is closed: numeric literals, variable references, unary
// minus/plus, the binary operators + - * / and parentheses. Identifiers
// resolve only against the value mapping passed to Eval. There are no
// function calls, no member access and no other names, so a formula can
// never reach host capabilities.
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('-' | '+') unary | primary
//	primary := number | identifier | '(' expr ')'
package formula

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMalformedExpression reports text outside the grammar.
	ErrMalformedExpression = errors.New("malformed expression")
	// ErrUnknownVariable reports an identifier with no value.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrNonNumericResult reports a value that has no float64 representation,
	// such as a literal beyond the float64 range. NaN and ±Inf produced by
	// arithmetic are values, not errors.
	ErrNonNumericResult = errors.New("non-numeric result")
)

// Expression is a parsed formula. It is immutable and safe for concurrent Eval.
type Expression struct {
	source string
	root   node
}

// Parse compiles src into an Expression.
func Parse(src string) (*Expression, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	if tokens[0].kind == tokEOF {
		return nil, fmt.Errorf("%w: empty formula", ErrMalformedExpression)
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.unexpected(t)
	}
	return &Expression{source: src, root: root}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level formulas.
func MustParse(src string) *Expression {
	expr, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return expr
}

// Eval computes the expression against values.
func (e *Expression) Eval(values map[string]float64) (float64, error) {
	return e.root.eval(values)
}

// Variables returns the sorted, de-duplicated identifiers the expression uses.
func (e *Expression) Variables() []string {
	set := make(map[string]struct{})
	e.root.collect(set)
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source returns the text the expression was parsed from.
func (e *Expression) Source() string { return e.source }

// String renders the tree fully parenthesized.
func (e *Expression) String() string { return e.root.String() }
