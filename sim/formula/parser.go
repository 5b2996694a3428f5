package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// maxDepth bounds nesting of parentheses and unary operators.
const maxDepth = 256

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) unexpected(t token) error {
	return fmt.Errorf("%w: unexpected %s at offset %d", ErrMalformedExpression, t.describe(), t.pos)
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], left: left, right: right}
	}
}

// term := unary (('*' | '/') unary)*
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.text[0], left: left, right: right}
	}
}

// unary := ('-' | '+') unary | primary
func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if t.kind != tokMinus && t.kind != tokPlus {
		return p.parsePrimary()
	}
	if err := p.enter(t); err != nil {
		return nil, err
	}
	defer p.leave()
	p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return unaryNode{op: t.text[0], operand: operand}, nil
}

// primary := number | identifier | '(' expr ')'
func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return parseNumber(t)
	case tokIdent:
		if p.peek().kind == tokLParen {
			return nil, fmt.Errorf("%w: function call %q at offset %d is not allowed", ErrMalformedExpression, t.text, t.pos)
		}
		return variableNode{name: t.text}, nil
	case tokLParen:
		if err := p.enter(t); err != nil {
			return nil, err
		}
		defer p.leave()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' but found %s at offset %d", ErrMalformedExpression, closing.describe(), closing.pos)
		}
		return inner, nil
	default:
		return nil, p.unexpected(t)
	}
}

func (p *parser) enter(t token) error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d at offset %d", ErrMalformedExpression, maxDepth, t.pos)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func parseNumber(t token) (node, error) {
	v, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: literal %q at offset %d overflows float64", ErrNonNumericResult, t.text, t.pos)
		}
		if !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: invalid number %q at offset %d", ErrMalformedExpression, t.text, t.pos)
		}
	}
	return numberNode{value: v}, nil
}
