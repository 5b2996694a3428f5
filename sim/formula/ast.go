package formula

import (
	"fmt"
	"strconv"
)

// node is one of the four expression tree kinds: number, variable,
// unary and binary. There is no node for calls or member access.
type node interface {
	eval(values map[string]float64) (float64, error)
	collect(names map[string]struct{})
	String() string
}

type numberNode struct {
	value float64
}

func (n numberNode) eval(map[string]float64) (float64, error) { return n.value, nil }
func (n numberNode) collect(map[string]struct{})              {}
func (n numberNode) String() string                           { return strconv.FormatFloat(n.value, 'g', -1, 64) }

type variableNode struct {
	name string
}

func (n variableNode) eval(values map[string]float64) (float64, error) {
	v, ok := values[n.name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariable, n.name)
	}
	return v, nil
}

func (n variableNode) collect(names map[string]struct{}) { names[n.name] = struct{}{} }
func (n variableNode) String() string                    { return n.name }

type unaryNode struct {
	op      byte // '-' or '+'
	operand node
}

func (n unaryNode) eval(values map[string]float64) (float64, error) {
	v, err := n.operand.eval(values)
	if err != nil {
		return 0, err
	}
	if n.op == '-' {
		return -v, nil
	}
	return v, nil
}

func (n unaryNode) collect(names map[string]struct{}) { n.operand.collect(names) }
func (n unaryNode) String() string                    { return fmt.Sprintf("(%c%s)", n.op, n.operand) }

type binaryNode struct {
	op          byte // one of + - * /
	left, right node
}

// eval follows IEEE-754: division by zero yields ±Inf or NaN, not an error.
func (n binaryNode) eval(values map[string]float64) (float64, error) {
	l, err := n.left.eval(values)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(values)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		return l / r, nil
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrMalformedExpression, n.op)
}

func (n binaryNode) collect(names map[string]struct{}) {
	n.left.collect(names)
	n.right.collect(names)
}

func (n binaryNode) String() string { return fmt.Sprintf("(%s %c %s)", n.left, n.op, n.right) }
