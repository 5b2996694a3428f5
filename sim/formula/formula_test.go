package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval_Arithmetic(t *testing.T) {
	values := map[string]float64{"x": 3, "y": 4, "rate_2": 0.5}
	tests := []struct {
		name    string
		formula string
		want    float64
	}{
		{"literal", "42", 42},
		{"fraction", ".5", 0.5},
		{"exponent", "1.5e2", 150},
		{"variable", "x", 3},
		{"scale", "x*2", 6},
		{"precedence", "x + y * 2", 11},
		{"parentheses", "(x + y) * 2", 14},
		{"left associative subtraction", "10 - 3 - 2", 5},
		{"left associative division", "64 / 4 / 2", 8},
		{"unary minus", "-x", -3},
		{"double negation", "--x", 3},
		{"unary plus", "+y", 4},
		{"unary binds tighter than multiply", "-x * y", -12},
		{"identifier with digits", "rate_2 * 10", 5},
		{"whitespace", " \tx\n+ y ", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.formula)
			require.NoError(t, err)
			got, err := expr.Eval(values)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEval_DivisionByZeroIsAValue(t *testing.T) {
	// GIVEN formulas whose IEEE-754 result is not finite
	// WHEN evaluated
	// THEN they return NaN or ±Inf without error
	nan, err := MustParse("0/0").Eval(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(nan))

	inf, err := MustParse("1/x").Eval(map[string]float64{"x": 0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(inf, 1))

	negInf, err := MustParse("-1/0").Eval(nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(negInf, -1))
}

func TestEval_UnknownVariable(t *testing.T) {
	expr := MustParse("x + y")
	_, err := expr.Eval(map[string]float64{"x": 1})
	require.ErrorIs(t, err, ErrUnknownVariable)
	assert.Contains(t, err.Error(), `"y"`)
}

func TestParse_RejectsConstructsOutsideGrammar(t *testing.T) {
	tests := []struct {
		name    string
		formula string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"function call", "sqrt(x)"},
		{"builtin call", "__import__(os)"},
		{"attribute access", "x.real"},
		{"power operator", "x ** 2"},
		{"modulo", "x % 2"},
		{"comparison", "x < 2"},
		{"string literal", `"x"`},
		{"indexing", "x[0]"},
		{"comma", "x, y"},
		{"unbalanced open", "(x + 1"},
		{"unbalanced close", "x + 1)"},
		{"dangling operator", "x +"},
		{"adjacent operands", "x y"},
		{"number glued to name", "2x"},
		{"two dots", "1.2.3"},
		{"incomplete exponent", "1e"},
		{"empty parens", "()"},
		{"non-ascii identifier", "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.formula)
			assert.ErrorIs(t, err, ErrMalformedExpression)
		})
	}
}

func TestParse_NestingLimit(t *testing.T) {
	deep := ""
	for i := 0; i < maxDepth+1; i++ {
		deep += "("
	}
	deep += "1"
	for i := 0; i < maxDepth+1; i++ {
		deep += ")"
	}
	_, err := Parse(deep)
	assert.ErrorIs(t, err, ErrMalformedExpression)

	ok := "((((1))))"
	_, err = Parse(ok)
	assert.NoError(t, err)
}

func TestParse_LiteralOverflowIsNonNumeric(t *testing.T) {
	_, err := Parse("x * 1e999")
	assert.ErrorIs(t, err, ErrNonNumericResult)
}

func TestExpression_Variables(t *testing.T) {
	expr := MustParse("z * (x + y) - x / 2")
	assert.Equal(t, []string{"x", "y", "z"}, expr.Variables())
	assert.Empty(t, MustParse("1 + 2").Variables())
}

func TestExpression_String(t *testing.T) {
	expr := MustParse("-x + y * 2")
	assert.Equal(t, "((-x) + (y * 2))", expr.String())
	assert.Equal(t, "-x + y * 2", expr.Source())
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("x +") })
}
