package sim

import (
	"github.com/inference-sim/montecarlo/sim/formula"
)

// Evaluate computes the model formula against the scenario's sampled values.
// Identifiers resolve only against s.Values; see package formula for the
// accepted grammar and error kinds.
func Evaluate(model *ModelDefinition, s Scenario) (float64, error) {
	expr, err := formula.Parse(model.Formula)
	if err != nil {
		return 0, err
	}
	return expr.Eval(s.Values)
}
