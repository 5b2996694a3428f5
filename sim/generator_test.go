package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/montecarlo/sim/formula"
)

func twoVarModel() *ModelDefinition {
	return &ModelDefinition{
		Name:          "two",
		Version:       5,
		ScenarioCount: 10,
		Variables: []VariableSpec{
			{Name: "u", Distribution: Uniform, Params: map[string]float64{"a": 2, "b": 4}},
			{Name: "n", Distribution: Normal, Params: map[string]float64{"mu": 10, "sigma": 2}},
		},
		Formula: "u + n",
	}
}

func TestUniformSampler_RangeAndMean(t *testing.T) {
	// GIVEN uniform(2, 4)
	s, err := NewSampler(VariableSpec{Name: "u", Distribution: Uniform, Params: map[string]float64{"a": 2, "b": 4}})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	// WHEN sampled many times
	draws := make([]float64, 20000)
	for i := range draws {
		draws[i] = s.Sample(rng)
		require.GreaterOrEqual(t, draws[i], 2.0)
		require.Less(t, draws[i], 4.0)
	}

	// THEN the sample mean approaches (a+b)/2
	assert.InDelta(t, 3.0, stat.Mean(draws, nil), 0.02)
}

func TestUniformSampler_DegenerateInterval(t *testing.T) {
	s, err := NewSampler(VariableSpec{Name: "c", Distribution: Uniform, Params: map[string]float64{"a": 3, "b": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Sample(rand.New(rand.NewSource(1))))
}

func TestNormalSampler_Moments(t *testing.T) {
	s, err := NewSampler(VariableSpec{Name: "n", Distribution: Normal, Params: map[string]float64{"mu": 10, "sigma": 2}})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))

	draws := make([]float64, 20000)
	for i := range draws {
		draws[i] = s.Sample(rng)
	}
	mean, std := stat.MeanStdDev(draws, nil)
	assert.InDelta(t, 10.0, mean, 0.1)
	assert.InDelta(t, 2.0, std, 0.1)
}

func TestNewSampler_UnknownDistribution(t *testing.T) {
	_, err := NewSampler(VariableSpec{Name: "x", Distribution: Distribution(42)})
	assert.Error(t, err)
}

func TestGenerate_OneEntryPerVariable(t *testing.T) {
	s, err := Generate(twoVarModel(), 3, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	assert.Equal(t, int64(3), s.ScenarioID)
	assert.Equal(t, int64(5), s.ModelVersion)
	require.Len(t, s.Values, 2)
	assert.Contains(t, s.Values, "u")
	assert.Contains(t, s.Values, "n")
}

func TestGenerator_SameSeedSameScenarios(t *testing.T) {
	draw := func() []Scenario {
		g, err := NewPartitionedGenerator(twoVarModel(), NewPartitionedRNG(NewSimulationKey(77)))
		require.NoError(t, err)
		out := make([]Scenario, 5)
		for i := range out {
			out[i] = g.Generate(int64(i))
		}
		return out
	}
	assert.Equal(t, draw(), draw())
}

func TestPartitionedGenerator_AddingAVariableKeepsExistingDraws(t *testing.T) {
	// GIVEN the same seed for a model and for that model plus one variable
	base := twoVarModel()
	grown := twoVarModel()
	grown.Variables = append([]VariableSpec{{Name: "extra", Distribution: Normal}}, grown.Variables...)

	g1, err := NewPartitionedGenerator(base, NewPartitionedRNG(NewSimulationKey(5)))
	require.NoError(t, err)
	g2, err := NewPartitionedGenerator(grown, NewPartitionedRNG(NewSimulationKey(5)))
	require.NoError(t, err)

	// WHEN both generate a batch
	for i := int64(0); i < 5; i++ {
		a, b := g1.Generate(i), g2.Generate(i)

		// THEN the shared variables draw identical values
		assert.Equal(t, a.Values["u"], b.Values["u"], "scenario %d", i)
		assert.Equal(t, a.Values["n"], b.Values["n"], "scenario %d", i)
		assert.Len(t, b.Values, 3)
	}
}

func TestNewGenerator_Rejections(t *testing.T) {
	_, err := NewGenerator(twoVarModel(), nil)
	assert.Error(t, err)

	_, err = NewPartitionedGenerator(twoVarModel(), nil)
	assert.Error(t, err)

	bad := twoVarModel()
	bad.Variables[0].Params["b"] = math.NaN()
	_, err = NewGenerator(bad, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestEvaluate_ModelFormula(t *testing.T) {
	got, err := Evaluate(twoVarModel(), Scenario{Values: map[string]float64{"u": 1.5, "n": 2}})
	require.NoError(t, err)
	assert.Equal(t, 3.5, got)

	_, err = Evaluate(twoVarModel(), Scenario{Values: map[string]float64{"u": 1.5}})
	assert.ErrorIs(t, err, formula.ErrUnknownVariable)
}

func TestEvaluate_GeneratedScenario(t *testing.T) {
	// GIVEN a model with a single uniform(0,1) variable and formula x*2
	m := &ModelDefinition{
		Name:      "double",
		Version:   1,
		Variables: []VariableSpec{{Name: "x", Distribution: Uniform}},
		Formula:   "x*2",
	}
	g, err := NewGenerator(m, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	// WHEN a generated scenario is evaluated
	s := g.Generate(0)
	got, err := Evaluate(m, s)

	// THEN the value is twice the sample
	require.NoError(t, err)
	assert.Equal(t, s.Values["x"]*2, got)
}
