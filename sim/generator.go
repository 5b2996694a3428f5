package sim

import (
	"fmt"
	"math/rand"
)

type namedSampler struct {
	name    string
	sampler Sampler
	rng     *rand.Rand
}

// Generator produces scenarios for one model from injected random sources.
// Not safe for concurrent use: the underlying *rand.Rand values are not.
type Generator struct {
	version  int64
	samplers []namedSampler
}

// NewGenerator builds samplers for every declared variable, in order, all
// drawing from rng. Fails if any variable has an unknown distribution or
// invalid parameters.
func NewGenerator(model *ModelDefinition, rng *rand.Rand) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("generator requires a random source")
	}
	return newGenerator(model, func(string) *rand.Rand { return rng })
}

// NewPartitionedGenerator is NewGenerator with one stream per variable, taken
// from p under VariableSubsystem(name).
func NewPartitionedGenerator(model *ModelDefinition, p *PartitionedRNG) (*Generator, error) {
	if p == nil {
		return nil, fmt.Errorf("generator requires a random source")
	}
	return newGenerator(model, func(name string) *rand.Rand {
		return p.ForSubsystem(VariableSubsystem(name))
	})
}

func newGenerator(model *ModelDefinition, streamFor func(variable string) *rand.Rand) (*Generator, error) {
	samplers := make([]namedSampler, 0, len(model.Variables))
	for _, v := range model.Variables {
		s, err := NewSampler(v)
		if err != nil {
			return nil, err
		}
		samplers = append(samplers, namedSampler{name: v.Name, sampler: s, rng: streamFor(v.Name)})
	}
	return &Generator{version: model.Version, samplers: samplers}, nil
}

// Generate samples every variable once, in declared order.
// The returned Values has exactly one entry per variable.
func (g *Generator) Generate(scenarioID int64) Scenario {
	values := make(map[string]float64, len(g.samplers))
	for _, ns := range g.samplers {
		values[ns.name] = ns.sampler.Sample(ns.rng)
	}
	return Scenario{
		ScenarioID:   scenarioID,
		ModelVersion: g.version,
		Values:       values,
	}
}

// Generate is a one-shot form of Generator.Generate for callers holding only
// a model and a random source.
func Generate(model *ModelDefinition, scenarioID int64, rng *rand.Rand) (Scenario, error) {
	g, err := NewGenerator(model, rng)
	if err != nil {
		return Scenario{}, err
	}
	return g.Generate(scenarioID), nil
}
