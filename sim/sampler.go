package sim

import (
	"fmt"
	"math/rand"
)

// Sampler draws one value of a model variable.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// UniformSampler draws from the half-open interval [a, b).
// When a == b every draw is a.
type UniformSampler struct {
	a, b float64
}

func (s *UniformSampler) Sample(rng *rand.Rand) float64 {
	v := s.a + (s.b-s.a)*rng.Float64()
	// Rounding in a + (b-a)*u can land exactly on b for u close to 1.
	if v >= s.b && s.b > s.a {
		return s.a
	}
	return v
}

// NormalSampler draws from a Gaussian with mean mu and standard deviation sigma.
type NormalSampler struct {
	mu, sigma float64
}

func (s *NormalSampler) Sample(rng *rand.Rand) float64 {
	return s.mu + s.sigma*rng.NormFloat64()
}

// NewSampler creates a Sampler from a VariableSpec, applying parameter
// defaults (uniform a=0 b=1, normal mu=0 sigma=1).
func NewSampler(spec VariableSpec) (Sampler, error) {
	if err := validateVariable(fmt.Sprintf("variable %q", spec.Name), &spec); err != nil {
		return nil, err
	}
	switch spec.Distribution {
	case Uniform:
		return &UniformSampler{a: spec.Param("a"), b: spec.Param("b")}, nil
	case Normal:
		return &NormalSampler{mu: spec.Param("mu"), sigma: spec.Param("sigma")}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %q", spec.Distribution)
	}
}
