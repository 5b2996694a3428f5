package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/inference-sim/montecarlo/sim/formula"
)

// ErrDecode marks a payload or document that could not be decoded into one of
// the wire types. Consumers log it and treat the message as consumed.
var ErrDecode = errors.New("decode failure")

// === Distribution ===

// Distribution tags the sampling law of a model variable.
// Only Uniform and Normal exist; any other tag is rejected at decode time.
type Distribution int

const (
	// Uniform samples from [a, b). Params: a (default 0), b (default 1).
	Uniform Distribution = iota + 1
	// Normal samples from a Gaussian. Params: mu (default 0), sigma (default 1).
	Normal
)

var distributionNames = map[Distribution]string{
	Uniform: "uniform",
	Normal:  "normal",
}

// distributionParams lists the parameter keys each distribution accepts,
// with their defaults.
var distributionParams = map[Distribution]map[string]float64{
	Uniform: {"a": 0.0, "b": 1.0},
	Normal:  {"mu": 0.0, "sigma": 1.0},
}

// ParseDistribution maps a wire tag to a Distribution, case-insensitively.
func ParseDistribution(tag string) (Distribution, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "uniform":
		return Uniform, nil
	case "normal":
		return Normal, nil
	default:
		return 0, fmt.Errorf("unknown distribution %q; valid: uniform, normal", tag)
	}
}

func (d Distribution) String() string {
	if name, ok := distributionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Distribution(%d)", int(d))
}

// MarshalText encodes the distribution as its lowercase tag.
func (d Distribution) MarshalText() ([]byte, error) {
	name, ok := distributionNames[d]
	if !ok {
		return nil, fmt.Errorf("unknown distribution %d", int(d))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a distribution tag.
func (d *Distribution) UnmarshalText(text []byte) error {
	parsed, err := ParseDistribution(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// === ModelDefinition ===

// VariableSpec declares one random variable of a model.
type VariableSpec struct {
	Name         string             `json:"name"`
	Distribution Distribution       `json:"distribution"`
	Params       map[string]float64 `json:"params"`
}

// Param returns the named parameter, falling back to the distribution default.
func (v VariableSpec) Param(key string) float64 {
	if val, ok := v.Params[key]; ok {
		return val
	}
	return distributionParams[v.Distribution][key]
}

// ModelDefinition describes a simulation: its variables and output formula.
// Version is the only compatibility key between a worker's model and the
// scenarios it receives; it is opaque and need not increase.
type ModelDefinition struct {
	Name          string         `json:"name"`
	Version       int64          `json:"version"`
	ScenarioCount int64          `json:"scenario_count"`
	Variables     []VariableSpec `json:"variables"`
	Formula       string         `json:"formula"`
}

// ParseModel decodes and validates a model document.
// Unknown fields are rejected so typos in configuration surface immediately.
func ParseModel(data []byte) (*ModelDefinition, error) {
	var model ModelDefinition
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&model); err != nil {
		return nil, fmt.Errorf("%w: parsing model definition: %v", ErrDecode, err)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid model definition: %v", ErrDecode, err)
	}
	return &model, nil
}

// LoadModel reads a model definition from a JSON file.
func LoadModel(path string) (*ModelDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model definition: %w", err)
	}
	return ParseModel(data)
}

// Validate checks the model eagerly so that workers and the generator never
// see an unknown distribution or a formula they cannot evaluate.
func (m *ModelDefinition) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.ScenarioCount < 0 {
		return fmt.Errorf("scenario_count must be non-negative, got %d", m.ScenarioCount)
	}
	declared := make(map[string]bool, len(m.Variables))
	for i := range m.Variables {
		v := &m.Variables[i]
		if err := validateVariable(fmt.Sprintf("variables[%d]", i), v); err != nil {
			return err
		}
		if declared[v.Name] {
			return fmt.Errorf("variables[%d]: duplicate variable name %q", i, v.Name)
		}
		declared[v.Name] = true
	}

	expr, err := formula.Parse(m.Formula)
	if err != nil {
		return fmt.Errorf("formula: %w", err)
	}
	for _, name := range expr.Variables() {
		if !declared[name] {
			return fmt.Errorf("formula: %w: %q is not a declared variable", formula.ErrUnknownVariable, name)
		}
	}
	return nil
}

func validateVariable(prefix string, v *VariableSpec) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%s: name is required", prefix)
	}
	allowed, ok := distributionParams[v.Distribution]
	if !ok {
		return fmt.Errorf("%s: unknown distribution %q; valid: uniform, normal", prefix, v.Distribution)
	}
	for key, val := range v.Params {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("%s: unknown parameter %q for %s distribution", prefix, key, v.Distribution)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%s.params.%s must be a finite number, got %f", prefix, key, val)
		}
	}
	switch v.Distribution {
	case Uniform:
		if a, b := v.Param("a"), v.Param("b"); b < a {
			return fmt.Errorf("%s: uniform requires a <= b, got a=%g b=%g", prefix, a, b)
		}
	case Normal:
		if sigma := v.Param("sigma"); sigma < 0 {
			return fmt.Errorf("%s: normal requires sigma >= 0, got %g", prefix, sigma)
		}
	}
	return nil
}

// EncodeModel produces the model channel payload.
func EncodeModel(m *ModelDefinition) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeModel parses a model channel payload. It applies the same validation
// as ParseModel.
func DecodeModel(body []byte) (*ModelDefinition, error) {
	return ParseModel(body)
}
