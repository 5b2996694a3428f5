package sim

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/montecarlo/sim/formula"
)

const revenueModel = `{
  "name": "revenue",
  "version": 3,
  "scenario_count": 1000,
  "variables": [
    {"name": "price", "distribution": "uniform", "params": {"a": 10, "b": 20}},
    {"name": "units", "distribution": "Normal", "params": {"mu": 100, "sigma": 15}}
  ],
  "formula": "price * units"
}`

func TestParseModel_ValidDocument(t *testing.T) {
	m, err := ParseModel([]byte(revenueModel))
	require.NoError(t, err)

	assert.Equal(t, "revenue", m.Name)
	assert.Equal(t, int64(3), m.Version)
	assert.Equal(t, int64(1000), m.ScenarioCount)
	require.Len(t, m.Variables, 2)
	assert.Equal(t, Uniform, m.Variables[0].Distribution)
	assert.Equal(t, Normal, m.Variables[1].Distribution, "tags are case-insensitive")
	assert.Equal(t, 15.0, m.Variables[1].Param("sigma"))
}

func TestParseModel_ParamDefaults(t *testing.T) {
	m, err := ParseModel([]byte(`{"name":"d","version":1,"scenario_count":1,
		"variables":[{"name":"u","distribution":"uniform"},{"name":"n","distribution":"normal","params":{}}],
		"formula":"u+n"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Variables[0].Param("a"))
	assert.Equal(t, 1.0, m.Variables[0].Param("b"))
	assert.Equal(t, 0.0, m.Variables[1].Param("mu"))
	assert.Equal(t, 1.0, m.Variables[1].Param("sigma"))
}

func TestParseModel_Rejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"unknown field", `{"name":"m","version":1,"scenario_count":1,"variables":[],"formula":"1","extra":true}`},
		{"unknown distribution", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"triangular"}],"formula":"x"}`},
		{"missing distribution", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x"}],"formula":"x"}`},
		{"unknown param", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"uniform","params":{"mu":1}}],"formula":"x"}`},
		{"inverted uniform", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"uniform","params":{"a":2,"b":1}}],"formula":"x"}`},
		{"negative sigma", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"normal","params":{"sigma":-1}}],"formula":"x"}`},
		{"duplicate variable", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"normal"},{"name":"x","distribution":"uniform"}],"formula":"x"}`},
		{"empty variable name", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"","distribution":"normal"}],"formula":"1"}`},
		{"missing name", `{"version":1,"scenario_count":1,"variables":[],"formula":"1"}`},
		{"negative count", `{"name":"m","version":1,"scenario_count":-1,"variables":[],"formula":"1"}`},
		{"malformed formula", `{"name":"m","version":1,"scenario_count":1,"variables":[],"formula":"1 +"}`},
		{"function call", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"normal"}],"formula":"exp(x)"}`},
		{"undeclared variable", `{"name":"m","version":1,"scenario_count":1,"variables":[{"name":"x","distribution":"normal"}],"formula":"x*y"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModel([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestValidate_UndeclaredVariableKeepsKind(t *testing.T) {
	m := &ModelDefinition{
		Name:      "m",
		Variables: []VariableSpec{{Name: "x", Distribution: Normal}},
		Formula:   "x + y",
	}
	assert.ErrorIs(t, m.Validate(), formula.ErrUnknownVariable)
}

func TestValidate_ConstantUniformAllowed(t *testing.T) {
	m := &ModelDefinition{
		Name:      "m",
		Variables: []VariableSpec{{Name: "x", Distribution: Uniform, Params: map[string]float64{"a": 5, "b": 5}}},
		Formula:   "x",
	}
	assert.NoError(t, m.Validate())
}

func TestDistribution_TextRoundTrip(t *testing.T) {
	for _, d := range []Distribution{Uniform, Normal} {
		text, err := d.MarshalText()
		require.NoError(t, err)

		var back Distribution
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, d, back)
	}
	_, err := Distribution(99).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Distribution(99)", Distribution(99).String())
}

func TestEncodeModel_DecodesToSameDefinition(t *testing.T) {
	m, err := ParseModel([]byte(revenueModel))
	require.NoError(t, err)

	body, err := EncodeModel(m)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"distribution":"normal"`)

	back, err := DecodeModel(body)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(revenueModel), 0o644))

	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, "revenue", m.Name)

	_, err = LoadModel(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestVariableSpec_JSONShape(t *testing.T) {
	body, err := json.Marshal(VariableSpec{Name: "x", Distribution: Uniform, Params: map[string]float64{"a": 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","distribution":"uniform","params":{"a":1}}`, string(body))
}
