// Package testutil provides shared test infrastructure for the Monte Carlo
// packages. It holds the golden evaluation dataset and assertion helpers used
// across sim/ and sim/worker/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one formula evaluated against fixed variable values.
// Exactly one of Want, Special or Error describes the expected outcome.
type GoldenTestCase struct {
	Name    string             `json:"name"`
	Formula string             `json:"formula"`
	Values  map[string]float64 `json:"values"`
	Want    float64            `json:"want"`
	// Special is "NaN", "+Inf" or "-Inf" for non-finite outcomes.
	Special string `json:"special,omitempty"`
	// Error is "malformed", "unknown_variable" or "non_numeric".
	Error string `json:"error,omitempty"`
}

// Expected returns the outcome value, resolving Special.
func (tc GoldenTestCase) Expected() float64 {
	switch tc.Special {
	case "NaN":
		return math.NaN()
	case "+Inf":
		return math.Inf(1)
	case "-Inf":
		return math.Inf(-1)
	}
	return tc.Want
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("Golden dataset has no tests")
	}
	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
// NaN equals NaN and equal infinities are equal.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	switch {
	case math.IsNaN(want) || math.IsNaN(got):
		if !(math.IsNaN(want) && math.IsNaN(got)) {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
		return
	case math.IsInf(want, 0) || math.IsInf(got, 0):
		if want != got {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
		return
	case want == got:
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
