package sim

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Scenario is one sampled trial for a specific model version.
type Scenario struct {
	ScenarioID   int64              `json:"scenario_id"`
	ModelVersion int64              `json:"model_version"`
	Values       map[string]float64 `json:"values"`
}

// Result is the evaluated outcome of one scenario. It is only built after a
// successful evaluation, never partially.
type Result struct {
	ScenarioID   int64   `json:"scenario_id"`
	ModelVersion int64   `json:"model_version"`
	WorkerID     string  `json:"worker_id"`
	Value        float64 `json:"value"`
	Timestamp    string  `json:"timestamp"`
}

// NewResult stamps an evaluated value with the producing worker and time.
func NewResult(s Scenario, workerID string, value float64, at time.Time) Result {
	return Result{
		ScenarioID:   s.ScenarioID,
		ModelVersion: s.ModelVersion,
		WorkerID:     workerID,
		Value:        value,
		Timestamp:    FormatTimestamp(at),
	}
}

// FormatTimestamp renders t as ISO-8601 (RFC 3339, UTC, nanoseconds).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// === Wire codecs ===

type wireScenario struct {
	ScenarioID   *int64               `json:"scenario_id"`
	ModelVersion *int64               `json:"model_version"`
	Values       map[string]wireFloat `json:"values"`
}

type wireResult struct {
	ScenarioID   *int64     `json:"scenario_id"`
	ModelVersion *int64     `json:"model_version"`
	WorkerID     *string    `json:"worker_id"`
	Value        *wireFloat `json:"value"`
	Timestamp    *string    `json:"timestamp"`
}

// MarshalJSON encodes the scenario, spelling non-finite values as strings.
func (s Scenario) MarshalJSON() ([]byte, error) {
	values := make(map[string]wireFloat, len(s.Values))
	for k, v := range s.Values {
		values[k] = wireFloat(v)
	}
	return json.Marshal(wireScenario{ScenarioID: &s.ScenarioID, ModelVersion: &s.ModelVersion, Values: values})
}

// UnmarshalJSON decodes a scenario payload. Every field must be present;
// values may be empty but not null.
func (s *Scenario) UnmarshalJSON(data []byte) error {
	var w wireScenario
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := requireFields("scenario",
		field{"scenario_id", w.ScenarioID != nil},
		field{"model_version", w.ModelVersion != nil},
		field{"values", w.Values != nil},
	); err != nil {
		return err
	}
	s.ScenarioID = *w.ScenarioID
	s.ModelVersion = *w.ModelVersion
	s.Values = make(map[string]float64, len(w.Values))
	for k, v := range w.Values {
		s.Values[k] = float64(v)
	}
	return nil
}

// MarshalJSON encodes the result; NaN and infinities are legal evaluation
// outcomes and are spelled as strings.
func (r Result) MarshalJSON() ([]byte, error) {
	value := wireFloat(r.Value)
	return json.Marshal(wireResult{
		ScenarioID:   &r.ScenarioID,
		ModelVersion: &r.ModelVersion,
		WorkerID:     &r.WorkerID,
		Value:        &value,
		Timestamp:    &r.Timestamp,
	})
}

// UnmarshalJSON decodes a result payload. Every field must be present and
// worker_id and timestamp must be non-empty.
func (r *Result) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if err := requireFields("result",
		field{"scenario_id", w.ScenarioID != nil},
		field{"model_version", w.ModelVersion != nil},
		field{"worker_id", w.WorkerID != nil && *w.WorkerID != ""},
		field{"value", w.Value != nil},
		field{"timestamp", w.Timestamp != nil && *w.Timestamp != ""},
	); err != nil {
		return err
	}
	*r = Result{
		ScenarioID:   *w.ScenarioID,
		ModelVersion: *w.ModelVersion,
		WorkerID:     *w.WorkerID,
		Value:        float64(*w.Value),
		Timestamp:    *w.Timestamp,
	}
	return nil
}

type field struct {
	name    string
	present bool
}

// requireFields names every absent field of a decoded payload.
func requireFields(kind string, fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is missing %s", kind, strings.Join(missing, ", "))
	}
	return nil
}

// EncodeScenario produces the scenario channel payload.
func EncodeScenario(s Scenario) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeScenario parses a scenario channel payload.
func DecodeScenario(body []byte) (Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(body, &s); err != nil {
		return Scenario{}, fmt.Errorf("%w: scenario: %v", ErrDecode, err)
	}
	return s, nil
}

// EncodeResult produces the result channel payload.
func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses a result channel payload.
func DecodeResult(body []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return Result{}, fmt.Errorf("%w: result: %v", ErrDecode, err)
	}
	return r, nil
}

// wireFloat is a float64 whose JSON form admits "NaN", "+Inf" and "-Inf".
type wireFloat float64

func (f wireFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = wireFloat(math.NaN())
		case "+Inf", "Inf":
			*f = wireFloat(math.Inf(1))
		case "-Inf":
			*f = wireFloat(math.Inf(-1))
		default:
			return fmt.Errorf("invalid number %q", s)
		}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", data)
	}
	*f = wireFloat(v)
	return nil
}
