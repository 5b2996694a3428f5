package worker

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/broker"
	"github.com/inference-sim/montecarlo/sim/internal/testutil"
	"github.com/inference-sim/montecarlo/sim/trace"
)

// TestHandleScenario_GoldenValuesOverTheWire runs every successful golden
// case through a worker and checks the published result, including
// non-finite values.
func TestHandleScenario_GoldenValuesOverTheWire(t *testing.T) {
	dataset := testutil.LoadGoldenDataset(t)

	for _, tc := range dataset.Tests {
		if tc.Error != "" {
			continue
		}
		t.Run(tc.Name, func(t *testing.T) {
			// GIVEN a worker holding a model that declares the case's variables
			ctx := context.Background()
			b := broker.NewMemory(0)
			w, _ := newTestWorker(b)
			require.NoError(t, w.Setup(ctx))

			names := make([]string, 0, len(tc.Values))
			for name := range tc.Values {
				names = append(names, name)
			}
			sort.Strings(names)
			model := &sim.ModelDefinition{Name: "golden", Version: 4, Formula: tc.Formula}
			for _, name := range names {
				model.Variables = append(model.Variables, sim.VariableSpec{Name: name, Distribution: sim.Normal})
			}
			require.NoError(t, w.LoadModel(encodeModel(t, model)))

			// WHEN the scenario is handled
			d, err := w.HandleScenario(ctx, encodeScenario(t, sim.Scenario{ScenarioID: 11, ModelVersion: 4, Values: tc.Values}))
			require.NoError(t, err)
			require.Equal(t, trace.Processed, d)

			// THEN one result with the expected value is published
			body, ok, err := b.Get(ctx, broker.DefaultResultQueue)
			require.NoError(t, err)
			require.True(t, ok)
			r, err := sim.DecodeResult(body)
			require.NoError(t, err)
			require.Equal(t, int64(11), r.ScenarioID)
			testutil.AssertFloat64Equal(t, tc.Formula, tc.Expected(), r.Value, 1e-12)
			require.Equal(t, 0, b.Len(broker.DefaultResultQueue))
		})
	}
}
