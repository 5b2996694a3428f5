package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/coordinator"
)

var (
	modelPath   string  // Model definition JSON
	copies      int     // Model messages to publish
	seed        int64   // Scenario sampling seed (0 = time-seeded)
	publishRate float64 // Scenario publish cap per second (0 = unlimited)
)

// coordinatorCmd publishes a model and its scenario batch to the queue service
var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Publish a model definition and its scenarios",
	Run: func(cmd *cobra.Command, args []string) {
		if modelPath == "" {
			logrus.Fatalf("Model definition not provided. Use --model.")
		}
		model, err := sim.LoadModel(modelPath)
		if err != nil {
			logrus.Fatalf("Failed to load model: %v", err)
		}
		cfg := mustLoadConfig()

		ctx, stop := signalContext()
		defer stop()

		b, err := openBroker(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Failed to connect to queue service: %v", err)
		}
		defer func() { _ = b.Close() }()

		key := sim.NewSimulationKey(resolveSeed(seed))
		gen, err := sim.NewPartitionedGenerator(model, sim.NewPartitionedRNG(key))
		if err != nil {
			logrus.Fatalf("Failed to build generator: %v", err)
		}
		c, err := coordinator.New(coordinator.Config{
			Copies:      copies,
			Queues:      cfg.Queues,
			Poll:        cfg.Poll,
			PublishRate: publishRate,
		}, b, model, gen)
		if err != nil {
			logrus.Fatalf("Invalid coordinator configuration: %v", err)
		}

		logrus.Infof("Starting coordinator for %s v%d with seed %d: %d scenarios, %d model copies",
			model.Name, model.Version, int64(key), model.ScenarioCount, copies)
		startTime := time.Now()
		report, err := c.Run(ctx)
		if err != nil {
			logrus.Fatalf("Coordinator failed after %d scenarios: %v", report.Scenarios, err)
		}
		logrus.Infof("Coordinator finished in %v: %d model copies, %d scenarios",
			time.Since(startTime).Round(time.Millisecond), report.ModelCopies, report.Scenarios)
	},
}

// resolveSeed maps seed 0 to a time-derived seed.
func resolveSeed(s int64) int64 {
	if s == 0 {
		return time.Now().UnixNano()
	}
	return s
}

func init() {
	coordinatorCmd.Flags().StringVar(&modelPath, "model", "", "Path to the model definition JSON")
	coordinatorCmd.Flags().IntVar(&copies, "copies", coordinator.DefaultCopies, "Number of model messages to publish; caps how many workers become ready")
	coordinatorCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for scenario sampling (0 = time-seeded)")
	coordinatorCmd.Flags().Float64Var(&publishRate, "rate", 0, "Maximum scenarios published per second (0 = unlimited)")

	rootCmd.AddCommand(coordinatorCmd)
}
