package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/aggregate"
	"github.com/inference-sim/montecarlo/sim/broker"
	"github.com/inference-sim/montecarlo/sim/coordinator"
	"github.com/inference-sim/montecarlo/sim/trace"
	"github.com/inference-sim/montecarlo/sim/worker"
)

var numWorkers int // In-process worker pool size

// simulationOptions configures an in-process run.
type simulationOptions struct {
	Workers int
	Copies  int
	Seed    int64
}

// simulation is the outcome of an in-process run.
type simulation struct {
	Report     coordinator.Report
	Workers    []*worker.Worker
	Traces     []*trace.WorkerTrace
	Aggregator *aggregate.Aggregator
	Malformed  int
}

// runSimulation wires a coordinator, a worker pool and an aggregator over an
// in-process broker. Every message is published before the workers start, so
// a worker stops at its first empty poll.
func runSimulation(ctx context.Context, model *sim.ModelDefinition, opts simulationOptions) (*simulation, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", opts.Workers)
	}
	mem := broker.NewMemory(0)
	defer func() { _ = mem.Close() }()
	queues := broker.DefaultQueues()
	poll := broker.PollConfig{InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond}

	gen, err := sim.NewPartitionedGenerator(model, sim.NewPartitionedRNG(sim.NewSimulationKey(opts.Seed)))
	if err != nil {
		return nil, err
	}
	c, err := coordinator.New(coordinator.Config{Copies: opts.Copies, Queues: queues, Poll: poll}, mem, model, gen)
	if err != nil {
		return nil, err
	}
	out := &simulation{Aggregator: aggregate.New()}
	if out.Report, err = c.Run(ctx); err != nil {
		return out, err
	}

	for i := 0; i < opts.Workers; i++ {
		wt := trace.NewWorkerTrace(trace.TraceConfig{Level: trace.TraceLevelDispositions})
		w := worker.New(worker.Config{ID: fmt.Sprintf("worker-%d", i+1), Queues: queues, Poll: poll}, mem, worker.WithTrace(wt))
		if err := w.Setup(ctx); err != nil {
			return out, err
		}
		out.Workers = append(out.Workers, w)
		out.Traces = append(out.Traces, wt)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range out.Workers {
		g.Go(func() error { return drainWorker(gctx, w) })
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	consumer := aggregate.NewConsumer(mem, queues.Result, poll, out.Aggregator)
	if _, err := consumer.Drain(ctx); err != nil {
		return out, err
	}
	out.Malformed = consumer.Malformed
	return out, nil
}

// drainWorker polls until a round receives nothing.
func drainWorker(ctx context.Context, w *worker.Worker) error {
	for {
		handled, err := w.Poll(ctx)
		if err != nil {
			return fmt.Errorf("worker %s: %w", w.ID(), err)
		}
		if !handled {
			return nil
		}
	}
}

// simulateCmd runs the whole pipeline in one process
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run coordinator, workers and aggregator in-process over a memory queue",
	Run: func(cmd *cobra.Command, args []string) {
		if modelPath == "" {
			logrus.Fatalf("Model definition not provided. Use --model.")
		}
		model, err := sim.LoadModel(modelPath)
		if err != nil {
			logrus.Fatalf("Failed to load model: %v", err)
		}

		ctx, stop := signalContext()
		defer stop()

		s := resolveSeed(seed)
		logrus.Infof("Simulating %s v%d with %d workers, %d model copies, seed %d", model.Name, model.Version, numWorkers, copies, s)
		startTime := time.Now()
		out, err := runSimulation(ctx, model, simulationOptions{Workers: numWorkers, Copies: copies, Seed: s})
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		ready := 0
		for i, w := range out.Workers {
			if w.State() == worker.Ready {
				ready++
			}
			logrus.Debugf("%s: %+v", w.ID(), trace.Summarize(out.Traces[i]).ByDisposition)
		}
		logrus.Infof("Simulation complete in %v: %d of %d workers loaded the model",
			time.Since(startTime).Round(time.Millisecond), ready, len(out.Workers))
		printSummary(cmd.OutOrStdout(), out.Aggregator.Summary(bins))
	},
}

func init() {
	simulateCmd.Flags().StringVar(&modelPath, "model", "", "Path to the model definition JSON")
	simulateCmd.Flags().IntVar(&numWorkers, "workers", 3, "Number of in-process workers")
	simulateCmd.Flags().IntVar(&copies, "copies", coordinator.DefaultCopies, "Number of model messages to publish; caps how many workers become ready")
	simulateCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for scenario sampling (0 = time-seeded)")
	simulateCmd.Flags().IntVar(&bins, "bins", aggregate.DefaultBins, "Number of histogram buckets")

	rootCmd.AddCommand(simulateCmd)
}
