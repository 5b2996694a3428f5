package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/montecarlo/sim/aggregate"
)

var (
	follow bool // Keep consuming until interrupted
	bins   int  // Histogram buckets
)

// aggregateCmd consumes results and prints their distribution
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Consume results and print per-worker counts and the outcome distribution",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()

		ctx, stop := signalContext()
		defer stop()

		b, err := openBroker(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Failed to connect to queue service: %v", err)
		}
		defer func() { _ = b.Close() }()

		agg := aggregate.New()
		consumer := aggregate.NewConsumer(b, cfg.Queues.Result, cfg.Poll, agg)
		if err := consumer.Setup(ctx); err != nil {
			logrus.Fatalf("Failed to declare result queue: %v", err)
		}

		if follow {
			logrus.Infof("Following %s until interrupted", cfg.Queues.Result)
			err = consumer.Run(ctx)
		} else {
			_, err = consumer.Drain(ctx)
		}
		if err != nil {
			logrus.Fatalf("Aggregator failed after %d results: %v", agg.Total(), err)
		}
		if consumer.Malformed > 0 {
			logrus.Warnf("%d malformed result payloads were dropped", consumer.Malformed)
		}
		printSummary(cmd.OutOrStdout(), agg.Summary(bins))
	},
}

func init() {
	aggregateCmd.Flags().BoolVar(&follow, "follow", false, "Keep consuming until interrupted instead of stopping at an empty queue")
	aggregateCmd.Flags().IntVar(&bins, "bins", aggregate.DefaultBins, "Number of histogram buckets")

	rootCmd.AddCommand(aggregateCmd)
}
