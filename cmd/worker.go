package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/montecarlo/sim/trace"
	"github.com/inference-sim/montecarlo/sim/worker"
)

var (
	workerID    string // Identity stamped on results
	metricsAddr string // Prometheus listen address ("" = disabled)
	traceLevel  string // Disposition trace level
)

// workerCmd evaluates scenarios until interrupted
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Load one model and evaluate scenarios until interrupted",
	Run: func(cmd *cobra.Command, args []string) {
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (valid: none, dispositions)", traceLevel)
		}
		cfg := mustLoadConfig()
		if workerID == "" {
			workerID = worker.DefaultID()
		}

		ctx, stop := signalContext()
		defer stop()

		b, err := openBroker(ctx, cfg)
		if err != nil {
			logrus.Fatalf("Failed to connect to queue service: %v", err)
		}
		defer func() { _ = b.Close() }()

		reg := prometheus.NewRegistry()
		wt := trace.NewWorkerTrace(trace.TraceConfig{Level: trace.TraceLevel(traceLevel)})
		w := worker.New(worker.Config{ID: workerID, Queues: cfg.Queues, Poll: cfg.Poll}, b,
			worker.WithMetrics(worker.NewMetrics(reg, workerID)),
			worker.WithTrace(wt))
		if err := w.Setup(ctx); err != nil {
			logrus.Fatalf("Failed to declare queues: %v", err)
		}

		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr, reg)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}

		if err := w.Run(ctx); err != nil {
			logrus.Fatalf("Worker stopped: %v", err)
		}
		if wt.Enabled() {
			printTraceSummary(cmd.OutOrStdout(), trace.Summarize(wt))
		}
		logrus.Infof("Worker %s stopped in state %s", w.ID(), w.State())
	},
}

// serveMetrics exposes reg on addr/metrics in the background.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server on %s: %v", addr, err)
		}
	}()
	logrus.Infof("Serving metrics on %s/metrics", addr)
	return srv
}

func init() {
	workerCmd.Flags().StringVar(&workerID, "id", "", "Worker identity (default worker-<random>)")
	workerCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for Prometheus metrics, e.g. :9101 (empty = disabled)")
	workerCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Disposition trace level (none, dispositions); printed on exit")

	rootCmd.AddCommand(workerCmd)
}
