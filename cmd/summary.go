package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/inference-sim/montecarlo/sim/aggregate"
	"github.com/inference-sim/montecarlo/sim/trace"
)

const histogramWidth = 40

// printSummary writes the result distribution as text: counts per worker,
// moments, percentiles and a bar histogram.
func printSummary(w io.Writer, s aggregate.Summary) {
	fmt.Fprintln(w, "=== Simulation Results ===")
	fmt.Fprintf(w, "Results              : %d\n", s.Total)
	if s.NonFinite > 0 {
		fmt.Fprintf(w, "Non-finite values    : %d\n", s.NonFinite)
	}
	versions := make([]int64, 0, len(s.ModelVersions))
	for v := range s.ModelVersions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for _, v := range versions {
		fmt.Fprintf(w, "Model version %-6d : %d\n", v, s.ModelVersions[v])
	}

	fmt.Fprintln(w, "--- Results per worker ---")
	for _, wc := range s.Workers {
		fmt.Fprintf(w, "%-20s : %d\n", wc.WorkerID, wc.Count)
	}
	if len(s.Histogram) == 0 {
		return
	}

	fmt.Fprintln(w, "--- Distribution ---")
	fmt.Fprintf(w, "Mean                 : %.6g\n", s.Mean)
	fmt.Fprintf(w, "Std Dev              : %.6g\n", s.StdDev)
	fmt.Fprintf(w, "Min / Max            : %.6g / %.6g\n", s.Min, s.Max)
	fmt.Fprintf(w, "P50 / P90 / P99      : %.6g / %.6g / %.6g\n", s.P50, s.P90, s.P99)

	peak := 0
	for _, b := range s.Histogram {
		peak = max(peak, b.Count)
	}
	for _, b := range s.Histogram {
		bar := 0
		if peak > 0 {
			bar = b.Count * histogramWidth / peak
		}
		fmt.Fprintf(w, "[%12.6g, %12.6g) %6d %s\n", b.Lower, b.Upper, b.Count, strings.Repeat("#", bar))
	}
}

// printTraceSummary writes a worker's disposition counts.
func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Worker Dispositions ===")
	fmt.Fprintf(w, "Scenarios handled    : %d\n", ts.Total)
	for _, d := range trace.Dispositions {
		if n := ts.ByDisposition[d]; n > 0 {
			fmt.Fprintf(w, "%-20s : %d\n", d, n)
		}
	}
	if ts.LastScenarioID >= 0 {
		fmt.Fprintf(w, "Last scenario id     : %d\n", ts.LastScenarioID)
	}
}
