// Package aggregate keeps per-worker counts and the distribution of results.
//
// The Aggregator retains every value it records and never evicts. It is
// meant for bounded batch runs; an unbounded result stream needs a retention
// limit first.
package aggregate

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/montecarlo/sim"
)

// DefaultBins is the histogram resolution of a summary.
const DefaultBins = 20

// Aggregator accumulates results. Safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	counts   map[string]int
	versions map[int64]int
	values   []float64
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		counts:   make(map[string]int),
		versions: make(map[int64]int),
	}
}

// Record counts the result against its worker and keeps its value.
func (a *Aggregator) Record(r sim.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[r.WorkerID]++
	a.versions[r.ModelVersion]++
	a.values = append(a.values, r.Value)
}

// Count returns how many results workerID produced.
func (a *Aggregator) Count(workerID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[workerID]
}

// Total returns the number of recorded results.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.values)
}

// WorkerCounts returns a copy of the per-worker counters.
func (a *Aggregator) WorkerCounts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Values returns a copy of the recorded values in arrival order.
func (a *Aggregator) Values() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]float64, len(a.values))
	copy(out, a.values)
	return out
}

// === Summary ===

// WorkerCount is one row of the per-worker breakdown.
type WorkerCount struct {
	WorkerID string
	Count    int
}

// Bucket is one histogram bin covering [Lower, Upper).
type Bucket struct {
	Lower, Upper float64
	Count        int
}

// Summary describes the recorded outcome distribution. Statistics cover
// finite values only; NaN and infinities are counted in NonFinite.
type Summary struct {
	Total         int
	NonFinite     int
	Workers       []WorkerCount // sorted by WorkerID
	ModelVersions map[int64]int
	Mean          float64
	StdDev        float64
	Min, Max      float64
	P50, P90, P99 float64
	Histogram     []Bucket
}

// Summary computes statistics and a histogram with bins equal-width buckets.
// bins <= 0 selects DefaultBins.
func (a *Aggregator) Summary(bins int) Summary {
	if bins <= 0 {
		bins = DefaultBins
	}
	a.mu.Lock()
	s := Summary{
		Total:         len(a.values),
		Workers:       make([]WorkerCount, 0, len(a.counts)),
		ModelVersions: make(map[int64]int, len(a.versions)),
	}
	for id, n := range a.counts {
		s.Workers = append(s.Workers, WorkerCount{WorkerID: id, Count: n})
	}
	for v, n := range a.versions {
		s.ModelVersions[v] = n
	}
	finite := make([]float64, 0, len(a.values))
	for _, v := range a.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NonFinite++
			continue
		}
		finite = append(finite, v)
	}
	a.mu.Unlock()

	sort.Slice(s.Workers, func(i, j int) bool { return s.Workers[i].WorkerID < s.Workers[j].WorkerID })
	if len(finite) == 0 {
		return s
	}

	sort.Float64s(finite)
	s.Mean, s.StdDev = stat.MeanStdDev(finite, nil)
	if len(finite) == 1 {
		s.StdDev = 0
	}
	s.Min = finite[0]
	s.Max = finite[len(finite)-1]
	s.P50 = stat.Quantile(0.50, stat.Empirical, finite, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, finite, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, finite, nil)
	s.Histogram = histogram(finite, bins)
	return s
}

// histogram bins sorted, finite values into equal-width buckets spanning
// [min, max]. The last bucket is widened by one ulp so max falls inside.
func histogram(sorted []float64, bins int) []Bucket {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []Bucket{{Lower: lo, Upper: math.Nextafter(hi, math.Inf(1)), Count: len(sorted)}}
	}
	dividers := spanDividers(lo, hi, bins)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	buckets := make([]Bucket, bins)
	for i := range buckets {
		buckets[i] = Bucket{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	return buckets
}

// spanDividers returns bins+1 ascending dividers from lo to just above hi.
// Each divider interpolates lo*(1-t) + hi*t, which stays finite even when
// hi-lo overflows float64.
func spanDividers(lo, hi float64, bins int) []float64 {
	dividers := make([]float64, bins+1)
	dividers[0] = lo
	for i := 1; i < bins; i++ {
		t := float64(i) / float64(bins)
		dividers[i] = math.Min(hi, math.Max(dividers[i-1], lo*(1-t)+hi*t))
	}
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	return dividers
}
