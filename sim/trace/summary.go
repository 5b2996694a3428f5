package trace

// TraceSummary aggregates statistics from a WorkerTrace.
type TraceSummary struct {
	Total          int
	ByDisposition  map[Disposition]int
	ModelVersions  map[int64]int // scenario model_version → count, decoded payloads only
	LastScenarioID int64
}

// Summarize computes aggregate statistics from a WorkerTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(wt *WorkerTrace) *TraceSummary {
	summary := &TraceSummary{
		ByDisposition:  make(map[Disposition]int),
		ModelVersions:  make(map[int64]int),
		LastScenarioID: -1,
	}
	records := wt.Records()
	summary.Total = len(records)
	for _, r := range records {
		summary.ByDisposition[r.Disposition]++
		if r.Disposition != DecodeFailure {
			summary.ModelVersions[r.ModelVersion]++
			summary.LastScenarioID = r.ScenarioID
		}
	}
	return summary
}
