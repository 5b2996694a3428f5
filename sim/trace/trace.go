package trace

import "sync"

// TraceLevel controls the verbosity of disposition tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDispositions captures every scenario disposition.
	TraceLevelDispositions TraceLevel = "dispositions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:         true,
	TraceLevelDispositions: true,
	"":                     true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// WorkerTrace collects disposition records for one worker.
// Safe for concurrent use: the worker loop writes while callers read.
type WorkerTrace struct {
	Config TraceConfig

	mu      sync.Mutex
	records []DispositionRecord
}

// NewWorkerTrace creates a WorkerTrace ready for recording.
func NewWorkerTrace(config TraceConfig) *WorkerTrace {
	return &WorkerTrace{
		Config:  config,
		records: make([]DispositionRecord, 0),
	}
}

// Enabled reports whether records are kept. A nil trace is disabled.
func (wt *WorkerTrace) Enabled() bool {
	return wt != nil && wt.Config.Level == TraceLevelDispositions
}

// Record appends a disposition record when tracing is enabled.
func (wt *WorkerTrace) Record(record DispositionRecord) {
	if !wt.Enabled() {
		return
	}
	wt.mu.Lock()
	wt.records = append(wt.records, record)
	wt.mu.Unlock()
}

// Records returns a copy of the recorded dispositions in receipt order.
func (wt *WorkerTrace) Records() []DispositionRecord {
	if wt == nil {
		return nil
	}
	wt.mu.Lock()
	defer wt.mu.Unlock()
	out := make([]DispositionRecord, len(wt.records))
	copy(out, wt.records)
	return out
}
