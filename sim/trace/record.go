// Package trace records how a worker disposed of each scenario it received.
// This package has no dependencies on sim/ and stores pure data types.
package trace

// Disposition is the outcome of handling one scenario message.
type Disposition string

const (
	// Processed: evaluated and a result was published.
	Processed Disposition = "processed"
	// NoModel: received while the worker was still awaiting a model.
	NoModel Disposition = "no_model"
	// VersionMismatch: the scenario targets another model version.
	VersionMismatch Disposition = "version_mismatch"
	// DecodeFailure: the payload was not a valid scenario.
	DecodeFailure Disposition = "decode_failure"
	// EvaluationFailure: the formula could not be evaluated.
	EvaluationFailure Disposition = "evaluation_failure"
	// ConnectionFailure: evaluated, but publishing the result failed. The
	// worker stops after recording it.
	ConnectionFailure Disposition = "connection_failure"
)

// Dispositions lists every disposition in reporting order.
var Dispositions = []Disposition{Processed, NoModel, VersionMismatch, DecodeFailure, EvaluationFailure, ConnectionFailure}

// DispositionRecord captures a single scenario disposition.
// ScenarioID is -1 when the payload could not be decoded.
type DispositionRecord struct {
	WorkerID     string
	ScenarioID   int64
	ModelVersion int64
	Disposition  Disposition
	Reason       string
}
