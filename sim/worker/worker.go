// Package worker consumes model definitions and scenarios, gates scenarios on
// the loaded model version, evaluates the formula and publishes results.
//
// A worker starts AwaitingModel and moves to Ready exactly once, on the first
// valid model it receives. The model is then frozen for the worker's
// lifetime. Every message is consumed on receipt: scenarios that arrive
// before a model, target another version, fail to decode or fail to
// evaluate are logged and gone.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/broker"
	"github.com/inference-sim/montecarlo/sim/formula"
	"github.com/inference-sim/montecarlo/sim/trace"
)

// ErrModelFrozen is returned when a second model is offered to a Ready worker.
var ErrModelFrozen = errors.New("model already loaded")

// State is the worker lifecycle state.
type State int

const (
	// AwaitingModel is the initial state; scenarios are dropped.
	AwaitingModel State = iota
	// Ready means a model is loaded; scenarios are evaluated.
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingModel:
		return "AwaitingModel"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the explicit inputs of a worker.
type Config struct {
	ID     string
	Queues broker.Queues
	Poll   broker.PollConfig
}

// DefaultID returns a fresh worker identity of the form worker-xxxxxxxx.
func DefaultID() string {
	return "worker-" + uuid.NewString()[:8]
}

// Option customizes a Worker.
type Option func(*Worker)

// WithClock overrides the result timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithTrace attaches a disposition trace.
func WithTrace(t *trace.WorkerTrace) Option {
	return func(w *Worker) { w.trace = t }
}

type loadedModel struct {
	def  *sim.ModelDefinition
	expr *formula.Expression
}

// Worker evaluates scenarios against a single, frozen model.
// Run, Poll, LoadModel and HandleScenario belong to one goroutine; State,
// Model and ID may be called from anywhere.
type Worker struct {
	id      string
	queues  broker.Queues
	poller  *broker.Poller
	loaded  atomic.Pointer[loadedModel]
	now     func() time.Time
	metrics *Metrics
	trace   *trace.WorkerTrace
	log     *logrus.Entry
}

// New creates a worker in the AwaitingModel state.
func New(cfg Config, b broker.Broker, opts ...Option) *Worker {
	id := cfg.ID
	if id == "" {
		id = DefaultID()
	}
	w := &Worker{
		id:     id,
		queues: cfg.Queues.WithDefaults(),
		poller: broker.NewPoller(b, cfg.Poll),
		now:    time.Now,
		log:    logrus.WithField("worker_id", id),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker identity stamped on results.
func (w *Worker) ID() string { return w.id }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	if w.loaded.Load() != nil {
		return Ready
	}
	return AwaitingModel
}

// Model returns the loaded model, or nil while AwaitingModel.
func (w *Worker) Model() *sim.ModelDefinition {
	if lm := w.loaded.Load(); lm != nil {
		return lm.def
	}
	return nil
}

// Setup declares the three durable queues.
func (w *Worker) Setup(ctx context.Context) error {
	return broker.DeclareAll(ctx, w.poller.Broker(), w.queues.Model, w.queues.Scenario, w.queues.Result)
}

// Run polls until ctx is cancelled, which returns nil. Broker errors are
// returned wrapped and end the loop; per-message failures never do.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infof("Worker %s waiting for model on %s", w.id, w.queues.Model)
	for {
		handled, err := w.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("worker %s: %w", w.id, err)
		}
		if handled {
			w.poller.Received()
			continue
		}
		if err := w.poller.Idle(ctx); err != nil {
			return nil
		}
	}
}

// Poll performs one round: while AwaitingModel it takes at most one model
// message, then at most one scenario message. It reports whether anything
// was received.
func (w *Worker) Poll(ctx context.Context) (bool, error) {
	handled := false
	if w.State() == AwaitingModel {
		body, ok, err := w.poller.Get(ctx, w.queues.Model)
		if err != nil {
			return false, err
		}
		if ok {
			handled = true
			if err := w.LoadModel(body); err != nil {
				w.log.Debugf("model copy consumed without loading: %v", err)
			}
		}
	}

	body, ok, err := w.poller.Get(ctx, w.queues.Scenario)
	if err != nil {
		return handled, err
	}
	if !ok {
		return handled, nil
	}
	if _, err := w.HandleScenario(ctx, body); err != nil {
		return true, err
	}
	return true, nil
}

// LoadModel decodes a model payload and, if valid, freezes it and moves the
// worker to Ready. Invalid payloads leave the worker AwaitingModel.
func (w *Worker) LoadModel(body []byte) error {
	if w.State() == Ready {
		return ErrModelFrozen
	}
	model, err := sim.DecodeModel(body)
	if err != nil {
		w.metrics.observeModel(false)
		w.log.WithFields(logrus.Fields{"kind": string(trace.DecodeFailure)}).Warnf("rejected model payload: %v", err)
		return err
	}
	expr, err := formula.Parse(model.Formula)
	if err != nil {
		w.metrics.observeModel(false)
		w.log.WithFields(logrus.Fields{"kind": string(trace.DecodeFailure)}).Warnf("rejected model formula: %v", err)
		return err
	}
	if !w.loaded.CompareAndSwap(nil, &loadedModel{def: model, expr: expr}) {
		return ErrModelFrozen
	}
	w.metrics.observeModel(true)
	w.log.Infof("Worker %s loaded model %s v%d (%d variables)", w.id, model.Name, model.Version, len(model.Variables))
	return nil
}

// HandleScenario disposes of one scenario payload. The returned error is
// non-nil only for a failure to publish the result (ConnectionFailure);
// every other outcome is reported through the disposition alone.
func (w *Worker) HandleScenario(ctx context.Context, body []byte) (trace.Disposition, error) {
	s, err := sim.DecodeScenario(body)
	if err != nil {
		w.dispose(trace.DispositionRecord{ScenarioID: -1, Disposition: trace.DecodeFailure, Reason: err.Error()})
		return trace.DecodeFailure, nil
	}

	lm := w.loaded.Load()
	if lm == nil {
		w.dispose(trace.DispositionRecord{
			ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion,
			Disposition: trace.NoModel, Reason: "no model loaded",
		})
		return trace.NoModel, nil
	}
	if s.ModelVersion != lm.def.Version {
		w.dispose(trace.DispositionRecord{
			ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion,
			Disposition: trace.VersionMismatch,
			Reason:      fmt.Sprintf("version %d differs from loaded %d", s.ModelVersion, lm.def.Version),
		})
		return trace.VersionMismatch, nil
	}

	start := time.Now()
	value, err := lm.expr.Eval(s.Values)
	w.metrics.observeEvaluation(time.Since(start).Seconds())
	if err != nil {
		w.dispose(trace.DispositionRecord{
			ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion,
			Disposition: trace.EvaluationFailure, Reason: evaluationKind(err) + ": " + err.Error(),
		})
		return trace.EvaluationFailure, nil
	}

	result := sim.NewResult(s, w.id, value, w.now())
	payload, err := sim.EncodeResult(result)
	if err != nil {
		w.dispose(trace.DispositionRecord{
			ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion,
			Disposition: trace.EvaluationFailure, Reason: err.Error(),
		})
		return trace.EvaluationFailure, nil
	}
	if err := w.poller.Publish(ctx, w.queues.Result, payload); err != nil {
		w.dispose(trace.DispositionRecord{
			ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion,
			Disposition: trace.ConnectionFailure, Reason: "publishing result: " + err.Error(),
		})
		return trace.ConnectionFailure, err
	}
	w.dispose(trace.DispositionRecord{
		ScenarioID: s.ScenarioID, ModelVersion: s.ModelVersion, Disposition: trace.Processed,
	})
	w.log.Debugf("Worker %s processed scenario %d result=%g", w.id, s.ScenarioID, value)
	return trace.Processed, nil
}

// dispose logs, counts and traces a disposition.
func (w *Worker) dispose(r trace.DispositionRecord) {
	r.WorkerID = w.id
	w.metrics.observeMessage(r.Disposition)
	w.trace.Record(r)

	fields := logrus.Fields{"kind": string(r.Disposition)}
	if r.ScenarioID >= 0 {
		fields["scenario_id"] = r.ScenarioID
		fields["model_version"] = r.ModelVersion
	}
	entry := w.log.WithFields(fields)
	switch r.Disposition {
	case trace.Processed:
	case trace.NoModel, trace.VersionMismatch:
		entry.Infof("skipped scenario: %s", r.Reason)
	case trace.ConnectionFailure:
		entry.Errorf("lost scenario: %s", r.Reason)
	default:
		entry.Warnf("dropped scenario: %s", r.Reason)
	}
}

// evaluationKind names the formula error class of err, for log lines.
func evaluationKind(err error) string {
	switch {
	case errors.Is(err, formula.ErrUnknownVariable):
		return "unknown_variable"
	case errors.Is(err, formula.ErrMalformedExpression):
		return "malformed_expression"
	case errors.Is(err, formula.ErrNonNumericResult):
		return "non_numeric_result"
	default:
		return "evaluation_failure"
	}
}
