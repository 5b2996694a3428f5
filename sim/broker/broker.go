// Package broker abstracts the external delivery channel between the
// coordinator, workers and the aggregator.
//
// Delivery is at-most-once with immediate acknowledgment: Get removes the
// message from the queue before returning it, so anything that goes wrong
// afterwards loses that message for good. There is no redelivery.
package broker

import (
	"context"
	"errors"
)

var (
	// ErrConnection wraps failures to reach or talk to the queue service.
	// It is fatal: callers must not proceed without a working channel.
	ErrConnection = errors.New("connection failure")
	// ErrQueueFull is returned by a bounded Memory broker at capacity.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by operations on a closed broker.
	ErrClosed = errors.New("broker closed")
)

// Default queue names, shared with existing deployments.
const (
	DefaultModelQueue    = "model_queue"
	DefaultScenarioQueue = "scenario_queue"
	DefaultResultQueue   = "result_queue"
)

// Broker is a named-queue delivery channel.
type Broker interface {
	// Declare ensures the durable queue exists. Idempotent.
	Declare(ctx context.Context, queue string) error
	// Publish appends body to queue.
	Publish(ctx context.Context, queue string, body []byte) error
	// Get removes and returns the oldest message on queue. ok is false when
	// the queue is empty. The message counts as consumed once returned.
	Get(ctx context.Context, queue string) (body []byte, ok bool, err error)
	// Close releases the connection.
	Close() error
}

// Queues names the three channels of the protocol.
type Queues struct {
	Model    string `yaml:"model" env:"MODEL"`
	Scenario string `yaml:"scenario" env:"SCENARIO"`
	Result   string `yaml:"result" env:"RESULT"`
}

// DefaultQueues returns the standard queue names.
func DefaultQueues() Queues {
	return Queues{
		Model:    DefaultModelQueue,
		Scenario: DefaultScenarioQueue,
		Result:   DefaultResultQueue,
	}
}

// WithDefaults fills empty names with the standard ones.
func (q Queues) WithDefaults() Queues {
	d := DefaultQueues()
	if q.Model == "" {
		q.Model = d.Model
	}
	if q.Scenario == "" {
		q.Scenario = d.Scenario
	}
	if q.Result == "" {
		q.Result = d.Result
	}
	return q
}

// DeclareAll declares each named queue in order, stopping at the first error.
func DeclareAll(ctx context.Context, b Broker, queues ...string) error {
	for _, q := range queues {
		if err := b.Declare(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
