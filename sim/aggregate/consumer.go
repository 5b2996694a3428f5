package aggregate

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/broker"
)

// Consumer moves results from the result channel into an Aggregator.
type Consumer struct {
	queue  string
	poller *broker.Poller
	agg    *Aggregator
	// Malformed counts payloads that failed to decode; they are consumed
	// and logged, never recorded.
	Malformed int
}

// NewConsumer reads queue from b into agg.
func NewConsumer(b broker.Broker, queue string, poll broker.PollConfig, agg *Aggregator) *Consumer {
	if queue == "" {
		queue = broker.DefaultResultQueue
	}
	return &Consumer{queue: queue, poller: broker.NewPoller(b, poll), agg: agg}
}

// Setup declares the result queue.
func (c *Consumer) Setup(ctx context.Context) error {
	return c.poller.Broker().Declare(ctx, c.queue)
}

// Drain consumes until the queue is empty and returns how many results were
// recorded.
func (c *Consumer) Drain(ctx context.Context) (int, error) {
	recorded := 0
	for {
		body, ok, err := c.poller.Get(ctx, c.queue)
		if err != nil {
			return recorded, err
		}
		if !ok {
			return recorded, nil
		}
		if c.handle(body) {
			recorded++
		}
	}
}

// Run drains repeatedly, backing off while the queue is empty, until ctx is
// cancelled (returns nil) or the broker fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		n, err := c.Drain(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n > 0 {
			c.poller.Received()
			logrus.Debugf("aggregator recorded %d results (total %d)", n, c.agg.Total())
		}
		if err := c.poller.Idle(ctx); err != nil {
			return nil
		}
	}
}

func (c *Consumer) handle(body []byte) bool {
	r, err := sim.DecodeResult(body)
	if err != nil {
		c.Malformed++
		logrus.WithFields(logrus.Fields{"kind": "decode_failure", "queue": c.queue}).Warnf("dropped result payload: %v", err)
		return false
	}
	c.agg.Record(r)
	return true
}
