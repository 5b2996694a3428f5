package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// PollConfig bounds how a consumer waits on empty queues and how long any
// single channel operation may take.
type PollConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval" env:"INITIAL_INTERVAL"`
	MaxInterval     time.Duration `yaml:"max_interval" env:"MAX_INTERVAL"`
	OpTimeout       time.Duration `yaml:"op_timeout" env:"OP_TIMEOUT"`
}

// DefaultPollConfig pauses 200ms after an empty poll, growing to at most one
// second while idle.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     time.Second,
		OpTimeout:       5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultPollConfig.
func (c PollConfig) WithDefaults() PollConfig {
	d := DefaultPollConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = d.InitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = d.OpTimeout
	}
	return c
}

// Poller wraps a Broker with per-operation timeouts and an idle backoff.
// Acknowledgment semantics are exactly those of the wrapped Broker.
// Not safe for concurrent use; give each consumer loop its own Poller.
type Poller struct {
	b   Broker
	cfg PollConfig
	bo  *backoff.ExponentialBackOff
}

// NewPoller creates a Poller over b.
func NewPoller(b Broker, cfg PollConfig) *Poller {
	cfg = cfg.WithDefaults()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.1
	bo.Reset()
	return &Poller{b: b, cfg: cfg, bo: bo}
}

// Broker returns the wrapped broker.
func (p *Poller) Broker() Broker { return p.b }

// Get fetches one message under the operation timeout.
func (p *Poller) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	body, ok, err := p.b.Get(opCtx, queue)
	if err != nil {
		return nil, false, p.classify(ctx, "get from "+queue, err)
	}
	return body, ok, nil
}

// Publish sends one message under the operation timeout.
func (p *Poller) Publish(ctx context.Context, queue string, body []byte) error {
	opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
	defer cancel()
	if err := p.b.Publish(opCtx, queue, body); err != nil {
		return p.classify(ctx, "publish to "+queue, err)
	}
	return nil
}

// Received resets the idle backoff after a message arrived.
func (p *Poller) Received() {
	p.bo.Reset()
}

// Idle waits for the next backoff interval. It returns ctx.Err() if the
// context ends first.
func (p *Poller) Idle(ctx context.Context) error {
	wait := p.bo.NextBackOff()
	if wait > p.cfg.MaxInterval {
		wait = p.cfg.MaxInterval
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify keeps cancellation of the caller's context distinct from a
// channel operation that timed out on its own.
func (p *Poller) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out after %v", ErrConnection, op, p.cfg.OpTimeout)
	}
	return err
}
