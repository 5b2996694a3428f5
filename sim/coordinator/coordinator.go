// Package coordinator publishes a model definition and its scenario batch.
package coordinator

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/inference-sim/montecarlo/sim"
	"github.com/inference-sim/montecarlo/sim/broker"
)

// DefaultCopies is the number of model messages published per run.
// Each copy is consumed by exactly one worker, so it caps how many workers
// can ever become Ready.
const DefaultCopies = 2

// Config holds the explicit inputs of a coordinator.
type Config struct {
	// Copies of the model to publish; must be >= 1.
	Copies int
	Queues broker.Queues
	Poll   broker.PollConfig
	// PublishRate caps scenario publication in scenarios per second.
	// Zero means unlimited.
	PublishRate float64
}

// Report summarizes one publishing run.
type Report struct {
	ModelCopies int
	Scenarios   int64
}

// Coordinator publishes one model followed by its full scenario batch.
// There is no barrier between the two: scenarios may reach the queue
// before every intended worker holds a model copy.
type Coordinator struct {
	cfg     Config
	model   *sim.ModelDefinition
	gen     *sim.Generator
	poller  *broker.Poller
	limiter *rate.Limiter
}

// New validates the model and configuration and builds a coordinator.
func New(cfg Config, b broker.Broker, model *sim.ModelDefinition, gen *sim.Generator) (*Coordinator, error) {
	if cfg.Copies < 1 {
		return nil, fmt.Errorf("copies must be at least 1, got %d", cfg.Copies)
	}
	if math.IsNaN(cfg.PublishRate) || cfg.PublishRate < 0 {
		return nil, fmt.Errorf("publish rate must be non-negative, got %f", cfg.PublishRate)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model definition: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("coordinator requires a scenario generator")
	}
	cfg.Queues = cfg.Queues.WithDefaults()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PublishRate > 0 {
		burst := int(math.Max(1, math.Ceil(cfg.PublishRate/10)))
		limiter = rate.NewLimiter(rate.Limit(cfg.PublishRate), burst)
	}
	return &Coordinator{
		cfg:     cfg,
		model:   model,
		gen:     gen,
		poller:  broker.NewPoller(b, cfg.Poll),
		limiter: limiter,
	}, nil
}

// Setup declares the model and scenario queues.
func (c *Coordinator) Setup(ctx context.Context) error {
	return broker.DeclareAll(ctx, c.poller.Broker(), c.cfg.Queues.Model, c.cfg.Queues.Scenario)
}

// PublishModel publishes Copies identical model messages.
func (c *Coordinator) PublishModel(ctx context.Context) error {
	body, err := sim.EncodeModel(c.model)
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	for i := 0; i < c.cfg.Copies; i++ {
		if err := c.poller.Publish(ctx, c.cfg.Queues.Model, body); err != nil {
			return fmt.Errorf("publishing model copy %d: %w", i, err)
		}
	}
	logrus.Infof("Model %s v%d published %d times on %s", c.model.Name, c.model.Version, c.cfg.Copies, c.cfg.Queues.Model)
	return nil
}

// PublishScenarios generates and publishes scenario ids 0..ScenarioCount-1
// in order. It returns how many were published before any error.
func (c *Coordinator) PublishScenarios(ctx context.Context) (int64, error) {
	var published int64
	for id := int64(0); id < c.model.ScenarioCount; id++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return published, err
		}
		body, err := sim.EncodeScenario(c.gen.Generate(id))
		if err != nil {
			return published, fmt.Errorf("encoding scenario %d: %w", id, err)
		}
		if err := c.poller.Publish(ctx, c.cfg.Queues.Scenario, body); err != nil {
			return published, fmt.Errorf("publishing scenario %d: %w", id, err)
		}
		published++
	}
	logrus.Infof("%d scenarios published on %s", published, c.cfg.Queues.Scenario)
	return published, nil
}

// Run declares queues, publishes the model copies, then the scenarios.
func (c *Coordinator) Run(ctx context.Context) (Report, error) {
	var report Report
	if err := c.Setup(ctx); err != nil {
		return report, err
	}
	if err := c.PublishModel(ctx); err != nil {
		return report, err
	}
	report.ModelCopies = c.cfg.Copies
	n, err := c.PublishScenarios(ctx)
	report.Scenarios = n
	return report, err
}
