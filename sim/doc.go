// Package sim provides the data model and scenario generation of the
// distributed Monte Carlo simulator.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - model.go: ModelDefinition, VariableSpec and load-time validation
//   - generator.go: scenario sampling from an injected random source
//   - messages.go: Scenario and Result, and their JSON wire codecs
//
// # Architecture
//
// The sim package defines the wire types; the moving parts live in
// sub-packages:
//   - sim/formula/: the restricted arithmetic evaluator
//   - sim/broker/: queue abstraction (in-process and AMQP) with polling backoff
//   - sim/coordinator/: publishes model copies, then the scenario batch
//   - sim/worker/: version-gated evaluator that publishes results
//   - sim/aggregate/: per-worker counts and the outcome distribution
//   - sim/trace/: per-scenario disposition recording
//
// # Delivery
//
// Every channel is at-most-once: a message is acknowledged as soon as it is
// received, so a worker that fails mid-scenario loses that scenario. Results
// carry no ordering guarantee across workers.
package sim
