package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey is the seed of a reproducible scenario batch. The same key
// and model always yield the same scenarios.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemScenarios is the stream seeded with the key itself.
const SubsystemScenarios = "scenarios"

// VariableSubsystem names the stream a model variable samples from.
func VariableSubsystem(variable string) string {
	return SubsystemScenarios + "/" + variable
}

// PartitionedRNG hands out one seeded *rand.Rand per stream name. Streams
// never share state: drawing from one leaves the others untouched, so adding
// a variable to a model does not shift the draws of the existing ones.
//
// Not safe for concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream for name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seedFor(name)))
	p.streams[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// seedFor is the key for SubsystemScenarios and key XOR fnv-1a(name) for
// everything else.
func (p *PartitionedRNG) seedFor(name string) int64 {
	if name == SubsystemScenarios {
		return int64(p.key)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(p.key) ^ int64(h.Sum64())
}
