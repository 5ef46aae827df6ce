package mining

import "math/rand"

// Policy decides whether a mining attempt succeeds given the elapsed
// simulated time since the last block. It stands in for a real proof-of-work
// search and can be swapped for an arrival-process model without touching the
// engine.
type Policy interface {
	ShouldMine(elapsed, target float64, rng *rand.Rand) bool
}

// ProbabilisticPolicy is the default two-branch coin flip: a high probability
// draw once the target block time has elapsed, a low probability draw before.
type ProbabilisticPolicy struct {
	HighProbability float64
	LowProbability  float64
}

// DefaultPolicy returns the standard 0.90 / 0.01 policy.
func DefaultPolicy() ProbabilisticPolicy {
	return ProbabilisticPolicy{HighProbability: 0.90, LowProbability: 0.01}
}

func (p ProbabilisticPolicy) ShouldMine(elapsed, target float64, rng *rand.Rand) bool {
	if elapsed >= target {
		return rng.Float64() < p.HighProbability
	}
	return rng.Float64() < p.LowProbability
}
