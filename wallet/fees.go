// Package wallet owns the wallet ledger, the synthetic transaction workload
// generator, and the dynamic fee model.
package wallet

import (
	"sync"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

// priorityMultipliers scales the base fee per priority class.
var priorityMultipliers = map[blockchain.Priority]float64{
	blockchain.PriorityLow:    0.5,
	blockchain.PriorityNormal: 1.0,
	blockchain.PriorityHigh:   2.0,
	blockchain.PriorityUrgent: 5.0,
}

// FeeModel computes transaction fees from amount, priority class and current
// network conditions. Conditions are pushed in from outside and read at
// computation time; the model has no feedback loop of its own.
type FeeModel struct {
	mu               sync.RWMutex
	baseRate         float64
	minFee           float64
	maxFee           float64
	blockUtilization float64
}

// NewFeeModel creates a fee model from the fee tuning bounds.
func NewFeeModel(tuning config.FeeTuning) *FeeModel {
	return &FeeModel{
		baseRate:         tuning.FeeRate,
		minFee:           tuning.MinFee,
		maxFee:           tuning.MaxFee,
		blockUtilization: 0.5,
	}
}

// Fee computes the fee for a transfer of amount at the given priority under
// the given congestion. The result is always within [minFee, maxFee].
func (m *FeeModel) Fee(amount float64, priority blockchain.Priority, congestion float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mult, ok := priorityMultipliers[priority]
	if !ok {
		mult = 1.0
	}

	fee := amount * m.baseRate * mult
	fee *= 1.0 + congestion*2.0         // up to 3x under full congestion
	fee *= 1.0 + m.blockUtilization*0.5 // up to 1.5x for full blocks

	if fee < m.minFee {
		fee = m.minFee
	}
	if fee > m.maxFee {
		fee = m.maxFee
	}
	return fee
}

// SetBlockUtilization replaces the utilization input, clamped to [0, 1].
// Congestion has no stored counterpart: callers pass their own reading to Fee.
func (m *FeeModel) SetBlockUtilization(blockUtilization float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockUtilization = clamp01(blockUtilization)
}

// Estimate returns the fee for the amount and priority across a range of
// congestion levels.
func (m *FeeModel) Estimate(amount float64, priority blockchain.Priority) map[string]float64 {
	estimates := make(map[string]float64, 5)
	for _, congestion := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
		fee := m.Fee(amount, priority, congestion)
		estimates[estimateKey(congestion)] = fee
	}
	return estimates
}

func estimateKey(congestion float64) string {
	switch congestion {
	case 0.25:
		return "25%_congestion"
	case 0.5:
		return "50%_congestion"
	case 0.75:
		return "75%_congestion"
	case 1.0:
		return "100%_congestion"
	default:
		return "0%_congestion"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
