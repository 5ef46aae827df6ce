package mining

import "math/rand"

// Miner represents one mining actor. Hashrate is the nominal configured rate;
// ActualHashrate carries the per-miner variance applied at creation.
type Miner struct {
	MinerID         string  `json:"miner_id"`
	Hashrate        float64 `json:"hashrate"`
	ActualHashrate  float64 `json:"actual_hashrate"`
	BlocksMined     int     `json:"blocks_mined"`
	TotalMiningTime float64 `json:"total_mining_time"`
	Active          bool    `json:"active"`
}

// NewMiner creates a miner with its hashrate randomized within the configured
// variance band.
func NewMiner(minerID string, hashrate, variance float64, rng *rand.Rand) *Miner {
	factor := 1 - variance + rng.Float64()*2*variance
	return &Miner{
		MinerID:        minerID,
		Hashrate:       hashrate,
		ActualHashrate: hashrate * factor,
	}
}

// recordBlock accounts a mined block against this miner.
func (m *Miner) recordBlock(miningTime float64) {
	m.BlocksMined++
	m.TotalMiningTime += miningTime
}

// Efficiency returns blocks per hour of simulated mining time.
func (m *Miner) Efficiency() float64 {
	if m.TotalMiningTime <= 0 {
		return 0
	}
	return float64(m.BlocksMined) * 3600 / m.TotalMiningTime
}
