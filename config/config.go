// Package config holds the read-only tuning surface of the simulator: the
// per-run SimulationConfig, global constants, and the built-in chain and
// workload profiles.
package config

import "fmt"

const (
	// DifficultyAdjustmentBlocks is the retarget window: difficulty is
	// recomputed every this many blocks.
	DifficultyAdjustmentBlocks = 2016

	// MaxHalvings caps the number of reward halvings.
	MaxHalvings = 35

	// MinRewardThreshold is the smallest reward worth paying out.
	MinRewardThreshold = 0.00000001

	// SecondsPerYear converts a --years duration into simulated seconds.
	SecondsPerYear = 365 * 24 * 3600
)

// NetworkTuning bounds the randomized per-node link parameters.
type NetworkTuning struct {
	LatencyMin     float64 // seconds
	LatencyMax     float64 // seconds
	BandwidthLimit float64 // bytes per second
	PacketLossRate float64
}

// MiningTuning bounds per-miner randomization and difficulty movement.
type MiningTuning struct {
	HashrateVariance float64 // fraction of nominal hashrate
	MinAdjustment    float64 // smallest single retarget step
	MaxAdjustment    float64 // largest single retarget step
	MinDifficulty    float64 // fraction of the baseline difficulty
	MaxDifficulty    float64 // multiple of the baseline difficulty
}

// FeeTuning bounds the fee model.
type FeeTuning struct {
	MinAmount float64
	MaxAmount float64
	MinFee    float64
	MaxFee    float64
	FeeRate   float64
}

// DefaultNetworkTuning is the stock network parameter set.
var DefaultNetworkTuning = NetworkTuning{
	LatencyMin:     0.001,
	LatencyMax:     0.1,
	BandwidthLimit: 100 * 1024 * 1024,
	PacketLossRate: 0.001,
}

// DefaultMiningTuning is the stock mining parameter set.
var DefaultMiningTuning = MiningTuning{
	HashrateVariance: 0.1,
	MinAdjustment:    0.67,
	MaxAdjustment:    1.5,
	MinDifficulty:    0.1,
	MaxDifficulty:    5.0,
}

// DefaultFeeTuning is the stock fee parameter set.
var DefaultFeeTuning = FeeTuning{
	MinAmount: 0.1,
	MaxAmount: 10.0,
	MinFee:    0.001,
	MaxFee:    0.1,
	FeeRate:   0.01,
}

// SimulationConfig is the full read-only parameter set for one run.
type SimulationConfig struct {
	Nodes         int     `json:"nodes"`
	Neighbors     int     `json:"neighbors"`
	Miners        int     `json:"miners"`
	Hashrate      float64 `json:"hashrate"`
	BlockTime     float64 `json:"blocktime"`
	Difficulty    float64 `json:"difficulty"`
	Reward        float64 `json:"reward"`
	Halving       int     `json:"halving"`
	Wallets       int     `json:"wallets"`
	Transactions  int     `json:"transactions"`
	Interval      float64 `json:"interval"`
	BlockSize     int     `json:"blocksize"`
	Blocks        int     `json:"blocks"`
	Years         float64 `json:"years"`
	PrintInterval int     `json:"print_interval"`
	Seed          int64   `json:"seed"`
	Debug         bool    `json:"debug"`

	Network NetworkTuning `json:"-"`
	Mining  MiningTuning  `json:"-"`
	Fees    FeeTuning     `json:"-"`
}

// Default returns the baseline configuration used when no chain profile or
// flag overrides a field.
func Default() SimulationConfig {
	return SimulationConfig{
		Nodes:         10,
		Neighbors:     3,
		Miners:        5,
		Hashrate:      1000,
		BlockTime:     600,
		Reward:        50,
		Halving:       210000,
		Interval:      1.0,
		BlockSize:     4000,
		PrintInterval: 144,
		Years:         1.0,
		Network:       DefaultNetworkTuning,
		Mining:        DefaultMiningTuning,
		Fees:          DefaultFeeTuning,
	}
}

// BaselineDifficulty is the reference difficulty the retarget clamps around.
func (c *SimulationConfig) BaselineDifficulty() float64 {
	return c.BlockTime * float64(c.Miners) * c.Hashrate
}

// Finalize derives dependent fields and validates the configuration. It must
// be called once before a run; configuration failures are the only fatal
// errors in the system.
func (c *SimulationConfig) Finalize() error {
	if c.BlockTime <= 0 {
		return fmt.Errorf("config: blocktime must be positive, got %g", c.BlockTime)
	}
	if c.Miners <= 0 {
		return fmt.Errorf("config: at least one miner required, got %d", c.Miners)
	}
	if c.Nodes <= 0 {
		return fmt.Errorf("config: at least one node required, got %d", c.Nodes)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("config: blocksize must be positive, got %d", c.BlockSize)
	}
	if c.Wallets < 0 || c.Transactions < 0 {
		return fmt.Errorf("config: wallets and transactions must be non-negative")
	}
	if c.PrintInterval <= 0 {
		c.PrintInterval = 144
	}
	if c.Difficulty == 0 {
		c.Difficulty = c.BaselineDifficulty()
	}
	return nil
}

// BlocksForYears converts a duration in years into a block-count target for
// the configured block time.
func (c *SimulationConfig) BlocksForYears(years float64) int {
	return int(SecondsPerYear / c.BlockTime * years)
}
