package blockchain

import "time"

// NetworkStats aggregates block propagation accounting for one run. The
// propagation-time average is maintained incrementally, never recomputed from
// scratch. Callers serialize access; the owning component holds the lock.
type NetworkStats struct {
	TotalBlocksPropagated       int     `json:"total_blocks_propagated"`
	TotalTransactionsPropagated int     `json:"total_transactions_propagated"`
	TotalNetworkData            int     `json:"total_network_data"`
	TotalIORequests             int     `json:"total_io_requests"`
	AveragePropagationTime      float64 `json:"average_propagation_time"`
}

// RecordPropagation accounts one block delivery hop of the given size and
// propagation time, folding the time into the running mean.
func (s *NetworkStats) RecordPropagation(blockSize int, propagationTime float64) {
	s.TotalBlocksPropagated++
	s.TotalNetworkData += blockSize
	s.TotalIORequests++

	if s.TotalBlocksPropagated == 1 {
		s.AveragePropagationTime = propagationTime
		return
	}
	n := float64(s.TotalBlocksPropagated)
	s.AveragePropagationTime = (s.AveragePropagationTime*(n-1) + propagationTime) / n
}

// RecordTransaction accounts one transaction broadcast.
func (s *NetworkStats) RecordTransaction() {
	s.TotalTransactionsPropagated++
}

// MiningStats aggregates mining accounting for one run.
type MiningStats struct {
	TotalBlocksMined  int            `json:"total_blocks_mined"`
	TotalMiningTime   float64        `json:"total_mining_time"`
	AverageMiningTime float64        `json:"average_mining_time"`
	CurrentDifficulty float64        `json:"current_difficulty"`
	TotalHashrate     float64        `json:"total_hashrate"`
	BlocksPerMiner    map[string]int `json:"blocks_per_miner"`
}

// RecordBlock accounts one mined block for the given miner.
func (s *MiningStats) RecordBlock(minerID string, miningTime, difficulty float64) {
	s.TotalBlocksMined++
	s.TotalMiningTime += miningTime
	s.CurrentDifficulty = difficulty

	if s.BlocksPerMiner == nil {
		s.BlocksPerMiner = make(map[string]int)
	}
	s.BlocksPerMiner[minerID]++

	s.AverageMiningTime = s.TotalMiningTime / float64(s.TotalBlocksMined)
}

// SimulationStats is the top-level aggregate for one simulation run. Wall
// clock timestamps bracket the run; throughput figures use the wall duration.
type SimulationStats struct {
	StartTime         time.Time    `json:"start_time"`
	EndTime           time.Time    `json:"end_time"`
	TotalBlocks       int          `json:"total_blocks"`
	TotalTransactions int          `json:"total_transactions"`
	TotalCoins        float64      `json:"total_coins"`
	Network           NetworkStats `json:"network_stats"`
	Mining            MiningStats  `json:"mining_stats"`
}

// NewSimulationStats stamps the start of a run.
func NewSimulationStats() *SimulationStats {
	return &SimulationStats{StartTime: time.Now()}
}

// Finish stamps the end of the run.
func (s *SimulationStats) Finish() {
	s.EndTime = time.Now()
}

// Duration returns the wall-clock duration of the run so far.
func (s *SimulationStats) Duration() float64 {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime).Seconds()
	}
	return time.Since(s.StartTime).Seconds()
}

// TransactionsPerSecond returns processed transactions per wall-clock second.
func (s *SimulationStats) TransactionsPerSecond() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return float64(s.TotalTransactions) / d
}

// BlocksPerSecond returns mined blocks per wall-clock second.
func (s *SimulationStats) BlocksPerSecond() float64 {
	d := s.Duration()
	if d <= 0 {
		return 0
	}
	return float64(s.TotalBlocks) / d
}
