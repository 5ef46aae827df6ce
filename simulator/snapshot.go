package simulator

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
	"github.com/cryptoecon/chainsim/mining"
	"github.com/cryptoecon/chainsim/network"
	"github.com/cryptoecon/chainsim/wallet"
)

// Snapshot is the full result view of a run, suitable for JSON export.
type Snapshot struct {
	Config  config.SimulationConfig `json:"config"`
	Stats   snapshotStats           `json:"stats"`
	Network network.TopologyStats   `json:"network_stats"`
	Miners  []mining.Miner          `json:"miners"`
	Wallets wallet.LedgerStats      `json:"wallet_stats"`
	Fees    wallet.FeeStatistics    `json:"fee_stats"`
	Richest []wallet.WalletSnapshot `json:"richest_wallets"`
}

type snapshotStats struct {
	State         string                     `json:"state"`
	SimulatedTime float64                    `json:"simulated_time"`
	Difficulty    float64                    `json:"difficulty"`
	Reward        float64                    `json:"reward"`
	PendingPool   int                        `json:"pending_pool"`
	Simulation    blockchain.SimulationStats `json:"simulation"`
}

// Snapshot assembles the current result view as a detached copy: every field
// is read under its owning lock, so snapshots are safe to marshal while the
// run is still mutating state.
func (s *Simulator) Snapshot() Snapshot {
	return Snapshot{
		Config: s.cfg,
		Stats: snapshotStats{
			State:         s.State().String(),
			SimulatedTime: s.engine.SimTime(),
			Difficulty:    s.engine.Difficulty(),
			Reward:        s.engine.Reward(),
			PendingPool:   s.engine.PendingCount(),
			Simulation:    s.statsCopy(),
		},
		Network: s.topology.Stats(),
		Miners:  s.engine.Miners(),
		Wallets: s.ledger.Stats(),
		Fees:    s.ledger.FeeStats(),
		Richest: s.ledger.RichestWallets(10),
	}
}

// ExportJSON writes the snapshot to a file as indented JSON.
func (s *Simulator) ExportJSON(path string) error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("simulator: encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("simulator: write %s: %w", path, err)
	}
	s.log.Info("results exported", zap.String("path", path))
	return nil
}
