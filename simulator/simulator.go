// Package simulator orchestrates a run: it wires the mining engine, network
// topology and wallet ledger together, drives the time-stepped main loop and
// emits the periodic report lines.
package simulator

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dominant-strategies/go-quai/event"
	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
	"github.com/cryptoecon/chainsim/mining"
	"github.com/cryptoecon/chainsim/network"
	"github.com/cryptoecon/chainsim/trace"
	"github.com/cryptoecon/chainsim/wallet"
)

const (
	// idleAdvance is how far simulated time jumps when an attempt produces
	// no block, so sparse chains do not grind through empty iterations.
	idleAdvance = 300.0

	// conditionsRefreshInterval is the simulated-time cadence at which
	// congestion and block utilization are re-derived.
	conditionsRefreshInterval = 600.0

	// defaultBlockTarget stands in for the block target in ETA math when no
	// explicit block limit is configured.
	defaultBlockTarget = 525600
)

// State is the lifecycle state of a simulator.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Simulator drives one simulation run end to end.
type Simulator struct {
	cfg      config.SimulationConfig
	log      *zap.Logger
	engine   *mining.Engine
	topology *network.Topology
	ledger   *wallet.Ledger
	stats    *blockchain.SimulationStats

	state    atomic.Int32
	running  atomic.Bool
	stopOnce sync.Once

	mu               sync.Mutex
	blocksMined      int
	totalCoins       float64
	totalTxs         int
	lastConditionsAt float64
	traceTxs         []*blockchain.Transaction

	reportFeed event.Feed
	out        io.Writer
}

// New wires a simulator from a finalized configuration. A zero seed derives
// one from the clock; any other value makes the run reproducible.
func New(cfg config.SimulationConfig, log *zap.Logger) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	stats := blockchain.NewSimulationStats()
	s := &Simulator{
		cfg:      cfg,
		log:      log,
		stats:    stats,
		engine:   mining.NewEngine(cfg, &stats.Mining, rng, log),
		topology: network.NewTopology(cfg.Nodes, cfg.Neighbors, cfg.Network, &stats.Network, rng, log),
		ledger:   wallet.NewLedger(cfg.Wallets, cfg.Transactions, cfg.Interval, wallet.NewFeeModel(cfg.Fees), rng, log),
		out:      os.Stdout,
	}
	s.engine.SetBlockCallback(s.onBlockMined)
	return s
}

// SetOutput redirects the report lines, stdout by default.
func (s *Simulator) SetOutput(w io.Writer) {
	s.out = w
}

// SubscribeReports subscribes an observer channel to report lines.
func (s *Simulator) SubscribeReports(ch chan<- string) event.Subscription {
	return s.reportFeed.Subscribe(ch)
}

// Engine exposes the mining engine for read access.
func (s *Simulator) Engine() *mining.Engine {
	return s.engine
}

// Ledger exposes the wallet ledger for read access.
func (s *Simulator) Ledger() *wallet.Ledger {
	return s.ledger
}

// State returns the simulator lifecycle state.
func (s *Simulator) State() State {
	return State(s.state.Load())
}

// LoadTrace reads a trace file (.json or .csv) whose transactions are
// injected into the pool ahead of the synthetic workload when the run starts.
func (s *Simulator) LoadTrace(path string) error {
	var (
		records []trace.Record
		err     error
	)
	if strings.HasSuffix(path, ".csv") {
		records, err = trace.LoadCSV(path)
	} else {
		records, err = trace.LoadJSON(path)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.traceTxs = trace.Transactions(records)
	s.mu.Unlock()

	s.log.Info("trace loaded", zap.String("path", path), zap.Int("transactions", len(records)))
	return nil
}

// Run executes the simulation to completion: the whole workload is generated
// and pooled first, then the miners are activated and the main loop runs
// until a termination condition holds. Run returns after the final summary
// is printed.
func (s *Simulator) Run() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("simulator: run already started (state %s)", s.State())
	}
	s.running.Store(true)
	s.log.Info("simulation starting")

	s.mu.Lock()
	traceTxs := s.traceTxs
	s.mu.Unlock()
	for _, tx := range traceTxs {
		s.submitTransaction(tx)
	}

	if s.cfg.Wallets > 0 && s.cfg.Transactions > 0 {
		generated := s.ledger.GenerateWorkload(s.submitTransaction)
		pooled := s.engine.PendingCount()
		if pooled != generated+len(traceTxs) {
			s.log.Error("pool size mismatch after generation",
				zap.Int("expected", generated+len(traceTxs)),
				zap.Int("pooled", pooled))
		}
		s.log.Info("transaction generation complete", zap.Int("pool", pooled))
	}

	s.engine.ActivateMiners()
	s.loop()
	return nil
}

// Stop halts the run. Safe to call from any goroutine and more than once.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		s.state.Store(int32(StateStopped))
		s.engine.DeactivateMiners()
		s.mu.Lock()
		s.stats.Finish()
		s.mu.Unlock()
		s.log.Info("simulation stopped")
	})
}

func (s *Simulator) loop() {
	defer func() {
		s.Stop()
		s.printFinalSummary()
	}()

	for s.running.Load() {
		if s.shouldTerminate() {
			return
		}

		if ev := s.engine.AttemptBlock(); ev != nil {
			s.engine.AdvanceTime(ev.Block.TimeSinceLast)
			s.recordBlock(ev.Block)
			if s.blockCount()%s.cfg.PrintInterval == 0 {
				s.emitReport(s.summaryLine())
			}
		} else {
			s.engine.AdvanceTime(idleAdvance)
		}

		s.maybeRefreshConditions()
	}
}

// submitTransaction pools a transaction for mining and announces it to the
// network.
func (s *Simulator) submitTransaction(tx *blockchain.Transaction) {
	s.engine.AddTransaction(tx)
	s.topology.BroadcastTransaction(tx)
}

// onBlockMined is the engine callback: flood the block from a random origin,
// credit the confirmed recipients and pay the coinbase reward.
func (s *Simulator) onBlockMined(ev mining.BlockEvent) {
	if origin := s.topology.RandomNode(); origin != nil {
		s.topology.BroadcastBlock(ev.Block, origin.NodeID)
	}
	for _, tx := range ev.Transactions {
		s.ledger.Confirm(tx)
	}
	s.ledger.AddMiningReward(ev.Block.MinerID, ev.Block.MinerReward)
}

func (s *Simulator) recordBlock(block *blockchain.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocksMined++
	s.totalCoins += block.MinerReward
	s.totalTxs += block.TransactionCount
	s.stats.TotalBlocks = s.blocksMined
	s.stats.TotalTransactions = s.totalTxs
	s.stats.TotalCoins = s.totalCoins
}

func (s *Simulator) blockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocksMined
}

func (s *Simulator) shouldTerminate() bool {
	pending := s.engine.PendingCount()
	mined := s.blockCount()

	if s.cfg.Wallets > 0 && s.cfg.Wallets*s.cfg.Transactions > 0 &&
		pending == 0 && mined > 0 {
		s.log.Info("all transactions processed",
			zap.Int("blocks", mined))
		return true
	}
	if s.cfg.Blocks > 0 && mined >= s.cfg.Blocks {
		s.log.Info("target block count reached", zap.Int("blocks", mined))
		return true
	}
	return false
}

// maybeRefreshConditions re-derives congestion from pool depth and block
// utilization from the last ten blocks, on a fixed simulated-time cadence.
func (s *Simulator) maybeRefreshConditions() {
	simTime := s.engine.SimTime()

	s.mu.Lock()
	due := simTime-s.lastConditionsAt >= conditionsRefreshInterval
	if due {
		s.lastConditionsAt = simTime
	}
	s.mu.Unlock()
	if !due {
		return
	}

	var congestion float64
	if s.cfg.BlockSize > 0 {
		congestion = float64(s.engine.PendingCount()) / float64(2*s.cfg.BlockSize)
		if congestion > 1 {
			congestion = 1
		}
	}

	utilization := 0.5
	if recent := s.engine.RecentBlocks(10); len(recent) > 0 && s.cfg.BlockSize > 0 {
		var txCount int
		for _, b := range recent {
			txCount += b.TransactionCount
		}
		utilization = float64(txCount) / float64(len(recent)) / float64(s.cfg.BlockSize)
		if utilization > 1 {
			utilization = 1
		}
	}

	s.ledger.UpdateNetworkConditions(congestion, utilization)
	s.log.Debug("network conditions refreshed",
		zap.Float64("congestion", congestion),
		zap.Float64("utilization", utilization))
}

func (s *Simulator) emitReport(line string) {
	fmt.Fprintln(s.out, line)
	s.reportFeed.Send(line)
}

// summaryLine renders the periodic compact report.
func (s *Simulator) summaryLine() string {
	simTime := s.engine.SimTime()
	s.mu.Lock()
	mined, totalTxs, totalCoins := s.blocksMined, s.totalTxs, s.totalCoins
	s.mu.Unlock()

	abt := averageBlockTime(simTime, mined)
	tps := throughput(totalTxs, simTime)
	pending := s.engine.PendingCount()

	target := s.cfg.Blocks
	pctDen := target
	if pctDen == 0 {
		pctDen = 1
	}
	pct := float64(mined) / float64(pctDen) * 100

	return fmt.Sprintf("[%.2f] Sum B:%d/%d %.1f%% abt:%.2fs tps:%.2f infl:%.2f%% ETA:%.2fs Diff:%.1fB H:%.0fM Tx:%d C:%s Pool:%d NMB:%.2f IO:%d",
		simTime, mined, target, pct, abt, tps,
		s.inflation(mined, totalCoins),
		s.eta(pending, tps, mined, abt),
		s.engine.Difficulty()/1e9,
		s.engine.TotalHashrate()/1e6,
		totalTxs, formatNumber(totalCoins), pending,
		s.networkMegabytes(),
		s.topology.Stats().CumulativeIO)
}

// printFinalSummary renders the end-of-run report, same shape as the periodic
// line but with no ETA and the progress pinned at 100%.
func (s *Simulator) printFinalSummary() {
	simTime := s.engine.SimTime()
	s.mu.Lock()
	mined, totalTxs, totalCoins := s.blocksMined, s.totalTxs, s.totalCoins
	s.mu.Unlock()

	line := fmt.Sprintf("[******] End B:%d/%d 100.0%% abt:%.2fs tps:%.2f infl:%.2f%% Diff:%.1fB H:%.0fM Tx:%d C:%s Pool:%d NMB:%.2f IO:%d",
		mined, s.cfg.Blocks,
		averageBlockTime(simTime, mined),
		throughput(totalTxs, simTime),
		s.inflation(mined, totalCoins),
		s.engine.Difficulty()/1e9,
		s.engine.TotalHashrate()/1e6,
		totalTxs, formatNumber(totalCoins),
		s.engine.PendingCount(),
		s.networkMegabytes(),
		s.topology.Stats().CumulativeIO)
	s.emitReport(line)
}

// inflation is the annualized issuance against circulating supply. The first
// block reports zero.
func (s *Simulator) inflation(mined int, totalCoins float64) float64 {
	if mined <= 1 {
		return 0
	}
	blocksPerYear := float64(config.SecondsPerYear) / s.cfg.BlockTime
	supply := totalCoins
	if supply < 1 {
		supply = 1
	}
	return s.engine.Reward() * blocksPerYear / supply * 100
}

// eta estimates remaining simulated seconds: pool drain at the current
// throughput when transactions are pending, otherwise remaining blocks at the
// average block time.
func (s *Simulator) eta(pending int, tps float64, mined int, abt float64) float64 {
	if pending > 0 && tps > 0 {
		return float64(pending) / tps
	}
	if s.cfg.Wallets > 0 && s.cfg.Wallets*s.cfg.Transactions > 0 && mined > 0 {
		return 0
	}
	target := s.cfg.Blocks
	if target == 0 {
		target = defaultBlockTarget
	}
	if remaining := target - mined; remaining > 0 && abt > 0 {
		return float64(remaining) * abt
	}
	return 0
}

func (s *Simulator) networkMegabytes() float64 {
	return float64(s.topology.NetworkStats().TotalNetworkData) / (1024 * 1024)
}

// statsCopy assembles a detached copy of the run stats. Scalar fields are read
// under the simulator lock; the nested stat records are copied by the
// components that own their locks.
func (s *Simulator) statsCopy() blockchain.SimulationStats {
	s.mu.Lock()
	out := blockchain.SimulationStats{
		StartTime:         s.stats.StartTime,
		EndTime:           s.stats.EndTime,
		TotalBlocks:       s.stats.TotalBlocks,
		TotalTransactions: s.stats.TotalTransactions,
		TotalCoins:        s.stats.TotalCoins,
	}
	s.mu.Unlock()

	out.Network = s.topology.NetworkStats()
	out.Mining = s.engine.MiningStats()
	return out
}

func averageBlockTime(simTime float64, mined int) float64 {
	if mined > 1 {
		return simTime / float64(mined)
	}
	return simTime
}

func throughput(totalTxs int, simTime float64) float64 {
	if totalTxs == 0 || simTime <= 0 {
		return 0
	}
	return float64(totalTxs) / simTime
}

// formatNumber renders coin totals compactly, thousands as K.
func formatNumber(num float64) string {
	if num >= 1000 {
		return fmt.Sprintf("%.0fK", num/1000)
	}
	return strconv.FormatFloat(num, 'f', -1, 64)
}
