// Package mining owns the shared chain state: the block list, difficulty,
// reward schedule and the pending transaction pool. All mutation is
// serialized by a single engine lock so submissions are atomic with respect
// to concurrent pool access.
package mining

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dominant-strategies/go-quai/event"
	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

// Validation failures. An invalid block is rejected and never added; the
// engine does not retry, the calling miner simply tries again next cycle.
var (
	ErrMissingIdentity = errors.New("mining: block missing id or hash")
	ErrDuplicateBlock  = errors.New("mining: duplicate block id")
	ErrOversizeBlock   = errors.New("mining: transaction count exceeds block size")
	ErrNoActiveMiners  = errors.New("mining: no active miners")
)

// BlockEvent pairs an appended block with the transaction objects it
// confirmed, so downstream consumers can credit recipients without a pool
// lookup.
type BlockEvent struct {
	Block        *blockchain.Block
	Transactions []*blockchain.Transaction
}

// Engine coordinates mining across all miners: block production attempts,
// validation, difficulty retargeting and reward halving.
type Engine struct {
	cfg    config.SimulationConfig
	stats  *blockchain.MiningStats
	log    *zap.Logger
	policy Policy

	mu            sync.Mutex
	rng           *rand.Rand
	miners        []*Miner
	blocks        []*blockchain.Block
	pool          []*blockchain.Transaction
	blockIDs      map[string]struct{}
	pendingTxs    map[string][]*blockchain.Transaction
	difficulty    float64
	reward        float64
	halvings      int
	simTime       float64
	lastBlockTime float64
	lastBlockHash string
	blockCounter  int

	callback func(BlockEvent)
	feed     event.Feed
}

// NewEngine creates the engine and its miners. Difficulty and reward start
// from the configuration; the previous hash of the first block is "genesis".
func NewEngine(cfg config.SimulationConfig, stats *blockchain.MiningStats, rng *rand.Rand, log *zap.Logger) *Engine {
	e := &Engine{
		cfg:           cfg,
		stats:         stats,
		log:           log,
		policy:        DefaultPolicy(),
		rng:           rng,
		blockIDs:      make(map[string]struct{}),
		pendingTxs:    make(map[string][]*blockchain.Transaction),
		difficulty:    cfg.Difficulty,
		reward:        cfg.Reward,
		lastBlockHash: "genesis",
	}
	for i := 0; i < cfg.Miners; i++ {
		e.miners = append(e.miners, NewMiner(fmt.Sprintf("miner_%d", i), cfg.Hashrate, cfg.Mining.HashrateVariance, rng))
	}
	log.Info("mining engine initialized",
		zap.Int("miners", len(e.miners)),
		zap.Float64("difficulty", e.difficulty))
	return e
}

// SetPolicy replaces the block-production decision policy.
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// SetBlockCallback registers the function invoked with every appended block.
// A panicking callback is recovered and logged; it never aborts the run.
func (e *Engine) SetBlockCallback(cb func(BlockEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callback = cb
}

// SubscribeBlocks subscribes an external observer channel to appended blocks.
func (e *Engine) SubscribeBlocks(ch chan<- BlockEvent) event.Subscription {
	return e.feed.Subscribe(ch)
}

// AttemptBlock runs one block-production attempt. The policy decides on the
// elapsed simulated time since the last block; on a successful draw a
// uniformly random active miner assembles a block from up to blocksize pooled
// transactions (fewer when the pool is short, zero yields an empty block) and
// submits it. Returns nil when no block was produced this cycle.
func (e *Engine) AttemptBlock() *BlockEvent {
	e.mu.Lock()

	elapsed := e.cfg.BlockTime // first block is treated as one full target
	if len(e.blocks) > 0 {
		elapsed = e.simTime - e.lastBlockTime
	}
	if !e.policy.ShouldMine(elapsed, e.cfg.BlockTime, e.rng) {
		e.mu.Unlock()
		return nil
	}

	miner, err := e.pickActiveMinerLocked()
	if err != nil {
		e.mu.Unlock()
		return nil
	}

	txs := e.dequeueLocked(e.cfg.BlockSize)
	txIDs := make([]string, len(txs))
	for i, tx := range txs {
		txIDs[i] = tx.TxID
	}

	miningTime := e.drawMiningTimeLocked()
	e.blockCounter++
	blockID := fmt.Sprintf("block_%d", e.blockCounter)

	block := blockchain.NewBlock(blockID, e.simTime+miningTime, miningTime,
		txIDs, e.reward, e.lastBlockHash, miner.MinerID, e.difficulty)
	e.pendingTxs[blockID] = txs
	e.mu.Unlock()

	ev, err := e.submit(block)
	if err != nil {
		e.log.Warn("mined block rejected", zap.String("block", blockID), zap.Error(err))
		return nil
	}
	return ev
}

// Submit validates and appends an externally assembled block. It returns a
// validation error and leaves the chain untouched when the block is invalid.
func (e *Engine) Submit(block *blockchain.Block) error {
	_, err := e.submit(block)
	return err
}

func (e *Engine) submit(block *blockchain.Block) (*BlockEvent, error) {
	e.mu.Lock()

	if err := e.validateLocked(block); err != nil {
		delete(e.pendingTxs, block.BlockID)
		e.mu.Unlock()
		return nil, err
	}

	e.blocks = append(e.blocks, block)
	e.blockIDs[block.BlockID] = struct{}{}
	e.lastBlockTime = block.Timestamp
	e.lastBlockHash = block.Hash

	if miner := e.minerByIDLocked(block.MinerID); miner != nil {
		miner.recordBlock(block.TimeSinceLast)
	}
	e.stats.RecordBlock(block.MinerID, block.TimeSinceLast, e.difficulty)

	if len(e.blocks)%config.DifficultyAdjustmentBlocks == 0 {
		e.adjustDifficultyLocked()
	}
	if e.cfg.Halving > 0 && len(e.blocks)%e.cfg.Halving == 0 {
		e.halveRewardLocked()
	}

	txs := e.pendingTxs[block.BlockID]
	delete(e.pendingTxs, block.BlockID)
	ev := BlockEvent{Block: block, Transactions: txs}
	cb := e.callback
	e.mu.Unlock()

	if cb != nil {
		e.invokeCallback(cb, ev)
	}
	e.feed.Send(ev)
	return &ev, nil
}

func (e *Engine) invokeCallback(cb func(BlockEvent), ev BlockEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("block callback panicked",
				zap.String("block", ev.Block.BlockID), zap.Any("panic", r))
		}
	}()
	cb(ev)
}

func (e *Engine) validateLocked(block *blockchain.Block) error {
	if block.BlockID == "" || block.Hash == "" {
		return ErrMissingIdentity
	}
	if _, dup := e.blockIDs[block.BlockID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateBlock, block.BlockID)
	}
	if block.TransactionCount > e.cfg.BlockSize {
		return fmt.Errorf("%w: %d > %d", ErrOversizeBlock, block.TransactionCount, e.cfg.BlockSize)
	}
	return nil
}

func (e *Engine) pickActiveMinerLocked() (*Miner, error) {
	active := make([]*Miner, 0, len(e.miners))
	for _, m := range e.miners {
		if m.Active {
			active = append(active, m)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActiveMiners
	}
	return active[e.rng.Intn(len(active))], nil
}

func (e *Engine) minerByIDLocked(minerID string) *Miner {
	for _, m := range e.miners {
		if m.MinerID == minerID {
			return m
		}
	}
	return nil
}

// drawMiningTimeLocked stamps the block interval as a randomized value in
// [0.8x, 1.2x] of the target, clamped to [1, 2x target].
func (e *Engine) drawMiningTimeLocked() float64 {
	target := e.cfg.BlockTime
	t := target * (0.8 + e.rng.Float64()*0.4)
	if t < 1 {
		t = 1
	}
	if t > 2*target {
		t = 2 * target
	}
	return t
}

func (e *Engine) adjustDifficultyLocked() {
	window := e.blocks[len(e.blocks)-config.DifficultyAdjustmentBlocks:]
	times := make([]float64, len(window))
	for i, b := range window {
		times[i] = b.TimeSinceLast
	}

	old := e.difficulty
	next, change := retarget(e.difficulty, e.cfg.BlockTime, times, e.cfg.BaselineDifficulty(), e.cfg.Mining)
	e.difficulty = next
	e.log.Info("difficulty adjusted",
		zap.Float64("old", old),
		zap.Float64("new", e.difficulty),
		zap.Float64("change", change))
}

func (e *Engine) halveRewardLocked() {
	if e.halvings >= config.MaxHalvings {
		return
	}
	old := e.reward
	e.reward /= 2
	e.halvings++
	if e.reward < config.MinRewardThreshold {
		e.reward = 0
	}
	e.log.Info("block reward halved", zap.Float64("old", old), zap.Float64("new", e.reward))
}

// AddTransaction appends a pending transaction to the tail of the pool.
func (e *Engine) AddTransaction(tx *blockchain.Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool = append(e.pool, tx)
}

// dequeueLocked pops up to n transactions from the head of the pool, strict
// FIFO, fewer when the pool is shorter.
func (e *Engine) dequeueLocked(n int) []*blockchain.Transaction {
	if n > len(e.pool) {
		n = len(e.pool)
	}
	if n == 0 {
		return nil
	}
	txs := make([]*blockchain.Transaction, n)
	copy(txs, e.pool[:n])
	e.pool = e.pool[n:]
	return txs
}

// TransactionByID looks up a pending transaction by ID.
func (e *Engine) TransactionByID(txID string) *blockchain.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tx := range e.pool {
		if tx.TxID == txID {
			return tx
		}
	}
	return nil
}

// PendingCount returns the size of the pending pool.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pool)
}

// AdvanceTime moves simulated time forward by elapsed seconds. Simulated time
// is an explicit accumulator decoupled from the wall clock.
func (e *Engine) AdvanceTime(elapsed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.simTime += elapsed
}

// SimTime returns the current simulated time in seconds.
func (e *Engine) SimTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.simTime
}

// ActivateMiners marks every miner active.
func (e *Engine) ActivateMiners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.miners {
		m.Active = true
	}
}

// DeactivateMiners marks every miner inactive.
func (e *Engine) DeactivateMiners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range e.miners {
		m.Active = false
	}
}

// AddMiner joins a new miner to the network mid-run.
func (e *Engine) AddMiner(hashrate float64) *Miner {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := NewMiner(fmt.Sprintf("miner_%d", len(e.miners)), hashrate, e.cfg.Mining.HashrateVariance, e.rng)
	m.Active = true
	e.miners = append(e.miners, m)
	e.log.Info("miner joined", zap.String("miner", m.MinerID), zap.Float64("hashrate", hashrate))
	return m
}

// RemoveMiner removes a miner from the network mid-run.
func (e *Engine) RemoveMiner(minerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, m := range e.miners {
		if m.MinerID == minerID {
			m.Active = false
			e.miners = append(e.miners[:i], e.miners[i+1:]...)
			e.log.Info("miner left", zap.String("miner", minerID))
			return true
		}
	}
	return false
}

// BlockCount returns the chain height.
func (e *Engine) BlockCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blocks)
}

// Blocks returns a copy of the chain.
func (e *Engine) Blocks() []*blockchain.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*blockchain.Block, len(e.blocks))
	copy(out, e.blocks)
	return out
}

// RecentBlocks returns up to the last n blocks.
func (e *Engine) RecentBlocks(n int) []*blockchain.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > len(e.blocks) {
		n = len(e.blocks)
	}
	out := make([]*blockchain.Block, n)
	copy(out, e.blocks[len(e.blocks)-n:])
	return out
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.difficulty
}

// Reward returns the current block reward.
func (e *Engine) Reward() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reward
}

// LastBlockHash returns the hash of the chain tip, "genesis" before the
// first block.
func (e *Engine) LastBlockHash() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastBlockHash
}

// TotalHashrate sums the actual hashrate of all miners.
func (e *Engine) TotalHashrate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total float64
	for _, m := range e.miners {
		total += m.ActualHashrate
	}
	return total
}

// MiningStats returns a copy of the aggregate mining stats, safe to read and
// marshal while mining continues.
func (e *Engine) MiningStats() blockchain.MiningStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := *e.stats
	out.BlocksPerMiner = make(map[string]int, len(e.stats.BlocksPerMiner))
	for id, n := range e.stats.BlocksPerMiner {
		out.BlocksPerMiner[id] = n
	}
	return out
}

// Miners returns a copy of the miner roster.
func (e *Engine) Miners() []Miner {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Miner, len(e.miners))
	for i, m := range e.miners {
		out[i] = *m
	}
	return out
}
