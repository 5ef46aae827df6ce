package mining

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

// alwaysMine removes the probabilistic draw so tests drive block production
// deterministically.
type alwaysMine struct{}

func (alwaysMine) ShouldMine(elapsed, target float64, rng *rand.Rand) bool { return true }

func newTestEngine(t *testing.T, mutate func(*config.SimulationConfig)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Miners = 3
	cfg.BlockSize = 10
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize config: %v", err)
	}
	e := NewEngine(cfg, &blockchain.MiningStats{}, rand.New(rand.NewSource(42)), zap.NewNop())
	e.SetPolicy(alwaysMine{})
	e.ActivateMiners()
	return e
}

func mineOne(t *testing.T, e *Engine) *blockchain.Block {
	t.Helper()
	ev := e.AttemptBlock()
	if ev == nil {
		t.Fatal("attempt produced no block")
	}
	e.AdvanceTime(ev.Block.TimeSinceLast)
	return ev.Block
}

func TestSequentialBlockIDs(t *testing.T) {
	e := newTestEngine(t, nil)

	prevHash := "genesis"
	for i := 1; i <= 5; i++ {
		block := mineOne(t, e)
		if want := fmt.Sprintf("block_%d", i); block.BlockID != want {
			t.Fatalf("block id = %s, want %s", block.BlockID, want)
		}
		if block.PreviousHash != prevHash {
			t.Fatalf("block %d previous hash = %s, want %s", i, block.PreviousHash, prevHash)
		}
		prevHash = block.Hash
	}
	if e.BlockCount() != 5 {
		t.Fatalf("block count = %d, want 5", e.BlockCount())
	}
	if e.LastBlockHash() != prevHash {
		t.Fatalf("chain tip hash = %s, want %s", e.LastBlockHash(), prevHash)
	}
}

func TestAttemptWithoutActiveMiners(t *testing.T) {
	e := newTestEngine(t, nil)
	e.DeactivateMiners()
	if ev := e.AttemptBlock(); ev != nil {
		t.Fatalf("inactive miners produced block %s", ev.Block.BlockID)
	}
	if e.BlockCount() != 0 {
		t.Fatalf("block count = %d, want 0", e.BlockCount())
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	e := newTestEngine(t, nil)
	mined := mineOne(t, e)

	dup := blockchain.NewBlock(mined.BlockID, 1200, 600, nil, 50, mined.Hash, "miner_0", e.Difficulty())
	if err := e.Submit(dup); !errors.Is(err, ErrDuplicateBlock) {
		t.Fatalf("duplicate submit error = %v, want ErrDuplicateBlock", err)
	}
	if e.BlockCount() != 1 {
		t.Fatalf("rejected block was appended, count = %d", e.BlockCount())
	}
}

func TestSubmitRejectsOversize(t *testing.T) {
	e := newTestEngine(t, func(c *config.SimulationConfig) { c.BlockSize = 2 })

	txIDs := []string{"tx_0", "tx_1", "tx_2"}
	big := blockchain.NewBlock("block_1", 600, 600, txIDs, 50, "genesis", "miner_0", e.Difficulty())
	if err := e.Submit(big); !errors.Is(err, ErrOversizeBlock) {
		t.Fatalf("oversize submit error = %v, want ErrOversizeBlock", err)
	}
}

func TestSubmitRejectsMissingIdentity(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.Submit(&blockchain.Block{Timestamp: 600}); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("identityless submit error = %v, want ErrMissingIdentity", err)
	}
}

func TestPoolFIFO(t *testing.T) {
	e := newTestEngine(t, func(c *config.SimulationConfig) { c.BlockSize = 2 })
	for i := 0; i < 5; i++ {
		e.AddTransaction(blockchain.NewTransaction(fmt.Sprintf("tx_%d", i), "wallet_0", "wallet_1", 1.0, 0.01, 0))
	}

	first := mineOne(t, e)
	if len(first.Transactions) != 2 || first.Transactions[0] != "tx_0" || first.Transactions[1] != "tx_1" {
		t.Fatalf("first block transactions = %v, want [tx_0 tx_1]", first.Transactions)
	}
	if e.PendingCount() != 3 {
		t.Fatalf("pool after first block = %d, want 3", e.PendingCount())
	}

	second := mineOne(t, e)
	if second.Transactions[0] != "tx_2" || second.Transactions[1] != "tx_3" {
		t.Fatalf("second block transactions = %v, want [tx_2 tx_3]", second.Transactions)
	}

	third := mineOne(t, e)
	if len(third.Transactions) != 1 || third.Transactions[0] != "tx_4" {
		t.Fatalf("third block transactions = %v, want [tx_4]", third.Transactions)
	}
	if e.PendingCount() != 0 {
		t.Fatalf("pool not drained, %d left", e.PendingCount())
	}
}

func TestBlockEventCarriesTransactions(t *testing.T) {
	e := newTestEngine(t, nil)
	tx := blockchain.NewTransaction("tx_0", "wallet_0", "wallet_1", 1.0, 0.01, 0)
	e.AddTransaction(tx)

	var fromCallback []*blockchain.Transaction
	e.SetBlockCallback(func(ev BlockEvent) { fromCallback = ev.Transactions })

	ev := e.AttemptBlock()
	if ev == nil {
		t.Fatal("attempt produced no block")
	}
	if len(ev.Transactions) != 1 || ev.Transactions[0] != tx {
		t.Fatalf("event transactions = %v", ev.Transactions)
	}
	if len(fromCallback) != 1 || fromCallback[0] != tx {
		t.Fatalf("callback transactions = %v", fromCallback)
	}
}

func TestCallbackPanicIsRecovered(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SetBlockCallback(func(BlockEvent) { panic("observer bug") })

	if ev := e.AttemptBlock(); ev == nil {
		t.Fatal("panicking callback aborted block production")
	}
	if e.BlockCount() != 1 {
		t.Fatalf("block count = %d, want 1", e.BlockCount())
	}
}

func TestRewardHalving(t *testing.T) {
	e := newTestEngine(t, func(c *config.SimulationConfig) {
		c.Halving = 3
		c.Reward = 40
	})

	for i := 1; i <= 3; i++ {
		block := mineOne(t, e)
		if block.MinerReward != 40 {
			t.Fatalf("block %d reward = %g, want 40", i, block.MinerReward)
		}
	}
	if e.Reward() != 20 {
		t.Fatalf("reward after first halving = %g, want 20", e.Reward())
	}

	for i := 4; i <= 6; i++ {
		block := mineOne(t, e)
		if block.MinerReward != 20 {
			t.Fatalf("block %d reward = %g, want 20", i, block.MinerReward)
		}
	}
	if e.Reward() != 10 {
		t.Fatalf("reward after second halving = %g, want 10", e.Reward())
	}
}

func TestNoHalvingWhenDisabled(t *testing.T) {
	e := newTestEngine(t, func(c *config.SimulationConfig) {
		c.Halving = 0
		c.Reward = 10000
	})
	for i := 0; i < 5; i++ {
		mineOne(t, e)
	}
	if e.Reward() != 10000 {
		t.Fatalf("static reward drifted to %g", e.Reward())
	}
}

func TestDifficultyRetargetAfterWindow(t *testing.T) {
	e := newTestEngine(t, nil)
	initial := e.Difficulty()

	for i := 0; i < config.DifficultyAdjustmentBlocks-1; i++ {
		mineOne(t, e)
	}
	if e.Difficulty() != initial {
		t.Fatalf("difficulty moved before the window closed: %g", e.Difficulty())
	}

	mineOne(t, e)
	next := e.Difficulty()
	if next == initial {
		t.Fatal("difficulty unchanged after a full adjustment window")
	}
	tuning := config.DefaultMiningTuning
	ratio := next / initial
	if ratio < tuning.MinAdjustment || ratio > tuning.MaxAdjustment {
		t.Fatalf("retarget ratio %g outside [%g, %g]", ratio, tuning.MinAdjustment, tuning.MaxAdjustment)
	}
}

func TestPerMinerStatsRecorded(t *testing.T) {
	cfg := config.Default()
	cfg.Miners = 2
	cfg.BlockSize = 10
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize config: %v", err)
	}
	stats := &blockchain.MiningStats{}
	e := NewEngine(cfg, stats, rand.New(rand.NewSource(9)), zap.NewNop())
	e.SetPolicy(alwaysMine{})
	e.ActivateMiners()

	for i := 0; i < 6; i++ {
		mineOne(t, e)
	}

	var mined int
	for _, m := range e.Miners() {
		mined += m.BlocksMined
		if m.BlocksMined > 0 && m.TotalMiningTime <= 0 {
			t.Fatalf("%s mined %d blocks with no mining time", m.MinerID, m.BlocksMined)
		}
	}
	if mined != 6 {
		t.Fatalf("per-miner block counts sum to %d, want 6", mined)
	}

	var recorded int
	for _, n := range stats.BlocksPerMiner {
		recorded += n
	}
	if recorded != 6 || stats.TotalBlocksMined != 6 {
		t.Fatalf("aggregate stats: per-miner %d, total %d, want 6/6", recorded, stats.TotalBlocksMined)
	}
}

func TestMinerJoinLeave(t *testing.T) {
	e := newTestEngine(t, nil)
	before := len(e.Miners())

	m := e.AddMiner(5000)
	if !m.Active {
		t.Fatal("joined miner not active")
	}
	if len(e.Miners()) != before+1 {
		t.Fatalf("miner count = %d, want %d", len(e.Miners()), before+1)
	}

	if !e.RemoveMiner(m.MinerID) {
		t.Fatalf("failed to remove %s", m.MinerID)
	}
	if e.RemoveMiner("miner_unknown") {
		t.Fatal("removed a miner that does not exist")
	}
	if len(e.Miners()) != before {
		t.Fatalf("miner count = %d, want %d", len(e.Miners()), before)
	}
}

func TestHashrateVarianceBand(t *testing.T) {
	e := newTestEngine(t, nil) // 3 miners, nominal 1000, variance 0.1
	for _, m := range e.Miners() {
		if m.ActualHashrate < 900 || m.ActualHashrate > 1100 {
			t.Fatalf("miner %s actual hashrate %g outside variance band", m.MinerID, m.ActualHashrate)
		}
	}
	total := e.TotalHashrate()
	if total < 2700 || total > 3300 {
		t.Fatalf("total hashrate %g outside expected band", total)
	}
}

func TestMiningTimeBounds(t *testing.T) {
	e := newTestEngine(t, nil) // 600s target
	for i := 0; i < 50; i++ {
		block := mineOne(t, e)
		if block.TimeSinceLast < 480 || block.TimeSinceLast > 720 {
			t.Fatalf("block interval %g outside [480, 720]", block.TimeSinceLast)
		}
	}
}
