package blockchain

import "testing"

func TestBlockHashDeterministic(t *testing.T) {
	a := NewBlock("block_1", 612.5, 612.5, []string{"tx_0", "tx_1"}, 50, "genesis", "miner_0", 3e6)
	b := NewBlock("block_1", 612.5, 612.5, []string{"tx_0", "tx_1"}, 50, "genesis", "miner_0", 3e6)

	if a.Hash == "" {
		t.Fatal("hash not computed at construction")
	}
	if a.Hash != b.Hash {
		t.Fatalf("identical blocks hash differently: %s vs %s", a.Hash, b.Hash)
	}
	if got := a.ComputeHash(); got != a.Hash {
		t.Fatalf("recomputed hash %s does not match stored %s", got, a.Hash)
	}
}

func TestBlockHashCoversIdentityFields(t *testing.T) {
	base := NewBlock("block_1", 612.5, 612.5, nil, 50, "genesis", "miner_0", 3e6)

	cases := []struct {
		name  string
		block *Block
	}{
		{"block id", NewBlock("block_2", 612.5, 612.5, nil, 50, "genesis", "miner_0", 3e6)},
		{"timestamp", NewBlock("block_1", 613.5, 612.5, nil, 50, "genesis", "miner_0", 3e6)},
		{"previous hash", NewBlock("block_1", 612.5, 612.5, nil, 50, "other", "miner_0", 3e6)},
		{"miner id", NewBlock("block_1", 612.5, 612.5, nil, 50, "genesis", "miner_1", 3e6)},
	}
	for _, tc := range cases {
		if tc.block.Hash == base.Hash {
			t.Errorf("changing %s did not change the hash", tc.name)
		}
	}
}

func TestBlockSizeAccounting(t *testing.T) {
	empty := NewBlock("block_1", 600, 600, nil, 50, "genesis", "miner_0", 1)
	if empty.Size != HeaderSize {
		t.Fatalf("empty block size = %d, want %d", empty.Size, HeaderSize)
	}
	if empty.TransactionCount != 0 {
		t.Fatalf("empty block transaction count = %d", empty.TransactionCount)
	}

	full := NewBlock("block_2", 600, 600, []string{"tx_0", "tx_1", "tx_2"}, 50, "genesis", "miner_0", 1)
	if want := HeaderSize + 3*TransactionSize; full.Size != want {
		t.Fatalf("block size = %d, want %d", full.Size, want)
	}
	if full.TransactionCount != 3 {
		t.Fatalf("transaction count = %d, want 3", full.TransactionCount)
	}
}

func TestTransactionHash(t *testing.T) {
	a := NewTransaction("tx_0", "wallet_0", "wallet_1", 1.0, 0.01, 0)
	b := NewTransaction("tx_0", "wallet_0", "wallet_1", 1.0, 0.01, 0)
	if a.Hash != b.Hash {
		t.Fatalf("identical transactions hash differently")
	}
	if a.Status != StatusPending || a.Priority != PriorityNormal {
		t.Fatalf("new transaction status=%s priority=%s", a.Status, a.Priority)
	}

	c := NewTransaction("tx_0", "wallet_0", "wallet_1", 2.0, 0.01, 0)
	if c.Hash == a.Hash {
		t.Fatal("changing amount did not change the hash")
	}

	a.Priority = PriorityUrgent
	if a.ComputeHash() == b.Hash {
		t.Fatal("changing priority did not change the hash")
	}
}

func TestWalletCreditDebit(t *testing.T) {
	w := NewWallet("wallet_0", 10)

	w.Credit(5)
	if w.Balance != 15 || w.TotalReceived != 5 || w.TransactionsReceived != 1 {
		t.Fatalf("after credit: balance=%g received=%g count=%d", w.Balance, w.TotalReceived, w.TransactionsReceived)
	}

	if err := w.Debit(14, 0.5); err != nil {
		t.Fatalf("debit within balance failed: %v", err)
	}
	if w.Balance != 0.5 || w.TotalSent != 14 || w.TotalFees != 0.5 {
		t.Fatalf("after debit: balance=%g sent=%g fees=%g", w.Balance, w.TotalSent, w.TotalFees)
	}

	if err := w.Debit(1, 0); err == nil {
		t.Fatal("overdraft debit succeeded")
	}
	if w.Balance != 0.5 || w.TransactionsSent != 1 {
		t.Fatalf("failed debit mutated wallet: balance=%g sent=%d", w.Balance, w.TransactionsSent)
	}
}

func TestNetworkStatsRunningMean(t *testing.T) {
	var s NetworkStats
	s.RecordPropagation(1024, 2.0)
	s.RecordPropagation(1024, 4.0)
	s.RecordPropagation(2048, 6.0)

	if s.TotalBlocksPropagated != 3 || s.TotalIORequests != 3 {
		t.Fatalf("propagation counters: blocks=%d io=%d", s.TotalBlocksPropagated, s.TotalIORequests)
	}
	if s.TotalNetworkData != 4096 {
		t.Fatalf("network data = %d, want 4096", s.TotalNetworkData)
	}
	if s.AveragePropagationTime != 4.0 {
		t.Fatalf("average propagation time = %g, want 4", s.AveragePropagationTime)
	}
}

func TestMiningStatsPerMiner(t *testing.T) {
	var s MiningStats
	s.RecordBlock("miner_0", 600, 3e6)
	s.RecordBlock("miner_1", 500, 3e6)
	s.RecordBlock("miner_0", 700, 3.1e6)

	if s.TotalBlocksMined != 3 {
		t.Fatalf("total blocks = %d", s.TotalBlocksMined)
	}
	if s.BlocksPerMiner["miner_0"] != 2 || s.BlocksPerMiner["miner_1"] != 1 {
		t.Fatalf("per-miner counts = %v", s.BlocksPerMiner)
	}
	if s.AverageMiningTime != 600 {
		t.Fatalf("average mining time = %g, want 600", s.AverageMiningTime)
	}
	if s.CurrentDifficulty != 3.1e6 {
		t.Fatalf("current difficulty = %g", s.CurrentDifficulty)
	}
}
