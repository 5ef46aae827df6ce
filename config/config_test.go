package config

import (
	"strings"
	"testing"
)

func TestChainProfiles(t *testing.T) {
	btc, err := Chain("BTC")
	if err != nil {
		t.Fatalf("BTC profile: %v", err)
	}
	if btc.Reward != 50 || btc.Halving != 210000 || btc.BlockTime != 600 {
		t.Fatalf("BTC profile = %+v", btc)
	}

	doge, err := Chain("DOGE")
	if err != nil {
		t.Fatalf("DOGE profile: %v", err)
	}
	if doge.Halving != 0 {
		t.Fatalf("DOGE halving = %d, want 0 (static reward)", doge.Halving)
	}

	if _, err := Chain("ETH"); err == nil {
		t.Fatal("unknown chain accepted")
	} else if !strings.Contains(err.Error(), "BTC") {
		t.Fatalf("unknown-chain error does not list known names: %v", err)
	}
}

func TestWorkloadProfiles(t *testing.T) {
	small, err := Workload("SMALL")
	if err != nil {
		t.Fatalf("SMALL profile: %v", err)
	}
	if small.Wallets != 10 || small.Transactions != 10 {
		t.Fatalf("SMALL profile = %+v", small)
	}

	none, err := Workload("NONE")
	if err != nil {
		t.Fatalf("NONE profile: %v", err)
	}
	if none.Wallets != 0 || none.Transactions != 0 {
		t.Fatalf("NONE profile = %+v", none)
	}

	if _, err := Workload("HUGE"); err == nil {
		t.Fatal("unknown workload accepted")
	}
}

func TestApplyProfiles(t *testing.T) {
	cfg := Default()

	ltc, _ := Chain("LTC")
	cfg.ApplyChain(ltc)
	if cfg.BlockTime != 150 || cfg.Halving != 840000 {
		t.Fatalf("after ApplyChain: blocktime=%g halving=%d", cfg.BlockTime, cfg.Halving)
	}

	medium, _ := Workload("MEDIUM")
	cfg.ApplyWorkload(medium)
	if cfg.Wallets != 1000 || cfg.Transactions != 1000 || cfg.Interval != 1.0 {
		t.Fatalf("after ApplyWorkload: %+v", cfg)
	}
}

func TestFinalizeDerivesDifficulty(t *testing.T) {
	cfg := Default()
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize default config: %v", err)
	}
	if want := cfg.BlockTime * float64(cfg.Miners) * cfg.Hashrate; cfg.Difficulty != want {
		t.Fatalf("derived difficulty = %g, want %g", cfg.Difficulty, want)
	}

	cfg = Default()
	cfg.Difficulty = 1e9
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.Difficulty != 1e9 {
		t.Fatalf("explicit difficulty overridden to %g", cfg.Difficulty)
	}
}

func TestFinalizeRejectsInvalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"zero blocktime", func(c *SimulationConfig) { c.BlockTime = 0 }},
		{"no miners", func(c *SimulationConfig) { c.Miners = 0 }},
		{"no nodes", func(c *SimulationConfig) { c.Nodes = 0 }},
		{"zero blocksize", func(c *SimulationConfig) { c.BlockSize = 0 }},
		{"negative wallets", func(c *SimulationConfig) { c.Wallets = -1 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Finalize(); err == nil {
			t.Errorf("%s: invalid config accepted", tc.name)
		}
	}
}

func TestBlocksForYears(t *testing.T) {
	cfg := Default() // 600s blocks
	if got := cfg.BlocksForYears(1); got != 52560 {
		t.Fatalf("one year of 600s blocks = %d, want 52560", got)
	}
	cfg.BlockTime = 60
	if got := cfg.BlocksForYears(0.5); got != 262800 {
		t.Fatalf("half year of 60s blocks = %d, want 262800", got)
	}
}
