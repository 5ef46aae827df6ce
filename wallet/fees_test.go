package wallet

import (
	"testing"

	"github.com/cryptoecon/chainsim/blockchain"
	"github.com/cryptoecon/chainsim/config"
)

func TestFeePriorityOrdering(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)

	low := m.Fee(5, blockchain.PriorityLow, 0)
	normal := m.Fee(5, blockchain.PriorityNormal, 0)
	high := m.Fee(5, blockchain.PriorityHigh, 0)
	urgent := m.Fee(5, blockchain.PriorityUrgent, 0)

	if !(low <= normal && normal <= high && high <= urgent) {
		t.Fatalf("fees not ordered by priority: %g %g %g %g", low, normal, high, urgent)
	}
	if low == urgent {
		t.Fatal("priority has no effect on the fee")
	}
}

func TestFeeUnknownPriorityFallsBack(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)
	if got, want := m.Fee(5, blockchain.Priority("vip"), 0), m.Fee(5, blockchain.PriorityNormal, 0); got != want {
		t.Fatalf("unknown priority fee = %g, want normal %g", got, want)
	}
}

func TestFeeClampedToBounds(t *testing.T) {
	tuning := config.DefaultFeeTuning
	m := NewFeeModel(tuning)

	if got := m.Fee(0.0001, blockchain.PriorityLow, 0); got != tuning.MinFee {
		t.Fatalf("tiny-amount fee = %g, want floor %g", got, tuning.MinFee)
	}
	if got := m.Fee(1000, blockchain.PriorityUrgent, 1); got != tuning.MaxFee {
		t.Fatalf("huge-amount fee = %g, want ceiling %g", got, tuning.MaxFee)
	}
}

func TestFeeRisesWithCongestion(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)

	calm := m.Fee(2, blockchain.PriorityNormal, 0)
	congested := m.Fee(2, blockchain.PriorityNormal, 1)
	if congested <= calm {
		t.Fatalf("full congestion fee %g not above calm fee %g", congested, calm)
	}
}

func TestFeeRisesWithUtilization(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)

	m.SetBlockUtilization(0)
	emptyBlocks := m.Fee(2, blockchain.PriorityNormal, 0)
	m.SetBlockUtilization(1)
	fullBlocks := m.Fee(2, blockchain.PriorityNormal, 0)

	if fullBlocks <= emptyBlocks {
		t.Fatalf("full-block fee %g not above empty-block fee %g", fullBlocks, emptyBlocks)
	}
}

func TestSetBlockUtilizationClamped(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)

	m.SetBlockUtilization(5)
	atCeiling := m.Fee(2, blockchain.PriorityNormal, 0)
	m.SetBlockUtilization(1)
	atFull := m.Fee(2, blockchain.PriorityNormal, 0)
	if atCeiling != atFull {
		t.Fatalf("utilization above 1 not clamped: fee %g vs %g", atCeiling, atFull)
	}

	m.SetBlockUtilization(-3)
	atFloor := m.Fee(2, blockchain.PriorityNormal, 0)
	m.SetBlockUtilization(0)
	atZero := m.Fee(2, blockchain.PriorityNormal, 0)
	if atFloor != atZero {
		t.Fatalf("utilization below 0 not clamped: fee %g vs %g", atFloor, atZero)
	}
}

func TestEstimateCoversCongestionRange(t *testing.T) {
	m := NewFeeModel(config.DefaultFeeTuning)

	estimates := m.Estimate(2, blockchain.PriorityNormal)
	if len(estimates) != 5 {
		t.Fatalf("estimate has %d entries, want 5", len(estimates))
	}
	if estimates["0%_congestion"] > estimates["100%_congestion"] {
		t.Fatalf("estimates not monotone: %v", estimates)
	}
}
