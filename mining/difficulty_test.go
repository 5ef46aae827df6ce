package mining

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cryptoecon/chainsim/config"
)

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %g, want %g", got, want)
	}
}

func TestRetargetMovesTowardTarget(t *testing.T) {
	tuning := config.DefaultMiningTuning

	// Blocks arriving too fast raise difficulty.
	next, change := retarget(1000, 600, []float64{500, 500, 500}, 1000, tuning)
	approx(t, change, 1.2)
	approx(t, next, 1200)

	// Blocks arriving too slow lower it.
	next, change = retarget(1000, 600, []float64{750, 750}, 1000, tuning)
	approx(t, change, 0.8)
	approx(t, next, 800)
}

func TestRetargetStepClamps(t *testing.T) {
	tuning := config.DefaultMiningTuning

	next, change := retarget(1000, 600, []float64{100}, 1000, tuning)
	approx(t, change, tuning.MaxAdjustment)
	approx(t, next, 1500)

	next, change = retarget(1000, 600, []float64{6000}, 1000, tuning)
	approx(t, change, tuning.MinAdjustment)
	approx(t, next, 670)
}

func TestRetargetBaselineBounds(t *testing.T) {
	tuning := config.DefaultMiningTuning

	// Repeated downward steps cannot pass the baseline floor.
	next, _ := retarget(140, 600, []float64{6000}, 1000, tuning)
	approx(t, next, 100) // 0.1x baseline

	// Repeated upward steps cannot pass the baseline ceiling.
	next, _ = retarget(4500, 600, []float64{100}, 1000, tuning)
	approx(t, next, 5000) // 5x baseline
}

func TestRetargetDegenerateWindows(t *testing.T) {
	tuning := config.DefaultMiningTuning

	next, change := retarget(1000, 600, nil, 1000, tuning)
	approx(t, next, 1000)
	approx(t, change, 1.0)

	next, change = retarget(1000, 600, []float64{0, 0}, 1000, tuning)
	approx(t, next, 1000)
	approx(t, change, 1.0)
}

func TestProbabilisticPolicyBranches(t *testing.T) {
	p := DefaultPolicy()
	rng := rand.New(rand.NewSource(1))

	const draws = 10000
	var high, low int
	for i := 0; i < draws; i++ {
		if p.ShouldMine(600, 600, rng) {
			high++
		}
		if p.ShouldMine(0, 600, rng) {
			low++
		}
	}

	if high < 8800 || high > 9200 {
		t.Fatalf("high-probability branch hit %d/%d, want ~9000", high, draws)
	}
	if low < 50 || low > 200 {
		t.Fatalf("low-probability branch hit %d/%d, want ~100", low, draws)
	}
}
