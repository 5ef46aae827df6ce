package mining

import "github.com/cryptoecon/chainsim/config"

// retarget computes the next difficulty from the mean inter-block time of the
// most recent adjustment window. A single step moves difficulty by at most
// MaxAdjustment (and at least MinAdjustment) of its current value, and the
// result stays within [MinDifficulty, MaxDifficulty] multiples of the
// baseline blocktime x miners x hashrate.
func retarget(current, targetTime float64, window []float64, baseline float64, tuning config.MiningTuning) (next, change float64) {
	if len(window) == 0 {
		return current, 1.0
	}

	var total float64
	for _, t := range window {
		total += t
	}
	actualAvg := total / float64(len(window))
	if actualAvg <= 0 {
		return current, 1.0
	}

	change = targetTime / actualAvg
	if change > tuning.MaxAdjustment {
		change = tuning.MaxAdjustment
	}
	if change < tuning.MinAdjustment {
		change = tuning.MinAdjustment
	}

	next = current * change

	floor := baseline * tuning.MinDifficulty
	ceil := baseline * tuning.MaxDifficulty
	if next < floor {
		next = floor
	}
	if next > ceil {
		next = ceil
	}
	return next, change
}
