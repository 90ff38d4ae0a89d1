// Package scoring computes daily momentum scores for keywords from
// weekly search-interest series. The scorer is a pure function of its
// input: no state survives between calls.
package scoring

import "math"

// Window sizes in weeks, over a most-recent-first series.
const (
	RecentWeeks    = 7
	PriorMidWeeks  = 21
	PriorLongWeeks = 90

	// MinWeeksRequired is the minimum series length for a score.
	MinWeeksRequired = RecentWeeks + PriorMidWeeks
)

// Sub-metric weights for the raw score.
const (
	liftWeight         = 0.45
	accelerationWeight = 0.35
	noveltyWeight      = 0.25
	noiseWeight        = -0.25
)

// epsilon keeps ratio denominators away from zero. It also biases lift
// and noise slightly toward zero when the baseline is near zero; that
// is accepted behavior, not a bug to fix.
const epsilon = 0.01

// Result holds the momentum score and its auditable sub-metrics.
type Result struct {
	MomentumScore int     `json:"momentum_score"`
	RawScore      float64 `json:"raw_score"`
	Lift          float64 `json:"lift"`
	Acceleration  float64 `json:"acceleration"`
	Novelty       float64 `json:"novelty"`
	Noise         float64 `json:"noise"`
}

// Calculate scores a weekly series given most recent first. It returns
// nil when the series is shorter than MinWeeksRequired; that is the
// documented insufficient-data outcome, not an error.
func Calculate(weekly []float64) *Result {
	if len(weekly) < MinWeeksRequired {
		return nil
	}

	recent := weekly[:RecentWeeks]
	priorMid := weekly[RecentWeeks:MinWeeksRequired]
	longEnd := MinWeeksRequired + PriorLongWeeks
	if len(weekly) < longEnd {
		longEnd = len(weekly)
	}
	priorLong := weekly[MinWeeksRequired:longEnd]

	lift := calcLift(recent, priorMid)
	accel := calcAcceleration(recent, priorMid)
	novelty := calcNovelty(priorLong, weekly)
	noise := calcNoise(recent)

	raw := liftWeight*lift +
		accelerationWeight*accel +
		noveltyWeight*novelty +
		noiseWeight*noise

	return &Result{
		MomentumScore: squash(raw),
		RawScore:      raw,
		Lift:          lift,
		Acceleration:  accel,
		Novelty:       novelty,
		Noise:         noise,
	}
}

// calcLift is the relative change of the recent average against the
// medium-term average.
func calcLift(recent, priorMid []float64) float64 {
	if len(recent) == 0 || len(priorMid) == 0 {
		return 0
	}
	avgMid := Average(priorMid)
	return (Average(recent) - avgMid) / (avgMid + epsilon)
}

// calcAcceleration is the change in trend slope between the recent and
// medium-term windows. Both windows are stored most recent first, so
// they are reversed to chronological order before the slope fit; a
// rising trend then yields a positive slope.
func calcAcceleration(recent, priorMid []float64) float64 {
	if len(recent) < 2 || len(priorMid) < 2 {
		return 0
	}
	return Slope(chronological(recent)) - Slope(chronological(priorMid))
}

// calcNovelty is the inverse percentile rank of the long-window average
// against the entire series. An empty long window yields 0.
func calcNovelty(priorLong, all []float64) float64 {
	if len(priorLong) == 0 {
		return 0
	}
	return 1.0 - PercentileRank(Average(priorLong), all)
}

// calcNoise is the coefficient of variation of the recent window.
func calcNoise(recent []float64) float64 {
	if len(recent) < 2 {
		return 0
	}
	return Stdev(recent) / (Average(recent) + epsilon)
}

// squash compresses the unbounded raw score into [1, 100] through a
// logistic curve, truncating toward zero. Extreme raw values saturate
// before the exponential can overflow; a non-finite result falls back
// to the neutral 50.
func squash(raw float64) int {
	if raw > 10 {
		return 100
	}
	if raw < -10 {
		return 1
	}

	sig := 100 / (1 + math.Exp(-raw))
	if math.IsNaN(sig) || math.IsInf(sig, 0) {
		return 50
	}

	score := int(sig)
	if score < 1 {
		score = 1
	}
	if score > 100 {
		score = 100
	}
	return score
}

// chronological returns a reversed copy, oldest first.
func chronological(mostRecentFirst []float64) []float64 {
	out := make([]float64, len(mostRecentFirst))
	for i, v := range mostRecentFirst {
		out[len(out)-1-i] = v
	}
	return out
}
