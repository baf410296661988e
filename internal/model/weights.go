package model

import (
	"fmt"
	"math"
)

// ComponentWeights maps each signal to a non-negative trust weight. Weights
// are used as a convex combination: Normalized is always applied before the
// composite score is computed, so only relative magnitudes matter.
type ComponentWeights map[Signal]float64

// UniformWeights returns equal weight for every signal. Used as the
// cold-start fallback when no bandit evidence exists.
func UniformWeights() ComponentWeights {
	sigs := Signals()
	w := make(ComponentWeights, len(sigs))
	for _, s := range sigs {
		w[s] = 1.0 / float64(len(sigs))
	}
	return w
}

// Validate rejects weight sets with negative, non-finite, or unknown-signal
// entries, or with a missing signal.
func (w ComponentWeights) Validate() error {
	known := make(map[Signal]bool, len(Signals()))
	for _, s := range Signals() {
		known[s] = true
		v, ok := w[s]
		if !ok {
			return fmt.Errorf("%w: weight for signal %s missing", ErrValidation, s)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight for signal %s is not finite", ErrValidation, s)
		}
		if v < 0 {
			return fmt.Errorf("%w: weight for signal %s is negative: %.4f", ErrValidation, s, v)
		}
	}
	for s := range w {
		if !known[s] {
			return fmt.Errorf("%w: unknown signal %s in weights", ErrValidation, s)
		}
	}
	return nil
}

// Normalized returns a copy scaled to sum to 1. An all-zero set degrades to
// uniform weights rather than dividing by zero.
func (w ComponentWeights) Normalized() ComponentWeights {
	sum := 0.0
	for _, s := range Signals() {
		sum += w[s]
	}
	if sum <= 0 {
		return UniformWeights()
	}
	out := make(ComponentWeights, len(w))
	for _, s := range Signals() {
		out[s] = w[s] / sum
	}
	return out
}

// Composite collapses the scores into a single 0-10 value using the
// normalized weights over per-signal normalized scores.
func (w ComponentWeights) Composite(scores ComponentScores) float64 {
	norm := w.Normalized()
	total := 0.0
	for _, s := range Signals() {
		total += norm[s] * scores.Normalized(s)
	}
	return total * 10
}

// Clone returns an independent copy.
func (w ComponentWeights) Clone() ComponentWeights {
	out := make(ComponentWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
