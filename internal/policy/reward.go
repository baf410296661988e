package policy

import "math"

// RewardConfig shapes realized returns into the learning signal.
type RewardConfig struct {
	// DrawdownPenalty scales the squared-drawdown term.
	DrawdownPenalty float64 `yaml:"drawdown_penalty"`

	// ConstraintPenalty is the fixed charge for any hard-bound violation,
	// applied regardless of trade profitability.
	ConstraintPenalty float64 `yaml:"constraint_penalty"`
}

// DefaultRewardConfig returns the shipped shaping parameters.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{DrawdownPenalty: 4.0, ConstraintPenalty: 1.0}
}

// Shape converts a realized fractional return into a risk-adjusted reward:
// gains count sub-linearly (sqrt), losses linearly, drawdown super-linearly
// (squared), and constraint violations at a flat penalty. The asymmetry is
// deliberate: a policy must not learn that one outsized win buys back risk
// discipline.
func (rc RewardConfig) Shape(pnlPct, drawdown float64, violatedConstraint bool) float64 {
	var r float64
	if pnlPct >= 0 {
		r = math.Sqrt(pnlPct)
	} else {
		r = pnlPct
	}
	r -= rc.DrawdownPenalty * drawdown * drawdown
	if violatedConstraint {
		r -= rc.ConstraintPenalty
	}
	return r
}
