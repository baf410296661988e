// Package bandit implements the signal-weight learner: a Beta-Bernoulli
// Thompson-sampling bandit with one posterior per (regime, signal) pair.
// Sampling-based selection gives the exploration/exploitation trade-off for
// free: wide posteriors early, converging weights as evidence accumulates.
package bandit

import (
	"fmt"
	"math/rand"

	"quantmind/internal/model"
)

// Config parameterizes a Learner. Zero values are replaced by defaults.
type Config struct {
	// PriorAlpha/PriorBeta form the uninformative prior for unseen arms.
	PriorAlpha float64 `yaml:"prior_alpha"`
	PriorBeta  float64 `yaml:"prior_beta"`

	// EvidenceCap bounds alpha+beta per arm. Once reached, old evidence is
	// scaled down before new evidence is added, so the posterior can track
	// a drifting market instead of freezing.
	EvidenceCap float64 `yaml:"evidence_cap"`
}

// DefaultConfig returns the uninformative Beta(1,1) prior with a 200
// observation evidence cap.
func DefaultConfig() Config {
	return Config{PriorAlpha: 1, PriorBeta: 1, EvidenceCap: 200}
}

func (c *Config) applyDefaults() {
	if c.PriorAlpha <= 0 {
		c.PriorAlpha = 1
	}
	if c.PriorBeta <= 0 {
		c.PriorBeta = 1
	}
	if c.EvidenceCap <= 0 {
		c.EvidenceCap = 200
	}
}

// ArmState is one arm's posterior, exposed for persistence and monitoring.
type ArmState struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// Mean returns the posterior mean win probability.
func (a ArmState) Mean() float64 {
	return a.Alpha / (a.Alpha + a.Beta)
}

// Learner holds per-regime posteriors over the fixed signal set.
type Learner struct {
	cfg  Config
	rng  *rand.Rand
	arms map[model.Regime]map[model.Signal]*ArmState
}

// NewLearner creates a learner. The caller owns the rng; a fixed seed makes
// weight selection fully deterministic for replay tests.
func NewLearner(cfg Config, rng *rand.Rand) *Learner {
	cfg.applyDefaults()
	return &Learner{
		cfg:  cfg,
		rng:  rng,
		arms: make(map[model.Regime]map[model.Signal]*ArmState),
	}
}

// arm returns the posterior for (regime, signal), creating it at the
// uninformative prior on first touch so unseen arms are neither favored nor
// starved.
func (l *Learner) arm(regime model.Regime, sig model.Signal) *ArmState {
	byRegime, ok := l.arms[regime]
	if !ok {
		byRegime = make(map[model.Signal]*ArmState, len(model.Signals()))
		l.arms[regime] = byRegime
	}
	a, ok := byRegime[sig]
	if !ok {
		a = &ArmState{Alpha: l.cfg.PriorAlpha, Beta: l.cfg.PriorBeta}
		byRegime[sig] = a
	}
	return a
}

// SelectWeights samples one weight per arm from the regime's current
// posteriors. The raw samples are returned un-normalized; the caller decides
// when to collapse them into a convex combination.
func (l *Learner) SelectWeights(regime model.Regime) (model.ComponentWeights, error) {
	if regime == model.RegimeUnknown || !regime.Valid() {
		return nil, fmt.Errorf("%w: regime %q not in enumeration", model.ErrValidation, regime)
	}
	weights := make(model.ComponentWeights, len(model.Signals()))
	for _, sig := range model.Signals() {
		a := l.arm(regime, sig)
		weights[sig] = sampleBeta(l.rng, a.Alpha, a.Beta)
	}
	return weights, nil
}

// Update treats the trade outcome as a Bernoulli observation and moves every
// arm's posterior in proportion to that arm's share of the decision.
//
// Credit assignment: credit_i = w_i / max_j(w_j) over the normalized weights
// actually used, so the dominant arm absorbs a full observation and minor
// arms proportionally less. Breakeven trades carry no direction and are
// skipped.
func (l *Learner) Update(outcome model.OutcomeResult, weightsUsed model.ComponentWeights, regime model.Regime) error {
	if regime == model.RegimeUnknown || !regime.Valid() {
		return fmt.Errorf("%w: regime %q not in enumeration", model.ErrValidation, regime)
	}
	if err := weightsUsed.Validate(); err != nil {
		return err
	}
	if outcome == model.OutcomeBreakeven {
		return nil
	}

	norm := weightsUsed.Normalized()
	maxW := 0.0
	for _, sig := range model.Signals() {
		if norm[sig] > maxW {
			maxW = norm[sig]
		}
	}
	if maxW <= 0 {
		return nil
	}

	for _, sig := range model.Signals() {
		credit := norm[sig] / maxW
		if credit <= 0 {
			continue
		}
		a := l.arm(regime, sig)
		l.decayIfSaturated(a)
		if outcome == model.OutcomeWin {
			a.Alpha += credit
		} else {
			a.Beta += credit
		}
	}
	return nil
}

// decayIfSaturated rescales an arm at the evidence cap so the posterior keeps
// a fixed effective memory.
func (l *Learner) decayIfSaturated(a *ArmState) {
	total := a.Alpha + a.Beta
	if total < l.cfg.EvidenceCap {
		return
	}
	scale := (l.cfg.EvidenceCap - 1) / total
	a.Alpha *= scale
	a.Beta *= scale
	if a.Alpha < l.cfg.PriorAlpha*0.01 {
		a.Alpha = l.cfg.PriorAlpha * 0.01
	}
	if a.Beta < l.cfg.PriorBeta*0.01 {
		a.Beta = l.cfg.PriorBeta * 0.01
	}
}

// Posterior returns a copy of the regime's arm states for monitoring.
func (l *Learner) Posterior(regime model.Regime) map[model.Signal]ArmState {
	out := make(map[model.Signal]ArmState, len(model.Signals()))
	for _, sig := range model.Signals() {
		out[sig] = *l.arm(regime, sig)
	}
	return out
}

// MeanWeights returns the posterior-mean weight per arm, the exploitation
// endpoint the sampled weights converge toward.
func (l *Learner) MeanWeights(regime model.Regime) model.ComponentWeights {
	weights := make(model.ComponentWeights, len(model.Signals()))
	for _, sig := range model.Signals() {
		weights[sig] = l.arm(regime, sig).Mean()
	}
	return weights
}
