// Package regime classifies market context into a closed set of operating
// regimes. Classification runs a low-order hidden-state filter: a belief
// vector over the regimes is propagated through a persistence-weighted
// transition prior and updated with per-regime observation likelihoods.
// Deterministic overrides handle unambiguous conditions, and every regime
// change is gated behind a confidence margin so a single sample cannot flap
// the state.
package regime

import (
	"fmt"

	"quantmind/internal/model"
)

// Config parameterizes the classifier.
type Config struct {
	// MinObservations is how many context samples must accumulate before
	// the classifier leaves RegimeUnknown.
	MinObservations int `yaml:"min_observations"`

	// HysteresisMargin is how much a challenger regime's belief must
	// exceed the incumbent's before a switch commits.
	HysteresisMargin float64 `yaml:"hysteresis_margin"`

	// Persistence is the prior probability of staying in the same regime
	// between observations.
	Persistence float64 `yaml:"persistence"`

	// CrisisVolOverride forces RegimeCrisis whenever the volatility index
	// is at or above this level, regardless of the probabilistic vote.
	CrisisVolOverride float64 `yaml:"crisis_vol_override"`

	// CrashReturnOverride forces RegimeCrisis on a single-day index return
	// at or below this fraction.
	CrashReturnOverride float64 `yaml:"crash_return_override"`
}

// DefaultConfig mirrors the shipped YAML defaults.
func DefaultConfig() Config {
	return Config{
		MinObservations:     3,
		HysteresisMargin:    0.10,
		Persistence:         0.80,
		CrisisVolOverride:   45,
		CrashReturnOverride: -0.05,
	}
}

func (c *Config) applyDefaults() {
	if c.MinObservations <= 0 {
		c.MinObservations = 3
	}
	if c.HysteresisMargin <= 0 {
		c.HysteresisMargin = 0.10
	}
	if c.Persistence <= 0 || c.Persistence >= 1 {
		c.Persistence = 0.80
	}
	if c.CrisisVolOverride <= 0 {
		c.CrisisVolOverride = 45
	}
	if c.CrashReturnOverride >= 0 {
		c.CrashReturnOverride = -0.05
	}
}

// OutcomeStats aggregates realized trade results per regime so other tiers
// can ask how a regime has performed historically.
type OutcomeStats struct {
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	SumReturn float64 `json:"sum_return"`
}

// WinRate returns wins over decided trades; breakevens are excluded.
func (s OutcomeStats) WinRate() float64 {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return 0
	}
	return float64(s.Wins) / float64(decided)
}

// AvgReturn returns the mean fractional return across all trades.
func (s OutcomeStats) AvgReturn() float64 {
	if s.Trades == 0 {
		return 0
	}
	return s.SumReturn / float64(s.Trades)
}

// Classifier is the Tier 2 state machine. Not safe for concurrent use; the
// orchestrator serializes access.
type Classifier struct {
	cfg Config

	state    model.RegimeState
	observed int

	// belief is the filtered distribution over regimes. It accumulates
	// evidence across observations; the committed state only moves when
	// the belief clears the hysteresis margin.
	belief map[model.Regime]float64

	// transitions counts committed regime switches, Laplace-smoothed into
	// the transition prior so frequently seen moves become easier to make.
	transitions map[model.Regime]map[model.Regime]int

	stats map[model.Regime]*OutcomeStats
}

// NewClassifier starts in RegimeUnknown with a uniform belief.
func NewClassifier(cfg Config) *Classifier {
	cfg.applyDefaults()
	return &Classifier{
		cfg: cfg,
		state: model.RegimeState{
			Current:  model.RegimeUnknown,
			Previous: model.RegimeUnknown,
		},
		belief:      uniformBelief(),
		transitions: make(map[model.Regime]map[model.Regime]int),
		stats:       make(map[model.Regime]*OutcomeStats),
	}
}

func uniformBelief() map[model.Regime]float64 {
	b := make(map[model.Regime]float64, len(model.Regimes()))
	p := 1.0 / float64(len(model.Regimes()))
	for _, r := range model.Regimes() {
		b[r] = p
	}
	return b
}

// State returns the current regime state.
func (c *Classifier) State() model.RegimeState {
	return c.state
}

// Belief returns a copy of the filtered regime distribution.
func (c *Classifier) Belief() map[model.Regime]float64 {
	out := make(map[model.Regime]float64, len(c.belief))
	for r, p := range c.belief {
		out[r] = p
	}
	return out
}

// Observe folds one context snapshot into the filter and returns the
// (possibly updated) regime state.
func (c *Classifier) Observe(ctx model.MarketContext) (model.RegimeState, error) {
	if err := ctx.Validate(); err != nil {
		return c.state, err
	}
	c.observed++

	// Deterministic overrides fire before the probabilistic vote and
	// bypass hysteresis: a volatility spike past the extreme threshold is
	// a crisis no matter what the filter believes.
	if forced, ok := c.override(ctx); ok {
		c.concentrateBelief(forced)
		c.commit(forced, c.belief[forced])
		return c.state, nil
	}

	c.step(ctx)
	best, bestP := argmax(c.belief)

	if c.state.Current == model.RegimeUnknown {
		// Cold start: stay unknown until enough samples, then adopt the
		// top belief directly. A caller-supplied hint breaks near-ties.
		if c.observed < c.cfg.MinObservations {
			c.state.Confidence = bestP
			return c.state, nil
		}
		if hint := ctx.RegimeHint; hint != model.RegimeUnknown && hint.Valid() {
			if c.belief[hint] >= bestP-0.05 {
				best, bestP = hint, c.belief[hint]
			}
		}
		c.commit(best, bestP)
		return c.state, nil
	}

	incumbentP := c.belief[c.state.Current]
	if best != c.state.Current && bestP > incumbentP+c.cfg.HysteresisMargin {
		c.commit(best, bestP)
		return c.state, nil
	}

	// Incumbent holds; refresh confidence from the current belief.
	c.state.Confidence = incumbentP
	return c.state, nil
}

// step runs one predict/update cycle of the filter.
func (c *Classifier) step(ctx model.MarketContext) {
	predicted := make(map[model.Regime]float64, len(model.Regimes()))
	for _, to := range model.Regimes() {
		p := 0.0
		for _, from := range model.Regimes() {
			p += c.transitionProb(from, to) * c.belief[from]
		}
		predicted[to] = p
	}

	total := 0.0
	for _, r := range model.Regimes() {
		predicted[r] *= likelihood(r, ctx)
		total += predicted[r]
	}
	if total <= 0 {
		c.belief = uniformBelief()
		return
	}
	for r := range predicted {
		predicted[r] /= total
	}
	c.belief = predicted
}

// transitionProb blends the persistence prior with Laplace-smoothed counts
// of previously committed switches.
func (c *Classifier) transitionProb(from, to model.Regime) float64 {
	if to == from {
		return c.cfg.Persistence
	}
	row := c.transitions[from]
	smoothedTotal := float64(len(model.Regimes()) - 1)
	for _, n := range row {
		smoothedTotal += float64(n)
	}
	smoothed := (1.0 + float64(row[to])) / smoothedTotal
	return (1 - c.cfg.Persistence) * smoothed
}

// concentrateBelief pins the belief mass on a forced regime, leaving a small
// residual spread so the filter can recover once the override clears.
func (c *Classifier) concentrateBelief(r model.Regime) {
	residual := 0.01
	rest := residual / float64(len(model.Regimes())-1)
	for _, known := range model.Regimes() {
		if known == r {
			c.belief[known] = 1 - residual
		} else {
			c.belief[known] = rest
		}
	}
}

// override applies the deterministic rules. Returns the forced regime and
// whether any rule fired.
func (c *Classifier) override(ctx model.MarketContext) (model.Regime, bool) {
	if ctx.VolIndex >= c.cfg.CrisisVolOverride {
		return model.RegimeCrisis, true
	}
	if ctx.IndexReturn <= c.cfg.CrashReturnOverride {
		return model.RegimeCrisis, true
	}
	return model.RegimeUnknown, false
}

// commit records a regime switch (or confidence refresh) as the new state.
func (c *Classifier) commit(to model.Regime, confidence float64) {
	if to != c.state.Current {
		from := c.state.Current
		if from != model.RegimeUnknown {
			row, ok := c.transitions[from]
			if !ok {
				row = make(map[model.Regime]int)
				c.transitions[from] = row
			}
			row[to]++
		}
		c.state.Previous = from
		c.state.Current = to
	}
	c.state.Confidence = confidence
}

// RecordOutcome folds a completed trade into the per-regime history.
func (c *Classifier) RecordOutcome(regime model.Regime, outcome model.TradeOutcome) error {
	if regime == model.RegimeUnknown || !regime.Valid() {
		return fmt.Errorf("%w: regime %q not in enumeration", model.ErrValidation, regime)
	}
	s, ok := c.stats[regime]
	if !ok {
		s = &OutcomeStats{}
		c.stats[regime] = s
	}
	s.Trades++
	s.SumReturn += outcome.PnLPct
	switch outcome.Result {
	case model.OutcomeWin:
		s.Wins++
	case model.OutcomeLoss:
		s.Losses++
	}
	return nil
}

// Stats returns a copy of the per-regime outcome history.
func (c *Classifier) Stats() map[model.Regime]OutcomeStats {
	out := make(map[model.Regime]OutcomeStats, len(c.stats))
	for r, s := range c.stats {
		out[r] = *s
	}
	return out
}

func argmax(m map[model.Regime]float64) (model.Regime, float64) {
	best := model.RegimeUnknown
	bestP := -1.0
	// Iterate in canonical order so ties resolve deterministically.
	for _, r := range model.Regimes() {
		if m[r] > bestP {
			best, bestP = r, m[r]
		}
	}
	return best, bestP
}
