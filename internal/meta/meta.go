// Package meta implements the top learning tier: a small pool of specialized
// learners with different risk postures, and a selection policy that learns
// which specialist to trust in which market regime. Every specialist owns an
// independent signal-weight bandit and action policy, so the pool can disagree.
package meta

import (
	"fmt"
	"math"
	"math/rand"

	"quantmind/internal/bandit"
	"quantmind/internal/model"
	"quantmind/internal/policy"
)

// Config parameterizes the selection policy.
type Config struct {
	// Temperature controls softmax exploration over specialist values.
	// Lower is greedier.
	Temperature float64 `yaml:"temperature"`

	// ValueStep is the EMA step applied to the selected specialist's
	// per-regime value after each realized outcome.
	ValueStep float64 `yaml:"value_step"`
}

// DefaultConfig returns the shipped selection parameters.
func DefaultConfig() Config {
	return Config{Temperature: 0.25, ValueStep: 0.10}
}

func (c *Config) applyDefaults() {
	if c.Temperature <= 0 {
		c.Temperature = 0.25
	}
	if c.ValueStep <= 0 || c.ValueStep > 1 {
		c.ValueStep = 0.10
	}
}

// Specialist is one named learner pair. The meta layer never reaches inside;
// it only routes decisions and outcomes.
type Specialist struct {
	Name   string
	Bandit *bandit.Learner
	Policy *policy.Agent
}

// Learner is the Tier 4 meta-learner. Not safe for concurrent use; the
// orchestrator serializes access.
type Learner struct {
	cfg         Config
	rng         *rand.Rand
	specialists []*Specialist
	byName      map[string]*Specialist

	// values[regime][name] is the EMA of shaped rewards earned while that
	// specialist was selected in that regime. Unvisited cells read as zero,
	// which keeps cold specialists competitive under softmax.
	values map[model.Regime]map[string]float64
	picks  map[model.Regime]map[string]int
}

// New builds the pool. Each specialist gets its own bandit and policy built
// from its profile; the selection policy and all specialists share the
// caller's rng so a fixed seed replays deterministically.
func New(cfg Config, profiles []Profile, rng *rand.Rand) (*Learner, error) {
	cfg.applyDefaults()
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: meta-learner needs at least one profile", model.ErrValidation)
	}

	l := &Learner{
		cfg:    cfg,
		rng:    rng,
		byName: make(map[string]*Specialist, len(profiles)),
		values: make(map[model.Regime]map[string]float64),
		picks:  make(map[model.Regime]map[string]int),
	}
	for _, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: profile with empty name", model.ErrValidation)
		}
		if _, dup := l.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate profile name %q", model.ErrValidation, p.Name)
		}
		s := &Specialist{
			Name:   p.Name,
			Bandit: bandit.NewLearner(p.Bandit, rng),
			Policy: policy.NewAgent(p.Policy, rng),
		}
		l.specialists = append(l.specialists, s)
		l.byName[p.Name] = s
	}
	return l, nil
}

// Specialists returns the pool in profile order.
func (l *Learner) Specialists() []*Specialist {
	return l.specialists
}

// ByName looks up a specialist.
func (l *Learner) ByName(name string) (*Specialist, bool) {
	s, ok := l.byName[name]
	return s, ok
}

// Select picks the specialist for one decision by softmax over the regime's
// learned values. Exploration never fully closes: every specialist keeps a
// positive selection probability at any finite temperature.
func (l *Learner) Select(regime model.Regime) (*Specialist, error) {
	if regime == model.RegimeUnknown || !regime.Valid() {
		return nil, fmt.Errorf("%w: regime %q not in enumeration", model.ErrValidation, regime)
	}

	vals := l.values[regime]
	maxV := math.Inf(-1)
	for _, s := range l.specialists {
		if v := vals[s.Name]; v > maxV {
			maxV = v
		}
	}
	if math.IsInf(maxV, -1) {
		maxV = 0
	}

	// Softmax with the max subtracted for numeric stability.
	probs := make([]float64, len(l.specialists))
	total := 0.0
	for i, s := range l.specialists {
		probs[i] = math.Exp((vals[s.Name] - maxV) / l.cfg.Temperature)
		total += probs[i]
	}

	u := l.rng.Float64() * total
	chosen := l.specialists[len(l.specialists)-1]
	for i, s := range l.specialists {
		u -= probs[i]
		if u < 0 {
			chosen = s
			break
		}
	}

	byRegime, ok := l.picks[regime]
	if !ok {
		byRegime = make(map[string]int, len(l.specialists))
		l.picks[regime] = byRegime
	}
	byRegime[chosen.Name]++
	return chosen, nil
}

// UpdateValue credits the selected specialist's per-regime value with one
// shaped reward. Only the specialist that owned the decision earns selection
// value; the bandit and policy updates for the pool are routed separately.
func (l *Learner) UpdateValue(regime model.Regime, name string, reward float64) error {
	if regime == model.RegimeUnknown || !regime.Valid() {
		return fmt.Errorf("%w: regime %q not in enumeration", model.ErrValidation, regime)
	}
	if _, ok := l.byName[name]; !ok {
		return fmt.Errorf("%w: unknown specialist %q", model.ErrValidation, name)
	}
	byRegime, ok := l.values[regime]
	if !ok {
		byRegime = make(map[string]float64, len(l.specialists))
		l.values[regime] = byRegime
	}
	byRegime[name] = (1-l.cfg.ValueStep)*byRegime[name] + l.cfg.ValueStep*reward
	return nil
}

// Values returns a copy of the regime's specialist value table.
func (l *Learner) Values(regime model.Regime) map[string]float64 {
	out := make(map[string]float64, len(l.specialists))
	for _, s := range l.specialists {
		out[s.Name] = l.values[regime][s.Name]
	}
	return out
}

// Picks returns how often each specialist has been selected in the regime.
func (l *Learner) Picks(regime model.Regime) map[string]int {
	out := make(map[string]int, len(l.specialists))
	for _, s := range l.specialists {
		out[s.Name] = l.picks[regime][s.Name]
	}
	return out
}
