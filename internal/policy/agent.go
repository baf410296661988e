// Package policy implements the continuous-control agent: a linear-Gaussian
// actor and a linear value estimator over a fixed state vector, trained with
// clipped policy-gradient batches. Actions are squashed into hard bounds at
// sampling time, so the agent cannot emit an unsafe parameter even before any
// training has happened.
package policy

import (
	"math"
	"math/rand"

	"quantmind/internal/model"
)

// Config parameterizes an Agent.
type Config struct {
	// Sigma is the exploration stddev in pre-squash space.
	Sigma float64 `yaml:"sigma"`

	// LearningRate scales policy-gradient steps.
	LearningRate float64 `yaml:"learning_rate"`

	// ValueLearningRate scales value-estimator regression steps.
	ValueLearningRate float64 `yaml:"value_learning_rate"`

	// BatchSize is how many rewarded experiences accumulate before a
	// policy update runs. Tier 1/2 updates stay per-trade; only this
	// heavier step is deferred.
	BatchSize int `yaml:"batch_size"`

	// AdvantageClip bounds each experience's advantage so one outlier
	// trade cannot dominate a batch.
	AdvantageClip float64 `yaml:"advantage_clip"`

	// MaxStepNorm is the trust region: the L2 norm of the policy
	// parameter delta per batch is capped at this value.
	MaxStepNorm float64 `yaml:"max_step_norm"`

	// PendingCap bounds the number of decisions awaiting an outcome.
	PendingCap int `yaml:"pending_cap"`

	Bounds Bounds       `yaml:"bounds"`
	Reward RewardConfig `yaml:"reward"`
}

// DefaultConfig returns the balanced-profile agent configuration.
func DefaultConfig() Config {
	return Config{
		Sigma:             0.6,
		LearningRate:      0.02,
		ValueLearningRate: 0.05,
		BatchSize:         8,
		AdvantageClip:     1.0,
		MaxStepNorm:       0.5,
		PendingCap:        512,
		Bounds:            DefaultBounds(),
		Reward:            DefaultRewardConfig(),
	}
}

func (c *Config) applyDefaults() {
	if c.Sigma <= 0 {
		c.Sigma = 0.6
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.02
	}
	if c.ValueLearningRate <= 0 {
		c.ValueLearningRate = 0.05
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.AdvantageClip <= 0 {
		c.AdvantageClip = 1.0
	}
	if c.MaxStepNorm <= 0 {
		c.MaxStepNorm = 0.5
	}
	if c.PendingCap <= 0 {
		c.PendingCap = 512
	}
	if c.Bounds == (Bounds{}) {
		c.Bounds = DefaultBounds()
	}
	if c.Reward == (RewardConfig{}) {
		c.Reward = DefaultRewardConfig()
	}
}

// experience is one (state, pre-squash action, reward) tuple.
type experience struct {
	state  [StateDim]float64
	z      [ActionDim]float64
	reward float64
}

// Agent is the Tier 3 learner. Not safe for concurrent use; the orchestrator
// serializes access.
type Agent struct {
	cfg Config
	rng *rand.Rand

	// weights[k] holds the mean function for action dimension k; the last
	// entry is the bias.
	weights [ActionDim][StateDim + 1]float64
	value   [StateDim + 1]float64

	// pending maps decision id to the experience awaiting its outcome.
	// FIFO-evicted at PendingCap: a decision whose trade never closes
	// must not pin memory forever.
	pending      map[string]*experience
	pendingOrder []string

	buffer  []experience
	batches int
}

// NewAgent creates an agent with zero-initialized parameters: the initial
// policy samples around the center of every bounded range.
func NewAgent(cfg Config, rng *rand.Rand) *Agent {
	cfg.applyDefaults()
	return &Agent{
		cfg:     cfg,
		rng:     rng,
		pending: make(map[string]*experience),
	}
}

// Bounds returns the agent's hard rails.
func (a *Agent) Bounds() Bounds {
	return a.cfg.Bounds
}

// DecideAction samples an action for the given state and remembers the
// pre-squash sample under the decision id so the eventual outcome can be
// credited. The returned params always lie inside the hard bounds.
func (a *Agent) DecideAction(decisionID string, state [StateDim]float64) model.ActionParams {
	var z [ActionDim]float64
	for k := 0; k < ActionDim; k++ {
		mean := a.meanOf(k, state)
		z[k] = mean + a.cfg.Sigma*a.rng.NormFloat64()
	}

	a.remember(decisionID, &experience{state: state, z: z})
	params, _ := a.cfg.Bounds.Clamp(a.squash(z))
	return params
}

// MeanAction returns the deterministic (exploration-free) action for a
// state. Used for introspection only; it records nothing.
func (a *Agent) MeanAction(state [StateDim]float64) model.ActionParams {
	var z [ActionDim]float64
	for k := 0; k < ActionDim; k++ {
		z[k] = a.meanOf(k, state)
	}
	params, _ := a.cfg.Bounds.Clamp(a.squash(z))
	return params
}

// Feedback attaches a realized outcome to an earlier decision. Returns true
// when the experience entered the training buffer (false for decisions the
// agent never saw, e.g. made while the tier was disabled or evicted).
// A batch update runs once BatchSize experiences have accumulated.
func (a *Agent) Feedback(decisionID string, pnlPct, drawdown float64, violatedConstraint bool) bool {
	exp, ok := a.pending[decisionID]
	if !ok {
		return false
	}
	delete(a.pending, decisionID)
	a.dropFromOrder(decisionID)

	exp.reward = a.cfg.Reward.Shape(pnlPct, drawdown, violatedConstraint)
	a.buffer = append(a.buffer, *exp)
	if len(a.buffer) >= a.cfg.BatchSize {
		a.updateBatch()
		a.buffer = a.buffer[:0]
	}
	return true
}

// PendingCount reports decisions still awaiting outcomes.
func (a *Agent) PendingCount() int {
	return len(a.pending)
}

// Batches reports how many policy updates have run.
func (a *Agent) Batches() int {
	return a.batches
}

// updateBatch applies one clipped policy-gradient step over the buffered
// experiences. Per-experience advantages are clipped, and the summed policy
// delta is renormalized into the trust region before it is applied.
func (a *Agent) updateBatch() {
	var delta [ActionDim][StateDim + 1]float64
	invVar := 1.0 / (a.cfg.Sigma * a.cfg.Sigma)
	n := float64(len(a.buffer))

	for _, exp := range a.buffer {
		adv := exp.reward - a.valueOf(exp.state)
		adv = clamp(adv, -a.cfg.AdvantageClip, a.cfg.AdvantageClip)

		for k := 0; k < ActionDim; k++ {
			score := (exp.z[k] - a.meanOf(k, exp.state)) * invVar
			g := a.cfg.LearningRate * adv * score / n
			for i := 0; i < StateDim; i++ {
				delta[k][i] += g * exp.state[i]
			}
			delta[k][StateDim] += g
		}
	}

	// Trust region: one batch can move the policy only so far.
	norm := 0.0
	for k := 0; k < ActionDim; k++ {
		for i := 0; i <= StateDim; i++ {
			norm += delta[k][i] * delta[k][i]
		}
	}
	norm = math.Sqrt(norm)
	scale := 1.0
	if norm > a.cfg.MaxStepNorm {
		scale = a.cfg.MaxStepNorm / norm
	}
	for k := 0; k < ActionDim; k++ {
		for i := 0; i <= StateDim; i++ {
			a.weights[k][i] += scale * delta[k][i]
		}
	}

	// Value estimator regresses toward realized rewards.
	for _, exp := range a.buffer {
		err := exp.reward - a.valueOf(exp.state)
		step := a.cfg.ValueLearningRate * clamp(err, -a.cfg.AdvantageClip, a.cfg.AdvantageClip) / n
		for i := 0; i < StateDim; i++ {
			a.value[i] += step * exp.state[i]
		}
		a.value[StateDim] += step
	}

	a.batches++
}

func (a *Agent) meanOf(k int, state [StateDim]float64) float64 {
	sum := a.weights[k][StateDim]
	for i := 0; i < StateDim; i++ {
		sum += a.weights[k][i] * state[i]
	}
	return sum
}

func (a *Agent) valueOf(state [StateDim]float64) float64 {
	sum := a.value[StateDim]
	for i := 0; i < StateDim; i++ {
		sum += a.value[i] * state[i]
	}
	return sum
}

// squash maps pre-squash samples into the bounded action box.
func (a *Agent) squash(z [ActionDim]float64) model.ActionParams {
	lo := a.cfg.Bounds.lows()
	hi := a.cfg.Bounds.highs()
	var out [ActionDim]float64
	for k := 0; k < ActionDim; k++ {
		out[k] = lo[k] + sigmoid(z[k])*(hi[k]-lo[k])
	}
	return model.ActionParams{
		PositionPct: out[0],
		HoldHours:   out[1],
		StopPct:     out[2],
		TargetPct:   out[3],
	}
}

func (a *Agent) remember(decisionID string, exp *experience) {
	if _, exists := a.pending[decisionID]; !exists {
		a.pendingOrder = append(a.pendingOrder, decisionID)
	}
	a.pending[decisionID] = exp
	for len(a.pendingOrder) > a.cfg.PendingCap {
		oldest := a.pendingOrder[0]
		a.pendingOrder = a.pendingOrder[1:]
		delete(a.pending, oldest)
	}
}

func (a *Agent) dropFromOrder(decisionID string) {
	for i, id := range a.pendingOrder {
		if id == decisionID {
			a.pendingOrder = append(a.pendingOrder[:i], a.pendingOrder[i+1:]...)
			return
		}
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
