// Package engine is the learning orchestrator. It owns the four learning
// tiers, routes every decision request and trade outcome through them in a
// fixed order, and enforces the risk circuit breaker. All entry points
// serialize on one mutex: the tiers themselves are single-threaded by design
// and the decision path is cheap.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quantmind/internal/bandit"
	"quantmind/internal/meta"
	"quantmind/internal/model"
	"quantmind/internal/policy"
	"quantmind/internal/regime"
	"quantmind/internal/state"
	"quantmind/internal/telemetry"
)

// TierFlags enables or disables individual learning tiers. A disabled tier
// degrades to its static fallback; it never blocks the decision path.
type TierFlags struct {
	Regime bool `yaml:"regime"`
	Bandit bool `yaml:"bandit"`
	Policy bool `yaml:"policy"`
	Meta   bool `yaml:"meta"`
}

// DefaultTierFlags enables the full stack.
func DefaultTierFlags() TierFlags {
	return TierFlags{Regime: true, Bandit: true, Policy: true, Meta: true}
}

// Config assembles the orchestrator and all tier configurations.
type Config struct {
	Tiers TierFlags `yaml:"tiers"`

	// EnterThreshold and WatchThreshold partition the 0-10 composite score
	// into the three action classes.
	EnterThreshold float64 `yaml:"enter_threshold"`
	WatchThreshold float64 `yaml:"watch_threshold"`

	// Safety is the engine-level action rail. Specialist policies may carry
	// wider bounds; anything outside the safety rail is clamped here and
	// audited.
	Safety policy.Bounds `yaml:"safety"`

	// CheckpointEvery saves all tier state after this many learned trades.
	// Zero disables automatic checkpoints.
	CheckpointEvery int `yaml:"checkpoint_every"`

	// AuditSize bounds the in-memory ring of recent decisions.
	AuditSize int `yaml:"audit_size"`

	// HistoryWindow bounds the rolling return window behind the
	// performance metrics.
	HistoryWindow int `yaml:"history_window"`

	// PendingCap bounds decisions retained while awaiting an outcome.
	PendingCap int `yaml:"pending_cap"`

	// Seed fixes the random stream for replayable runs. Zero seeds from
	// the clock.
	Seed int64 `yaml:"seed"`

	Breaker BreakerConfig `yaml:"breaker"`
	Bandit  bandit.Config `yaml:"bandit"`
	Regime  regime.Config `yaml:"regime"`
	Policy  policy.Config `yaml:"policy"`
	Meta    meta.Config   `yaml:"meta"`
}

// DefaultConfig returns the full-stack defaults.
func DefaultConfig() Config {
	return Config{
		Tiers:           DefaultTierFlags(),
		EnterThreshold:  6.5,
		WatchThreshold:  4.0,
		Safety:          policy.DefaultBounds(),
		CheckpointEvery: 10,
		AuditSize:       256,
		HistoryWindow:   500,
		PendingCap:      1024,
		Breaker:         DefaultBreakerConfig(),
		Bandit:          bandit.DefaultConfig(),
		Regime:          regime.DefaultConfig(),
		Policy:          policy.DefaultConfig(),
		Meta:            meta.DefaultConfig(),
	}
}

func (c *Config) applyDefaults() {
	if c.EnterThreshold <= 0 {
		c.EnterThreshold = 6.5
	}
	if c.WatchThreshold <= 0 {
		c.WatchThreshold = 4.0
	}
	if c.Safety == (policy.Bounds{}) {
		c.Safety = policy.DefaultBounds()
	}
	if c.AuditSize <= 0 {
		c.AuditSize = 256
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 500
	}
	if c.PendingCap <= 0 {
		c.PendingCap = 1024
	}
}

// Validate rejects configurations that cannot produce coherent decisions.
func (c Config) Validate() error {
	if c.WatchThreshold >= c.EnterThreshold {
		return fmt.Errorf("%w: watch threshold %.2f must be below enter threshold %.2f",
			model.ErrValidation, c.WatchThreshold, c.EnterThreshold)
	}
	if err := c.Safety.Validate(); err != nil {
		return err
	}
	return nil
}

// Recorder receives the audit trail. Recording is best effort: failures are
// logged and never propagate into Decide or Learn.
type Recorder interface {
	RecordDecision(ctx context.Context, d model.DecisionRecord) error
	RecordTrade(ctx context.Context, t model.TradeRecord) error
}

// Engine is the orchestrator.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	log zerolog.Logger

	rng        *rand.Rand
	classifier *regime.Classifier
	bandit     *bandit.Learner
	agent      *policy.Agent
	meta       *meta.Learner
	reward     policy.RewardConfig

	pending      map[string]*model.DecisionRecord
	pendingOrder []string
	learned      map[string]struct{}
	learnedOrder []string

	audit []model.DecisionRecord

	perf        *perfTracker
	brk         *breaker
	exposure    float64
	lastMetrics model.LearningMetrics

	store    state.Store
	recorder Recorder
	metrics  *telemetry.Metrics

	sinceCheckpoint int
}

// New assembles an engine. store and recorder may be nil; metrics may be nil,
// in which case a private metric set is created.
func New(cfg Config, store state.Store, recorder Recorder, metrics *telemetry.Metrics, log zerolog.Logger) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = telemetry.New()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	reward := cfg.Policy.Reward
	if reward == (policy.RewardConfig{}) {
		reward = policy.DefaultRewardConfig()
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		rng:        rng,
		classifier: regime.NewClassifier(cfg.Regime),
		bandit:     bandit.NewLearner(cfg.Bandit, rng),
		agent:      policy.NewAgent(cfg.Policy, rng),
		reward:     reward,
		pending:    make(map[string]*model.DecisionRecord),
		learned:    make(map[string]struct{}),
		perf:       newPerfTracker(cfg.HistoryWindow),
		brk:        newBreaker(cfg.Breaker),
		store:      store,
		recorder:   recorder,
		metrics:    metrics,
	}

	if cfg.Tiers.Meta {
		ml, err := meta.New(cfg.Meta, meta.DefaultProfiles(), rng)
		if err != nil {
			return nil, err
		}
		e.meta = ml
	}
	return e, nil
}

// Decide runs one request through the stack and returns the decision record.
// The record is already retained for learning; callers treat it as immutable.
// The engine's internally tracked portfolio view feeds the policy state; use
// DecideWithPortfolio when the caller has an authoritative one.
func (e *Engine) Decide(ctx context.Context, scores model.ComponentScores, mctx model.MarketContext) (model.DecisionRecord, error) {
	return e.DecideWithPortfolio(ctx, scores, mctx, nil)
}

// DecideWithPortfolio is Decide with a caller-supplied portfolio snapshot
// overriding the engine's internal exposure/drawdown view.
func (e *Engine) DecideWithPortfolio(ctx context.Context, scores model.ComponentScores, mctx model.MarketContext, portfolio *policy.PortfolioState) (model.DecisionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := scores.Validate(); err != nil {
		return model.DecisionRecord{}, err
	}
	if err := mctx.Validate(); err != nil {
		return model.DecisionRecord{}, err
	}

	rs, err := e.observeRegime(mctx)
	if err != nil {
		return model.DecisionRecord{}, err
	}
	effective := e.effectiveRegime(rs, mctx)

	learnerName := ""
	banditL, agent := e.bandit, e.agent
	if e.cfg.Tiers.Meta {
		sp, err := e.meta.Select(effective)
		if err != nil {
			return model.DecisionRecord{}, err
		}
		learnerName, banditL, agent = sp.Name, sp.Bandit, sp.Policy
	}

	weights := model.UniformWeights()
	if e.cfg.Tiers.Bandit {
		weights, err = banditL.SelectWeights(effective)
		if err != nil {
			return model.DecisionRecord{}, err
		}
	}

	d := model.DecisionRecord{
		ID:               model.NewDecisionID(),
		Timestamp:        time.Now().UTC(),
		Scores:           scores,
		Context:          mctx,
		Weights:          weights.Normalized(),
		Regime:           effective,
		RegimeConfidence: rs.Confidence,
		Learner:          learnerName,
		Composite:        weights.Composite(scores),
	}

	switch {
	case e.brk.tripped():
		d.Action = model.ActionStandAside
		d.BreakerForced = true
	case d.Composite >= e.cfg.EnterThreshold:
		d.Action = model.ActionEnter
	case d.Composite >= e.cfg.WatchThreshold:
		d.Action = model.ActionWatch
	default:
		d.Action = model.ActionStandAside
	}

	if d.Action == model.ActionEnter && e.cfg.Tiers.Policy {
		pf := e.portfolioState()
		if portfolio != nil {
			pf = *portfolio
		}
		st := policy.BuildState(scores, effective, pf, e.perf.winRate(), e.lastMetrics.AvgReturn)
		raw := agent.DecideAction(d.ID, st)
		params, clamped := e.cfg.Safety.Clamp(raw)
		d.Params = &params
		d.Clamped = clamped
		if clamped {
			e.metrics.ClampsTotal.Inc()
		}
		e.exposure += params.PositionPct
	}

	e.retain(&d)
	e.metrics.DecisionsTotal.WithLabelValues(string(d.Regime), string(d.Action)).Inc()

	if e.recorder != nil {
		if err := e.recorder.RecordDecision(ctx, d); err != nil {
			e.log.Warn().Err(err).Str("decision_id", d.ID).Msg("decision journal write failed")
		}
	}

	e.log.Debug().
		Str("decision_id", d.ID).
		Str("regime", string(d.Regime)).
		Str("action", string(d.Action)).
		Float64("composite", d.Composite).
		Str("learner", d.Learner).
		Msg("decision")
	return d, nil
}

// Learn feeds one completed trade back into every enabled tier and returns
// the refreshed rolling metrics. Duplicate trades and trades referencing
// unknown decisions are rejected before any tier state changes.
func (e *Engine) Learn(ctx context.Context, trade model.TradeRecord) (model.LearningMetrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	if err := trade.Validate(); err != nil {
		return e.lastMetrics, err
	}
	if _, dup := e.learned[trade.ID]; dup {
		return e.lastMetrics, fmt.Errorf("%w: trade %s already learned", model.ErrDuplicateTrade, trade.ID)
	}
	d, ok := e.pending[trade.DecisionID]
	if !ok {
		return e.lastMetrics, fmt.Errorf("%w: decision %s", model.ErrUnknownDecision, trade.DecisionID)
	}

	outcome := trade.ComputeOutcome()
	now := time.Now().UTC()

	e.perf.record(outcome)
	dd := e.perf.drawdown()
	violated := d.Params != nil && outcome.PnLPct < -d.Params.StopPct
	reward := e.reward.Shape(outcome.PnLPct, dd, violated)

	if e.cfg.Tiers.Regime {
		if err := e.classifier.RecordOutcome(d.Regime, outcome); err != nil {
			e.log.Warn().Err(err).Msg("regime outcome record failed")
		}
	}

	if e.cfg.Tiers.Meta {
		// Weight posteriors are off-policy safe: every specialist learns
		// from every trade. Only the specialist that owned the decision
		// gets the policy update and the selection credit.
		for _, sp := range e.meta.Specialists() {
			if e.cfg.Tiers.Bandit {
				if err := sp.Bandit.Update(outcome.Result, d.Weights, d.Regime); err != nil {
					e.log.Warn().Err(err).Str("specialist", sp.Name).Msg("bandit update failed")
				}
			}
		}
		if sp, ok := e.meta.ByName(d.Learner); ok {
			if e.cfg.Tiers.Policy {
				sp.Policy.Feedback(d.ID, outcome.PnLPct, dd, violated)
			}
			if err := e.meta.UpdateValue(d.Regime, d.Learner, reward); err != nil {
				e.log.Warn().Err(err).Msg("meta value update failed")
			}
		}
	} else {
		if e.cfg.Tiers.Bandit {
			if err := e.bandit.Update(outcome.Result, d.Weights, d.Regime); err != nil {
				e.log.Warn().Err(err).Msg("bandit update failed")
			}
		}
		if e.cfg.Tiers.Policy {
			e.agent.Feedback(d.ID, outcome.PnLPct, dd, violated)
		}
	}

	e.lastMetrics = e.perf.metrics(now)
	if e.brk.observe(outcome.Result == model.OutcomeLoss, e.perf.drawdown(),
		e.lastMetrics.RiskAdjusted, e.lastMetrics.TradeCount, now) {
		e.metrics.BreakerTripped.Set(1)
		e.log.Warn().
			Str("reason", e.brk.status.Reason).
			Float64("drawdown", e.perf.drawdown()).
			Msg("circuit breaker tripped")
	}

	if d.Params != nil {
		e.exposure -= d.Params.PositionPct
		if e.exposure < 0 {
			e.exposure = 0
		}
	}

	e.markLearned(trade.ID)
	e.release(d.ID)

	e.metrics.TradesLearnedTotal.WithLabelValues(string(outcome.Result)).Inc()
	e.metrics.LearnDuration.Observe(time.Since(start).Seconds())

	if e.recorder != nil {
		if err := e.recorder.RecordTrade(ctx, trade); err != nil {
			e.log.Warn().Err(err).Str("trade_id", trade.ID).Msg("trade journal write failed")
		}
	}

	e.sinceCheckpoint++
	if e.store != nil && e.cfg.CheckpointEvery > 0 && e.sinceCheckpoint >= e.cfg.CheckpointEvery {
		if err := e.saveLocked(ctx); err != nil {
			e.log.Error().Err(err).Msg("checkpoint failed")
		}
		e.sinceCheckpoint = 0
	}
	return e.lastMetrics, nil
}

// observeRegime advances the classifier and counts committed switches.
func (e *Engine) observeRegime(mctx model.MarketContext) (model.RegimeState, error) {
	if !e.cfg.Tiers.Regime {
		return model.RegimeState{Current: model.RegimeUnknown}, nil
	}
	prev := e.classifier.State().Current
	rs, err := e.classifier.Observe(mctx)
	if err != nil {
		return rs, err
	}
	if prev != model.RegimeUnknown && rs.Current != prev {
		e.metrics.RegimeSwitchesTotal.Inc()
	}
	return rs, nil
}

// effectiveRegime maps an unknown classifier state onto a usable regime: the
// caller's hint when valid, choppy-range otherwise. Learners never see
// RegimeUnknown.
func (e *Engine) effectiveRegime(rs model.RegimeState, mctx model.MarketContext) model.Regime {
	if rs.Current != model.RegimeUnknown {
		return rs.Current
	}
	if mctx.RegimeHint != model.RegimeUnknown && mctx.RegimeHint.Valid() {
		return mctx.RegimeHint
	}
	return model.RegimeChoppyRange
}

func (e *Engine) portfolioState() policy.PortfolioState {
	exp := e.exposure
	if exp > 1 {
		exp = 1
	}
	return policy.PortfolioState{Exposure: exp, Drawdown: e.perf.drawdown()}
}

func (e *Engine) retain(d *model.DecisionRecord) {
	e.pending[d.ID] = d
	e.pendingOrder = append(e.pendingOrder, d.ID)
	for len(e.pendingOrder) > e.cfg.PendingCap {
		oldest := e.pendingOrder[0]
		e.pendingOrder = e.pendingOrder[1:]
		// An evicted decision's trade will never be learned, so give its
		// reserved exposure back.
		if old, ok := e.pending[oldest]; ok && old.Params != nil {
			e.exposure -= old.Params.PositionPct
			if e.exposure < 0 {
				e.exposure = 0
			}
		}
		delete(e.pending, oldest)
	}

	e.audit = append(e.audit, *d)
	if len(e.audit) > e.cfg.AuditSize {
		e.audit = e.audit[len(e.audit)-e.cfg.AuditSize:]
	}
}

func (e *Engine) release(decisionID string) {
	delete(e.pending, decisionID)
	for i, id := range e.pendingOrder {
		if id == decisionID {
			e.pendingOrder = append(e.pendingOrder[:i], e.pendingOrder[i+1:]...)
			break
		}
	}
}

func (e *Engine) markLearned(tradeID string) {
	e.learned[tradeID] = struct{}{}
	e.learnedOrder = append(e.learnedOrder, tradeID)
	const learnedCap = 4096
	for len(e.learnedOrder) > learnedCap {
		oldest := e.learnedOrder[0]
		e.learnedOrder = e.learnedOrder[1:]
		delete(e.learned, oldest)
	}
}

// Metrics returns the rolling performance statistics.
func (e *Engine) Metrics() model.LearningMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastMetrics
}

// RegimeState returns the committed regime state.
func (e *Engine) RegimeState() model.RegimeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier.State()
}

// RegimeBelief returns the classifier's filtered distribution.
func (e *Engine) RegimeBelief() map[model.Regime]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier.Belief()
}

// RegimeStats returns per-regime realized outcome statistics.
func (e *Engine) RegimeStats() map[model.Regime]regime.OutcomeStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier.Stats()
}

// MeanWeights returns each learner's posterior-mean signal weights for a
// regime, keyed by learner name ("default" when the meta tier is off).
func (e *Engine) MeanWeights(r model.Regime) map[string]model.ComponentWeights {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]model.ComponentWeights)
	if e.cfg.Tiers.Meta {
		for _, sp := range e.meta.Specialists() {
			out[sp.Name] = sp.Bandit.MeanWeights(r)
		}
		return out
	}
	out["default"] = e.bandit.MeanWeights(r)
	return out
}

// LearnerValues returns the meta tier's per-regime specialist values. Empty
// when the meta tier is off.
func (e *Engine) LearnerValues(r model.Regime) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.cfg.Tiers.Meta {
		return map[string]float64{}
	}
	return e.meta.Values(r)
}

// RecentDecisions returns up to n recent decisions, newest first.
func (e *Engine) RecentDecisions(n int) []model.DecisionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= 0 || n > len(e.audit) {
		n = len(e.audit)
	}
	out := make([]model.DecisionRecord, 0, n)
	for i := len(e.audit) - 1; i >= len(e.audit)-n; i-- {
		out = append(out, e.audit[i])
	}
	return out
}

// Breaker returns the current breaker status.
func (e *Engine) Breaker() BreakerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.brk.status
}

// ResetBreaker clears a tripped breaker. This is the only way the latch
// releases; it is meant to be a deliberate operator action.
func (e *Engine) ResetBreaker() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.brk.reset()
	e.metrics.BreakerTripped.Set(0)
	e.log.Info().Msg("circuit breaker reset")
}

// PendingDecisions reports decisions still awaiting an outcome.
func (e *Engine) PendingDecisions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
