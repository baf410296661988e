package model

import (
	"time"

	"github.com/google/uuid"
)

// ActionClass is the directional decision class. ActionStandAside is the
// conservative class the circuit breaker forces.
type ActionClass string

const (
	ActionEnter      ActionClass = "enter"
	ActionWatch      ActionClass = "watch"
	ActionStandAside ActionClass = "stand_aside"
)

// ActionParams are the continuous control outputs of the policy agent. All
// four dimensions are bounded by hard safety rails the sampler cannot exceed.
type ActionParams struct {
	PositionPct float64 `json:"position_pct"` // fraction of equity, [0, max]
	HoldHours   float64 `json:"hold_hours"`   // target holding duration
	StopPct     float64 `json:"stop_pct"`     // stop-loss distance, fraction
	TargetPct   float64 `json:"target_pct"`   // take-profit distance, fraction
}

// DecisionRecord captures everything that went into one decision. Created
// once per Decide call and never mutated afterwards; trades reference it by
// id.
type DecisionRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Scores  ComponentScores  `json:"scores"`
	Context MarketContext    `json:"context"`
	Weights ComponentWeights `json:"weights"`

	Regime           Regime  `json:"regime"`
	RegimeConfidence float64 `json:"regime_confidence"`

	// Learner names the specialized learner that produced the decision.
	// Empty when the meta tier is disabled.
	Learner string `json:"learner,omitempty"`

	Composite float64     `json:"composite"` // 0-10 weighted score
	Action    ActionClass `json:"action"`

	// Params is nil when the control-policy tier is disabled or the
	// decision class is stand_aside.
	Params *ActionParams `json:"params,omitempty"`

	// Clamped records that at least one action parameter hit a hard bound
	// and was clamped rather than rejected. Kept for auditing.
	Clamped bool `json:"clamped,omitempty"`

	// BreakerForced records that the circuit breaker overrode the learners.
	BreakerForced bool `json:"breaker_forced,omitempty"`
}

// NewDecisionID returns a fresh decision identifier.
func NewDecisionID() string {
	return uuid.NewString()
}
