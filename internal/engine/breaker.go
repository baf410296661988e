package engine

import "time"

// BreakerConfig sets the trip conditions for the learning circuit breaker.
type BreakerConfig struct {
	// MaxDrawdown trips the breaker when the rolling equity drawdown
	// reaches this fraction.
	MaxDrawdown float64 `yaml:"max_drawdown"`

	// LossStreak trips the breaker after this many consecutive losing
	// trades.
	LossStreak int `yaml:"loss_streak"`

	// RiskAdjustedFloor trips the breaker when the rolling risk-adjusted
	// return falls to or below this (negative) level, once MinTrades
	// trades have accumulated.
	RiskAdjustedFloor float64 `yaml:"risk_adjusted_floor"`

	// MinTrades is how many trades the risk-adjusted condition waits for
	// before it can fire.
	MinTrades int `yaml:"min_trades"`
}

// DefaultBreakerConfig returns the shipped trip thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxDrawdown:       0.20,
		LossStreak:        8,
		RiskAdjustedFloor: -0.8,
		MinTrades:         20,
	}
}

func (c *BreakerConfig) applyDefaults() {
	if c.MaxDrawdown <= 0 {
		c.MaxDrawdown = 0.20
	}
	if c.LossStreak <= 0 {
		c.LossStreak = 8
	}
	if c.RiskAdjustedFloor >= 0 {
		c.RiskAdjustedFloor = -0.8
	}
	if c.MinTrades <= 0 {
		c.MinTrades = 20
	}
}

// BreakerStatus is the externally visible breaker state.
type BreakerStatus struct {
	Tripped   bool      `json:"tripped"`
	Reason    string    `json:"reason,omitempty"`
	TrippedAt time.Time `json:"tripped_at,omitempty"`
}

// breaker is the latching risk stop. Unlike a service-call breaker it has no
// cooldown: once tripped it forces stand-aside until a human resets it.
type breaker struct {
	cfg    BreakerConfig
	status BreakerStatus
	streak int
}

func newBreaker(cfg BreakerConfig) *breaker {
	cfg.applyDefaults()
	return &breaker{cfg: cfg}
}

func (b *breaker) tripped() bool {
	return b.status.Tripped
}

// observe folds one realized trade into the trip conditions. Returns true the
// moment the breaker trips.
func (b *breaker) observe(lost bool, drawdown, riskAdjusted float64, trades int, now time.Time) bool {
	if lost {
		b.streak++
	} else {
		b.streak = 0
	}
	if b.status.Tripped {
		return false
	}

	switch {
	case drawdown >= b.cfg.MaxDrawdown:
		b.trip("max drawdown reached", now)
	case b.streak >= b.cfg.LossStreak:
		b.trip("loss streak reached", now)
	case trades >= b.cfg.MinTrades && riskAdjusted <= b.cfg.RiskAdjustedFloor:
		b.trip("risk-adjusted return below floor", now)
	default:
		return false
	}
	return true
}

func (b *breaker) trip(reason string, now time.Time) {
	b.status = BreakerStatus{Tripped: true, Reason: reason, TrippedAt: now}
}

// reset clears the latch and the streak counter.
func (b *breaker) reset() {
	b.status = BreakerStatus{}
	b.streak = 0
}
