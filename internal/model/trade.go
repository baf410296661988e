package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeResult is the coarse classification of a completed trade.
type OutcomeResult string

const (
	OutcomeWin       OutcomeResult = "win"
	OutcomeLoss      OutcomeResult = "loss"
	OutcomeBreakeven OutcomeResult = "breakeven"
)

// breakevenBandPct is the absolute P&L fraction below which a trade counts
// as breakeven instead of a Bernoulli win/loss observation.
const breakevenBandPct = 0.0005

// TradeOutcome is derived from entry/exit/size and never edited directly.
type TradeOutcome struct {
	Result       OutcomeResult `json:"result"`
	PnLPct       float64       `json:"pnl_pct"` // fractional return on the position
	HoldDuration time.Duration `json:"hold_duration"`
}

// TradeRecord references a prior decision and carries the fill data the
// order tracker reports when a position closes.
type TradeRecord struct {
	ID         string `json:"id"`
	DecisionID string `json:"decision_id"`
	Symbol     string `json:"symbol"`

	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Size       float64 `json:"size"` // position size in units, > 0

	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`

	// Outcome is computed once via ComputeOutcome; recomputation yields the
	// identical value (pure function of the fields above).
	Outcome *TradeOutcome `json:"outcome,omitempty"`
}

// Validate rejects trades that cannot produce a well-defined outcome.
func (t TradeRecord) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: trade id empty", ErrValidation)
	}
	if t.DecisionID == "" {
		return fmt.Errorf("%w: trade %s has no decision id", ErrValidation, t.ID)
	}
	if t.EntryPrice <= 0 {
		return fmt.Errorf("%w: trade %s entry price %.6f not positive", ErrValidation, t.ID, t.EntryPrice)
	}
	if t.ExitPrice <= 0 {
		return fmt.Errorf("%w: trade %s exit price %.6f not positive", ErrValidation, t.ID, t.ExitPrice)
	}
	if t.Size <= 0 {
		return fmt.Errorf("%w: trade %s size %.6f not positive", ErrValidation, t.ID, t.Size)
	}
	if t.ExitTime.Before(t.EntryTime) {
		return fmt.Errorf("%w: trade %s exits before it enters", ErrValidation, t.ID)
	}
	return nil
}

// ComputeOutcome derives the outcome from fills. Idempotent: if the outcome
// is already present it is returned unchanged. Prices go through decimal
// arithmetic so that repeated computation cannot drift.
func (t *TradeRecord) ComputeOutcome() TradeOutcome {
	if t.Outcome != nil {
		return *t.Outcome
	}

	entry := decimal.NewFromFloat(t.EntryPrice)
	exit := decimal.NewFromFloat(t.ExitPrice)
	pnl, _ := exit.Sub(entry).Div(entry).Float64()

	result := OutcomeBreakeven
	switch {
	case pnl > breakevenBandPct:
		result = OutcomeWin
	case pnl < -breakevenBandPct:
		result = OutcomeLoss
	}

	out := TradeOutcome{
		Result:       result,
		PnLPct:       pnl,
		HoldDuration: t.ExitTime.Sub(t.EntryTime),
	}
	t.Outcome = &out
	return out
}
