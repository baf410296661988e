package model

import "time"

// LearningMetrics are rolling performance statistics derived from the stream
// of completed trades. Recomputed incrementally after each Learn call; read
// only for monitoring.
type LearningMetrics struct {
	TradeCount   int     `json:"trade_count"`
	WinRate      float64 `json:"win_rate"`      // wins / decided (breakevens excluded)
	RiskAdjusted float64 `json:"risk_adjusted"` // mean return / return stdev over the window
	MaxDrawdown  float64 `json:"max_drawdown"`  // worst peak-to-trough equity drop, fraction
	AvgReturn    float64 `json:"avg_return"`    // mean per-trade fractional return

	UpdatedAt time.Time `json:"updated_at"`
}
