package model

import (
	"fmt"
	"math"
	"time"
)

// MarketContext is an immutable snapshot of market-wide indicators taken at
// decision time. All fields are supplied by the data-fetch collaborators; the
// engine never reaches out for data itself.
type MarketContext struct {
	IndexReturn   float64 `json:"index_return"`    // broad index daily return, fraction, [-0.5, 0.5]
	VolIndex      float64 `json:"vol_index"`       // volatility index level, [0, 200]
	PctAboveTrend float64 `json:"pct_above_trend"` // share of universe above its 50d trend, [0, 1]
	Breadth       float64 `json:"breadth"`         // advancers / (advancers + decliners), [0, 1]
	ThemeHeat     float64 `json:"theme_heat"`      // aggregate thematic momentum, 0-10

	// RegimeHint optionally carries a previously computed regime label.
	// Classification ignores it except as a tie-break during cold start.
	RegimeHint Regime `json:"regime_hint,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects contexts with out-of-range or non-finite indicators.
func (mc MarketContext) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"index_return", mc.IndexReturn, -0.5, 0.5},
		{"vol_index", mc.VolIndex, 0, 200},
		{"pct_above_trend", mc.PctAboveTrend, 0, 1},
		{"breadth", mc.Breadth, 0, 1},
		{"theme_heat", mc.ThemeHeat, 0, 10},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%w: context %s is not finite", ErrValidation, c.name)
		}
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: context %s value %.4f outside [%g, %g]",
				ErrValidation, c.name, c.value, c.min, c.max)
		}
	}
	return nil
}
