package policy

import "quantmind/internal/model"

// StateDim is the fixed length of the agent's input vector: portfolio
// exposure, running drawdown, the five normalized signal scores, a one-hot
// over the five classifiable regimes, and two rolling-performance features.
const StateDim = 14

// ActionDim is the fixed length of the action vector: position size, hold
// duration, stop distance, target distance.
const ActionDim = 4

// PortfolioState is the caller-supplied view of current holdings used to
// build the state vector. Values outside [0, 1] are treated as 0.
type PortfolioState struct {
	Exposure float64 `json:"exposure"` // invested fraction of equity, [0, 1]
	Drawdown float64 `json:"drawdown"` // current peak-to-trough drop, [0, 1]
}

// BuildState assembles the fixed-dimension state vector in a stable layout.
// The layout is part of the persisted-parameter contract: changing it
// invalidates saved policy blobs.
func BuildState(scores model.ComponentScores, regime model.Regime, portfolio PortfolioState, winRate, avgReturn float64) [StateDim]float64 {
	var s [StateDim]float64
	s[0] = unit(portfolio.Exposure)
	s[1] = unit(portfolio.Drawdown)

	for i, sig := range model.Signals() {
		s[2+i] = scores.Normalized(sig)
	}

	for i, r := range model.Regimes() {
		if r == regime {
			s[7+i] = 1
		}
	}

	s[12] = unit(winRate)
	s[13] = clampSym(avgReturn, 0.25)
	return s
}

func unit(v float64) float64 {
	if v < 0 || v > 1 {
		return 0
	}
	return v
}

func clampSym(v, lim float64) float64 {
	if v > lim {
		return lim
	}
	if v < -lim {
		return -lim
	}
	return v
}
