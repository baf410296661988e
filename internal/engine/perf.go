package engine

import (
	"time"

	"github.com/montanaflynn/stats"

	"quantmind/internal/model"
)

// perfTracker maintains rolling performance over the trade stream: a bounded
// window of fractional returns plus a compounded equity curve for drawdown.
type perfTracker struct {
	window int

	returns []float64
	trades  int
	wins    int
	losses  int

	equity      float64
	peak        float64
	maxDrawdown float64
}

func newPerfTracker(window int) *perfTracker {
	if window <= 0 {
		window = 500
	}
	return &perfTracker{window: window, equity: 1.0, peak: 1.0}
}

func (p *perfTracker) record(out model.TradeOutcome) {
	p.trades++
	switch out.Result {
	case model.OutcomeWin:
		p.wins++
	case model.OutcomeLoss:
		p.losses++
	}

	p.returns = append(p.returns, out.PnLPct)
	if len(p.returns) > p.window {
		p.returns = p.returns[len(p.returns)-p.window:]
	}

	p.equity *= 1 + out.PnLPct
	if p.equity > p.peak {
		p.peak = p.equity
	}
	if dd := p.drawdown(); dd > p.maxDrawdown {
		p.maxDrawdown = dd
	}
}

// drawdown is the current peak-to-now equity drop as a fraction.
func (p *perfTracker) drawdown() float64 {
	if p.peak <= 0 {
		return 0
	}
	return (p.peak - p.equity) / p.peak
}

func (p *perfTracker) winRate() float64 {
	decided := p.wins + p.losses
	if decided == 0 {
		return 0
	}
	return float64(p.wins) / float64(decided)
}

func (p *perfTracker) metrics(now time.Time) model.LearningMetrics {
	m := model.LearningMetrics{
		TradeCount:  p.trades,
		WinRate:     p.winRate(),
		MaxDrawdown: p.maxDrawdown,
		UpdatedAt:   now,
	}
	if len(p.returns) == 0 {
		return m
	}

	mean, err := stats.Mean(p.returns)
	if err != nil {
		return m
	}
	m.AvgReturn = mean

	if len(p.returns) >= 2 {
		sd, err := stats.StandardDeviation(p.returns)
		if err == nil && sd > 0 {
			m.RiskAdjusted = mean / sd
		}
	}
	return m
}

// perfSnapshot is the serializable tracker state.
type perfSnapshot struct {
	Returns     []float64 `json:"returns"`
	Trades      int       `json:"trades"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Equity      float64   `json:"equity"`
	Peak        float64   `json:"peak"`
	MaxDrawdown float64   `json:"max_drawdown"`
}

func (p *perfTracker) snapshot() perfSnapshot {
	out := perfSnapshot{
		Returns:     append([]float64(nil), p.returns...),
		Trades:      p.trades,
		Wins:        p.wins,
		Losses:      p.losses,
		Equity:      p.equity,
		Peak:        p.peak,
		MaxDrawdown: p.maxDrawdown,
	}
	return out
}

func (p *perfTracker) restore(snap perfSnapshot) {
	p.returns = append([]float64(nil), snap.Returns...)
	if len(p.returns) > p.window {
		p.returns = p.returns[len(p.returns)-p.window:]
	}
	p.trades = snap.Trades
	p.wins = snap.Wins
	p.losses = snap.Losses
	p.equity = snap.Equity
	p.peak = snap.Peak
	p.maxDrawdown = snap.MaxDrawdown
	if p.equity <= 0 {
		p.equity = 1.0
	}
	if p.peak < p.equity {
		p.peak = p.equity
	}
}
