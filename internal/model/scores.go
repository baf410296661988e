package model

import (
	"fmt"
	"math"
)

// Signal identifies one independently scored opinion about an instrument.
// The set is closed and versioned: weight semantics only stay meaningful
// across releases if the enumeration never silently grows.
type Signal string

const (
	SignalTheme        Signal = "theme"
	SignalTechnical    Signal = "technical"
	SignalAIConfidence Signal = "ai_confidence"
	SignalSentiment    Signal = "sentiment"
	SignalEarnings     Signal = "earnings"
)

// Signals returns all signals in canonical order. The order is load-bearing:
// it defines the layout of policy state vectors and persisted posteriors.
func Signals() []Signal {
	return []Signal{
		SignalTheme,
		SignalTechnical,
		SignalAIConfidence,
		SignalSentiment,
		SignalEarnings,
	}
}

// ScoreRange declares the valid inclusive range for a signal's raw score.
type ScoreRange struct {
	Min float64
	Max float64
}

// Range returns the declared range contract for the signal. Theme, technical,
// sentiment and earnings are 0-10 analyst-style scores; AI confidence is a
// 0-1 probability.
func (s Signal) Range() ScoreRange {
	if s == SignalAIConfidence {
		return ScoreRange{Min: 0, Max: 1}
	}
	return ScoreRange{Min: 0, Max: 10}
}

// ComponentScores is an immutable snapshot of every signal score at decision
// time. Field ranges follow Signal.Range.
type ComponentScores struct {
	Theme        float64 `json:"theme"`         // 0-10
	Technical    float64 `json:"technical"`     // 0-10
	AIConfidence float64 `json:"ai_confidence"` // 0-1
	Sentiment    float64 `json:"sentiment"`     // 0-10
	Earnings     float64 `json:"earnings"`      // 0-10
}

// Get returns the raw score for a signal.
func (cs ComponentScores) Get(s Signal) float64 {
	switch s {
	case SignalTheme:
		return cs.Theme
	case SignalTechnical:
		return cs.Technical
	case SignalAIConfidence:
		return cs.AIConfidence
	case SignalSentiment:
		return cs.Sentiment
	case SignalEarnings:
		return cs.Earnings
	default:
		return 0
	}
}

// Normalized returns the score mapped onto [0, 1] using the signal's declared
// range. Only valid after Validate has passed.
func (cs ComponentScores) Normalized(s Signal) float64 {
	r := s.Range()
	if r.Max == r.Min {
		return 0
	}
	return (cs.Get(s) - r.Min) / (r.Max - r.Min)
}

// Validate rejects scores outside their declared range. Out-of-range values
// are never clamped: clamping would silently change rank order between
// signals, which corrupts credit assignment downstream.
func (cs ComponentScores) Validate() error {
	for _, s := range Signals() {
		v := cs.Get(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: signal %s is not finite", ErrValidation, s)
		}
		r := s.Range()
		if v < r.Min || v > r.Max {
			return fmt.Errorf("%w: signal %s score %.4f outside [%g, %g]",
				ErrValidation, s, v, r.Min, r.Max)
		}
	}
	return nil
}
