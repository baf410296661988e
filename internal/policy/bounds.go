package policy

import (
	"fmt"

	"quantmind/internal/model"
)

// Bounds are the hard safety rails on every action dimension. They are
// configuration, not learned state: the sampler squashes into them before
// training converges and the orchestrator clamps against them afterwards.
type Bounds struct {
	PositionPctMin float64 `yaml:"position_pct_min"`
	PositionPctMax float64 `yaml:"position_pct_max"`
	HoldHoursMin   float64 `yaml:"hold_hours_min"`
	HoldHoursMax   float64 `yaml:"hold_hours_max"`
	StopPctMin     float64 `yaml:"stop_pct_min"`
	StopPctMax     float64 `yaml:"stop_pct_max"`
	TargetPctMin   float64 `yaml:"target_pct_min"`
	TargetPctMax   float64 `yaml:"target_pct_max"`
}

// DefaultBounds are the balanced-profile rails.
func DefaultBounds() Bounds {
	return Bounds{
		PositionPctMin: 0.01,
		PositionPctMax: 0.10,
		HoldHoursMin:   4,
		HoldHoursMax:   240,
		StopPctMin:     0.01,
		StopPctMax:     0.15,
		TargetPctMin:   0.02,
		TargetPctMax:   0.40,
	}
}

// Validate rejects inverted or non-positive ranges.
func (b Bounds) Validate() error {
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"position_pct", b.PositionPctMin, b.PositionPctMax},
		{"hold_hours", b.HoldHoursMin, b.HoldHoursMax},
		{"stop_pct", b.StopPctMin, b.StopPctMax},
		{"target_pct", b.TargetPctMin, b.TargetPctMax},
	}
	for _, r := range ranges {
		if r.min < 0 || r.max <= r.min {
			return fmt.Errorf("%w: bounds for %s invalid: [%g, %g]",
				model.ErrValidation, r.name, r.min, r.max)
		}
	}
	return nil
}

// lows and highs expose the bounds in action-vector order.
func (b Bounds) lows() [ActionDim]float64 {
	return [ActionDim]float64{b.PositionPctMin, b.HoldHoursMin, b.StopPctMin, b.TargetPctMin}
}

func (b Bounds) highs() [ActionDim]float64 {
	return [ActionDim]float64{b.PositionPctMax, b.HoldHoursMax, b.StopPctMax, b.TargetPctMax}
}

// Clamp forces params inside the rails. The second return reports whether
// any dimension actually moved, for audit recording.
func (b Bounds) Clamp(p model.ActionParams) (model.ActionParams, bool) {
	clamped := false
	clampDim := func(v, lo, hi float64) float64 {
		if v < lo {
			clamped = true
			return lo
		}
		if v > hi {
			clamped = true
			return hi
		}
		return v
	}
	p.PositionPct = clampDim(p.PositionPct, b.PositionPctMin, b.PositionPctMax)
	p.HoldHours = clampDim(p.HoldHours, b.HoldHoursMin, b.HoldHoursMax)
	p.StopPct = clampDim(p.StopPct, b.StopPctMin, b.StopPctMax)
	p.TargetPct = clampDim(p.TargetPct, b.TargetPctMin, b.TargetPctMax)
	return p, clamped
}

// Contains reports whether params sit inside the rails.
func (b Bounds) Contains(p model.ActionParams) bool {
	_, clamped := b.Clamp(p)
	return !clamped
}
