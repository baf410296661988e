package regime

import (
	"math"

	"quantmind/internal/model"
)

// likelihood scores how well a context snapshot matches a regime's
// signature, in (0, 1]. Each regime combines three or four indicator shapes;
// the floor keeps every regime reachable so the posterior never zeroes out.
func likelihood(r model.Regime, ctx model.MarketContext) float64 {
	var score float64
	switch r {
	case model.RegimeBullMomentum:
		score = geomean(
			rampUp(ctx.IndexReturn, 0.000, 0.010),
			rampUp(ctx.PctAboveTrend, 0.50, 0.75),
			rampUp(ctx.Breadth, 0.50, 0.70),
			rampDown(ctx.VolIndex, 15, 30),
		)
	case model.RegimeBearDefensive:
		score = geomean(
			rampDown(ctx.IndexReturn, -0.010, 0.000),
			rampDown(ctx.PctAboveTrend, 0.30, 0.50),
			rampUp(ctx.VolIndex, 18, 32),
		)
	case model.RegimeChoppyRange:
		score = geomean(
			bump(ctx.IndexReturn, 0.0, 0.008),
			bump(ctx.PctAboveTrend, 0.5, 0.25),
			bump(ctx.VolIndex, 18, 12),
		)
	case model.RegimeCrisis:
		score = geomean(
			rampUp(ctx.VolIndex, 30, 45),
			rampDown(ctx.IndexReturn, -0.040, -0.010),
			rampDown(ctx.Breadth, 0.20, 0.40),
		)
	case model.RegimeThemeDriven:
		score = geomean(
			rampUp(ctx.ThemeHeat, 5, 8),
			bump(ctx.Breadth, 0.45, 0.25),
			rampDown(ctx.VolIndex, 20, 38),
		)
	default:
		return likelihoodFloor
	}
	if score < likelihoodFloor {
		return likelihoodFloor
	}
	return score
}

const likelihoodFloor = 0.01

// rampUp maps x onto [0, 1]: 0 at or below lo, 1 at or above hi.
func rampUp(x, lo, hi float64) float64 {
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	return (x - lo) / (hi - lo)
}

// rampDown is the mirror of rampUp: 1 at or below lo, 0 at or above hi.
func rampDown(x, lo, hi float64) float64 {
	return 1 - rampUp(x, lo, hi)
}

// bump is a triangular membership centered at c with half-width w.
func bump(x, c, w float64) float64 {
	d := x - c
	if d < 0 {
		d = -d
	}
	if d >= w {
		return 0
	}
	return 1 - d/w
}

// geomean returns the geometric mean with a small floor per factor so one
// zero indicator softens the score instead of annihilating it.
func geomean(vals ...float64) float64 {
	prod := 1.0
	for _, v := range vals {
		if v < 0.05 {
			v = 0.05
		}
		prod *= v
	}
	return math.Pow(prod, 1.0/float64(len(vals)))
}
