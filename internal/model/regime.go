package model

// Regime is a discrete, mutually exclusive classification of market
// conditions. The enumeration is closed; RegimeUnknown is the cold-start
// state and is never returned once enough context observations accumulate.
type Regime string

const (
	RegimeUnknown       Regime = "unknown"
	RegimeBullMomentum  Regime = "bull_momentum"
	RegimeBearDefensive Regime = "bear_defensive"
	RegimeChoppyRange   Regime = "choppy_range"
	RegimeCrisis        Regime = "crisis"
	RegimeThemeDriven   Regime = "theme_driven"
)

// Regimes returns the classifiable regimes in canonical order, excluding
// RegimeUnknown. The order defines one-hot layout in policy state vectors.
func Regimes() []Regime {
	return []Regime{
		RegimeBullMomentum,
		RegimeBearDefensive,
		RegimeChoppyRange,
		RegimeCrisis,
		RegimeThemeDriven,
	}
}

// Valid reports whether r is a member of the closed enumeration
// (RegimeUnknown included).
func (r Regime) Valid() bool {
	if r == RegimeUnknown {
		return true
	}
	for _, known := range Regimes() {
		if r == known {
			return true
		}
	}
	return false
}

// RegimeState is the classifier-owned view of current conditions. Previous is
// kept for transition tracking; Confidence gates regime changes (hysteresis).
type RegimeState struct {
	Current    Regime  `json:"current"`
	Confidence float64 `json:"confidence"` // [0, 1]
	Previous   Regime  `json:"previous"`
}
