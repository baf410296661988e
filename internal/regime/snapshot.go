package regime

import (
	"fmt"

	"quantmind/internal/model"
)

// Snapshot is the serializable classifier state.
type Snapshot struct {
	State       model.RegimeState                     `json:"state"`
	Observed    int                                   `json:"observed"`
	Belief      map[model.Regime]float64              `json:"belief"`
	Transitions map[model.Regime]map[model.Regime]int `json:"transitions"`
	Stats       map[model.Regime]OutcomeStats         `json:"stats"`
}

// Snapshot copies the current classifier state.
func (c *Classifier) Snapshot() Snapshot {
	snap := Snapshot{
		State:       c.state,
		Observed:    c.observed,
		Belief:      c.Belief(),
		Transitions: make(map[model.Regime]map[model.Regime]int, len(c.transitions)),
		Stats:       make(map[model.Regime]OutcomeStats, len(c.stats)),
	}
	for from, row := range c.transitions {
		copied := make(map[model.Regime]int, len(row))
		for to, n := range row {
			copied[to] = n
		}
		snap.Transitions[from] = copied
	}
	for r, s := range c.stats {
		snap.Stats[r] = *s
	}
	return snap
}

// Restore replaces the classifier state with a saved snapshot.
func (c *Classifier) Restore(snap Snapshot) error {
	if !snap.State.Current.Valid() || !snap.State.Previous.Valid() {
		return fmt.Errorf("regime snapshot carries unknown regime labels %q/%q",
			snap.State.Current, snap.State.Previous)
	}
	if snap.Observed < 0 {
		return fmt.Errorf("regime snapshot has negative observation count")
	}

	belief := uniformBelief()
	if len(snap.Belief) > 0 {
		total := 0.0
		for r, p := range snap.Belief {
			if !r.Valid() || r == model.RegimeUnknown {
				return fmt.Errorf("regime snapshot belief references unknown regime %q", r)
			}
			if p < 0 {
				return fmt.Errorf("regime snapshot belief for %s is negative", r)
			}
			total += p
		}
		if total <= 0 {
			return fmt.Errorf("regime snapshot belief sums to zero")
		}
		for _, r := range model.Regimes() {
			belief[r] = snap.Belief[r] / total
		}
	}

	c.state = snap.State
	c.observed = snap.Observed
	c.belief = belief
	c.transitions = make(map[model.Regime]map[model.Regime]int, len(snap.Transitions))
	for from, row := range snap.Transitions {
		copied := make(map[model.Regime]int, len(row))
		for to, n := range row {
			copied[to] = n
		}
		c.transitions[from] = copied
	}
	c.stats = make(map[model.Regime]*OutcomeStats, len(snap.Stats))
	for r, s := range snap.Stats {
		copied := s
		c.stats[r] = &copied
	}
	return nil
}
