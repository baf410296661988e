package bandit

import (
	"fmt"

	"quantmind/internal/model"
)

// Snapshot is the serializable form of the learner: posteriors keyed by
// (regime, signal). The prior/cap configuration is not part of the snapshot;
// it comes from config on restore.
type Snapshot struct {
	Arms map[model.Regime]map[model.Signal]ArmState `json:"arms"`
}

// Snapshot copies the current posteriors.
func (l *Learner) Snapshot() Snapshot {
	out := Snapshot{Arms: make(map[model.Regime]map[model.Signal]ArmState, len(l.arms))}
	for regime, byRegime := range l.arms {
		arms := make(map[model.Signal]ArmState, len(byRegime))
		for sig, a := range byRegime {
			arms[sig] = *a
		}
		out.Arms[regime] = arms
	}
	return out
}

// Restore replaces the posteriors with a previously saved snapshot. Arms with
// non-positive parameters are rejected: a corrupt posterior must surface as a
// load failure, not silently skew sampling.
func (l *Learner) Restore(snap Snapshot) error {
	arms := make(map[model.Regime]map[model.Signal]*ArmState, len(snap.Arms))
	for regime, byRegime := range snap.Arms {
		if !regime.Valid() {
			return fmt.Errorf("bandit snapshot references unknown regime %q", regime)
		}
		restored := make(map[model.Signal]*ArmState, len(byRegime))
		for sig, a := range byRegime {
			if a.Alpha <= 0 || a.Beta <= 0 {
				return fmt.Errorf("bandit snapshot arm (%s, %s) has non-positive parameters", regime, sig)
			}
			copied := a
			restored[sig] = &copied
		}
		arms[regime] = restored
	}
	l.arms = arms
	return nil
}
