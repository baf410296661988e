package meta

import (
	"fmt"

	"quantmind/internal/bandit"
	"quantmind/internal/model"
	"quantmind/internal/policy"
)

// SpecialistSnapshot bundles one specialist's learner state.
type SpecialistSnapshot struct {
	Bandit bandit.Snapshot `json:"bandit"`
	Policy policy.Snapshot `json:"policy"`
}

// Snapshot is the serializable meta-learner state: per-specialist learner
// state plus the selection value and count tables. Profiles are configuration
// and are not persisted.
type Snapshot struct {
	Specialists map[string]SpecialistSnapshot       `json:"specialists"`
	Values      map[model.Regime]map[string]float64 `json:"values"`
	Picks       map[model.Regime]map[string]int     `json:"picks"`
}

// Snapshot copies the full pool state.
func (l *Learner) Snapshot() Snapshot {
	out := Snapshot{
		Specialists: make(map[string]SpecialistSnapshot, len(l.specialists)),
		Values:      make(map[model.Regime]map[string]float64, len(l.values)),
		Picks:       make(map[model.Regime]map[string]int, len(l.picks)),
	}
	for _, s := range l.specialists {
		out.Specialists[s.Name] = SpecialistSnapshot{
			Bandit: s.Bandit.Snapshot(),
			Policy: s.Policy.Snapshot(),
		}
	}
	for regime, byName := range l.values {
		copied := make(map[string]float64, len(byName))
		for name, v := range byName {
			copied[name] = v
		}
		out.Values[regime] = copied
	}
	for regime, byName := range l.picks {
		copied := make(map[string]int, len(byName))
		for name, n := range byName {
			copied[name] = n
		}
		out.Picks[regime] = copied
	}
	return out
}

// Restore replaces the pool state from a saved snapshot. Specialists present
// in the snapshot but absent from the configured profiles are rejected, as is
// the reverse: a profile change invalidates the saved pool and the caller
// should cold-start instead.
func (l *Learner) Restore(snap Snapshot) error {
	if len(snap.Specialists) != len(l.specialists) {
		return fmt.Errorf("meta snapshot has %d specialists, configuration has %d",
			len(snap.Specialists), len(l.specialists))
	}
	for _, s := range l.specialists {
		sub, ok := snap.Specialists[s.Name]
		if !ok {
			return fmt.Errorf("meta snapshot missing specialist %q", s.Name)
		}
		if err := s.Bandit.Restore(sub.Bandit); err != nil {
			return fmt.Errorf("specialist %q: %w", s.Name, err)
		}
		if err := s.Policy.Restore(sub.Policy); err != nil {
			return fmt.Errorf("specialist %q: %w", s.Name, err)
		}
	}

	values := make(map[model.Regime]map[string]float64, len(snap.Values))
	for regime, byName := range snap.Values {
		if !regime.Valid() {
			return fmt.Errorf("meta snapshot references unknown regime %q", regime)
		}
		copied := make(map[string]float64, len(byName))
		for name, v := range byName {
			if _, ok := l.byName[name]; !ok {
				return fmt.Errorf("meta snapshot value table references unknown specialist %q", name)
			}
			copied[name] = v
		}
		values[regime] = copied
	}
	picks := make(map[model.Regime]map[string]int, len(snap.Picks))
	for regime, byName := range snap.Picks {
		if !regime.Valid() {
			return fmt.Errorf("meta snapshot references unknown regime %q", regime)
		}
		copied := make(map[string]int, len(byName))
		for name, n := range byName {
			if _, ok := l.byName[name]; !ok {
				return fmt.Errorf("meta snapshot pick table references unknown specialist %q", name)
			}
			copied[name] = n
		}
		picks[regime] = copied
	}
	l.values = values
	l.picks = picks
	return nil
}
