package policy

import "fmt"

// Snapshot is the serializable agent state: the learned parameters only.
// Pending experiences and the unflushed batch buffer are deliberately
// excluded; losing the in-flight batch on a crash is accepted.
type Snapshot struct {
	Weights [ActionDim][StateDim + 1]float64 `json:"weights"`
	Value   [StateDim + 1]float64            `json:"value"`
	Batches int                              `json:"batches"`
}

// Snapshot copies the learned parameters.
func (a *Agent) Snapshot() Snapshot {
	return Snapshot{Weights: a.weights, Value: a.value, Batches: a.batches}
}

// Restore replaces the learned parameters from a saved snapshot.
func (a *Agent) Restore(snap Snapshot) error {
	for k := 0; k < ActionDim; k++ {
		for i := 0; i <= StateDim; i++ {
			if !finite(snap.Weights[k][i]) {
				return fmt.Errorf("policy snapshot weight [%d][%d] is not finite", k, i)
			}
		}
	}
	for i := 0; i <= StateDim; i++ {
		if !finite(snap.Value[i]) {
			return fmt.Errorf("policy snapshot value parameter [%d] is not finite", i)
		}
	}
	if snap.Batches < 0 {
		return fmt.Errorf("policy snapshot has negative batch count")
	}
	a.weights = snap.Weights
	a.value = snap.Value
	a.batches = snap.Batches
	return nil
}

func finite(v float64) bool {
	return v == v && v < 1e300 && v > -1e300
}
