package meta

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantmind/internal/model"
)

func newTestLearner(t *testing.T, seed int64) *Learner {
	t.Helper()
	l, err := New(DefaultConfig(), DefaultProfiles(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return l
}

func TestNew_RejectsBadProfiles(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := New(DefaultConfig(), nil, rng)
	assert.ErrorIs(t, err, model.ErrValidation)

	dup := DefaultProfiles()
	dup[1].Name = dup[0].Name
	_, err = New(DefaultConfig(), dup, rng)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLearner_SpecialistsHaveDistinctRails(t *testing.T) {
	l := newTestLearner(t, 2)

	cons, ok := l.ByName("conservative")
	require.True(t, ok)
	aggr, ok := l.ByName("aggressive")
	require.True(t, ok)

	assert.Less(t, cons.Policy.Bounds().PositionPctMax, aggr.Policy.Bounds().PositionPctMax)
	assert.Less(t, cons.Policy.Bounds().StopPctMax, aggr.Policy.Bounds().StopPctMax)
}

func TestLearner_SelectRejectsInvalidRegime(t *testing.T) {
	l := newTestLearner(t, 3)
	_, err := l.Select(model.Regime("sideways"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestLearner_SelectFavorsHighValueSpecialist(t *testing.T) {
	l := newTestLearner(t, 4)
	regime := model.RegimeBullMomentum

	// Drive the aggressive specialist's value well above the others.
	for i := 0; i < 50; i++ {
		require.NoError(t, l.UpdateValue(regime, "aggressive", 1.0))
		require.NoError(t, l.UpdateValue(regime, "conservative", -0.5))
	}

	counts := make(map[string]int)
	for i := 0; i < 300; i++ {
		s, err := l.Select(regime)
		require.NoError(t, err)
		counts[s.Name]++
	}
	assert.Greater(t, counts["aggressive"], 250,
		"aggressive should dominate selection, got %v", counts)
	assert.Equal(t, counts, l.Picks(regime))
}

func TestLearner_SelectionStaysExploratory(t *testing.T) {
	l := newTestLearner(t, 5)
	regime := model.RegimeChoppyRange

	// With a flat value table every specialist should be sampled.
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		s, err := l.Select(regime)
		require.NoError(t, err)
		seen[s.Name] = true
	}
	assert.Len(t, seen, len(l.Specialists()))
}

func TestLearner_ValueUpdateIsEMA(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValueStep = 0.5
	l, err := New(cfg, DefaultProfiles(), rand.New(rand.NewSource(6)))
	require.NoError(t, err)
	regime := model.RegimeBearDefensive

	require.NoError(t, l.UpdateValue(regime, "balanced", 1.0))
	assert.InDelta(t, 0.5, l.Values(regime)["balanced"], 1e-12)

	require.NoError(t, l.UpdateValue(regime, "balanced", 1.0))
	assert.InDelta(t, 0.75, l.Values(regime)["balanced"], 1e-12)

	// Other specialists are untouched.
	assert.Zero(t, l.Values(regime)["aggressive"])
}

func TestLearner_ValueUpdateIsScopedToRegime(t *testing.T) {
	l := newTestLearner(t, 7)
	require.NoError(t, l.UpdateValue(model.RegimeCrisis, "conservative", 0.8))
	assert.Zero(t, l.Values(model.RegimeBullMomentum)["conservative"])
}

func TestLearner_UpdateValueRejectsUnknownSpecialist(t *testing.T) {
	l := newTestLearner(t, 8)
	err := l.UpdateValue(model.RegimeCrisis, "reckless", 1.0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	l := newTestLearner(t, 9)
	regime := model.RegimeThemeDriven

	weights := model.UniformWeights()
	for i := 0; i < 20; i++ {
		s, err := l.Select(regime)
		require.NoError(t, err)
		require.NoError(t, s.Bandit.Update(model.OutcomeWin, weights, regime))
		require.NoError(t, l.UpdateValue(regime, s.Name, 0.3))
	}

	snap := l.Snapshot()
	restored := newTestLearner(t, 9)
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, l.Values(regime), restored.Values(regime))
	assert.Equal(t, l.Picks(regime), restored.Picks(regime))
	for _, s := range l.Specialists() {
		r, ok := restored.ByName(s.Name)
		require.True(t, ok)
		assert.Equal(t, s.Bandit.MeanWeights(regime), r.Bandit.MeanWeights(regime))
	}
}

func TestSnapshot_RestoreRejectsUnknownSpecialist(t *testing.T) {
	l := newTestLearner(t, 10)
	snap := l.Snapshot()
	snap.Values = map[model.Regime]map[string]float64{
		model.RegimeCrisis: {"reckless": 1.0},
	}
	assert.Error(t, l.Restore(snap))
}

func TestSnapshot_RestoreRejectsMismatchedPool(t *testing.T) {
	l := newTestLearner(t, 11)
	snap := l.Snapshot()
	delete(snap.Specialists, "balanced")
	assert.Error(t, l.Restore(snap))
}
