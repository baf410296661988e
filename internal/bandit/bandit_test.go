package bandit

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantmind/internal/model"
)

func newTestLearner(seed int64) *Learner {
	return NewLearner(DefaultConfig(), rand.New(rand.NewSource(seed)))
}

func TestLearner_UnseenArmStartsAtPrior(t *testing.T) {
	l := newTestLearner(1)
	post := l.Posterior(model.RegimeChoppyRange)
	for _, sig := range model.Signals() {
		assert.Equal(t, 1.0, post[sig].Alpha, "signal %s", sig)
		assert.Equal(t, 1.0, post[sig].Beta, "signal %s", sig)
		assert.InDelta(t, 0.5, post[sig].Mean(), 1e-9)
	}
}

func TestLearner_SelectWeightsNonNegative(t *testing.T) {
	l := newTestLearner(2)
	for i := 0; i < 200; i++ {
		w, err := l.SelectWeights(model.RegimeBullMomentum)
		require.NoError(t, err)
		require.NoError(t, w.Validate())
		for _, sig := range model.Signals() {
			assert.GreaterOrEqual(t, w[sig], 0.0)
			assert.LessOrEqual(t, w[sig], 1.0)
		}
	}
}

func TestLearner_SelectWeightsDeterministicGivenSeed(t *testing.T) {
	a := newTestLearner(42)
	b := newTestLearner(42)
	for i := 0; i < 20; i++ {
		wa, err := a.SelectWeights(model.RegimeCrisis)
		require.NoError(t, err)
		wb, err := b.SelectWeights(model.RegimeCrisis)
		require.NoError(t, err)
		assert.Equal(t, wa, wb)
	}
}

func TestLearner_RejectsUnknownRegime(t *testing.T) {
	l := newTestLearner(3)
	_, err := l.SelectWeights(model.Regime("sideways_disco"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestLearner_UpdateRejectsMalformedWeights(t *testing.T) {
	l := newTestLearner(4)
	bad := model.UniformWeights()
	bad[model.SignalTheme] = -0.2
	err := l.Update(model.OutcomeWin, bad, model.RegimeBullMomentum)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestLearner_CreditAssignmentProportionalToWeight(t *testing.T) {
	l := newTestLearner(5)
	used := model.ComponentWeights{
		model.SignalTheme:        1.0,
		model.SignalTechnical:    0.5,
		model.SignalAIConfidence: 0,
		model.SignalSentiment:    0,
		model.SignalEarnings:     0,
	}
	require.NoError(t, l.Update(model.OutcomeWin, used, model.RegimeBullMomentum))

	post := l.Posterior(model.RegimeBullMomentum)
	// Dominant arm absorbs a full observation, the half-weight arm half of
	// one, zero-weight arms none.
	assert.InDelta(t, 2.0, post[model.SignalTheme].Alpha, 1e-9)
	assert.InDelta(t, 1.5, post[model.SignalTechnical].Alpha, 1e-9)
	assert.InDelta(t, 1.0, post[model.SignalAIConfidence].Alpha, 1e-9)
}

func TestLearner_BreakevenIsNoOp(t *testing.T) {
	l := newTestLearner(6)
	before := l.Posterior(model.RegimeChoppyRange)
	require.NoError(t, l.Update(model.OutcomeBreakeven, model.UniformWeights(), model.RegimeChoppyRange))
	assert.Equal(t, before, l.Posterior(model.RegimeChoppyRange))
}

// One arm perfectly tracks outcomes while the rest are noise: after 50
// trades the predictive arm's posterior-mean weight must dominate every
// noise arm.
func TestLearner_PredictiveArmDominatesAfterFiftyTrades(t *testing.T) {
	l := newTestLearner(7)
	regime := model.RegimeBullMomentum
	pred := model.SignalTechnical

	for i := 0; i < 50; i++ {
		win := i%2 == 0
		used := make(model.ComponentWeights, len(model.Signals()))
		for _, sig := range model.Signals() {
			used[sig] = 0.5
		}
		if win {
			// The predictive arm drove the winning decision.
			used[pred] = 1.0
		} else {
			// The predictive arm flagged the loser; noise arms overrode it.
			used[pred] = 0.02
		}
		outcome := model.OutcomeLoss
		if win {
			outcome = model.OutcomeWin
		}
		require.NoError(t, l.Update(outcome, used, regime))
	}

	mean := l.MeanWeights(regime)
	for _, sig := range model.Signals() {
		if sig == pred {
			continue
		}
		assert.Greater(t, mean[pred], mean[sig],
			"predictive arm %s should outweigh noise arm %s", pred, sig)
	}
}

// Twenty alternating outcomes with identical weights must leave the
// posteriors near-uniform: a 50/50 stream carries no preference.
func TestLearner_AlternatingOutcomesStayUniform(t *testing.T) {
	l := newTestLearner(8)
	regime := model.RegimeChoppyRange
	used := model.UniformWeights()

	for i := 0; i < 20; i++ {
		outcome := model.OutcomeWin
		if i%2 == 1 {
			outcome = model.OutcomeLoss
		}
		require.NoError(t, l.Update(outcome, used, regime))
	}

	mean := l.MeanWeights(regime)
	for _, sig := range model.Signals() {
		assert.InDelta(t, 0.5, mean[sig], 0.02, "signal %s drifted from uniform", sig)
	}
}

func TestLearner_EvidenceCapKeepsPosteriorsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EvidenceCap = 20
	l := NewLearner(cfg, rand.New(rand.NewSource(9)))
	used := model.UniformWeights()

	for i := 0; i < 500; i++ {
		require.NoError(t, l.Update(model.OutcomeWin, used, model.RegimeThemeDriven))
	}
	post := l.Posterior(model.RegimeThemeDriven)
	for _, sig := range model.Signals() {
		total := post[sig].Alpha + post[sig].Beta
		assert.LessOrEqual(t, total, cfg.EvidenceCap+1)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	l := newTestLearner(10)
	require.NoError(t, l.Update(model.OutcomeWin, model.UniformWeights(), model.RegimeBullMomentum))
	require.NoError(t, l.Update(model.OutcomeLoss, model.UniformWeights(), model.RegimeCrisis))

	snap := l.Snapshot()
	restored := newTestLearner(10)
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, l.Posterior(model.RegimeBullMomentum), restored.Posterior(model.RegimeBullMomentum))
	assert.Equal(t, l.Posterior(model.RegimeCrisis), restored.Posterior(model.RegimeCrisis))
}

func TestSnapshot_RejectsCorruptArm(t *testing.T) {
	l := newTestLearner(11)
	snap := Snapshot{Arms: map[model.Regime]map[model.Signal]ArmState{
		model.RegimeBullMomentum: {
			model.SignalTheme: {Alpha: -1, Beta: 1},
		},
	}}
	assert.Error(t, l.Restore(snap))
}
