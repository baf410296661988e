package policy

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantmind/internal/model"
)

func testState(seed int64) [StateDim]float64 {
	rng := rand.New(rand.NewSource(seed))
	scores := model.ComponentScores{
		Theme:        rng.Float64() * 10,
		Technical:    rng.Float64() * 10,
		AIConfidence: rng.Float64(),
		Sentiment:    rng.Float64() * 10,
		Earnings:     rng.Float64() * 10,
	}
	return BuildState(scores, model.RegimeBullMomentum,
		PortfolioState{Exposure: rng.Float64(), Drawdown: rng.Float64() * 0.3},
		rng.Float64(), rng.Float64()*0.1-0.05)
}

func TestAgent_ActionsAlwaysWithinBounds(t *testing.T) {
	a := NewAgent(DefaultConfig(), rand.New(rand.NewSource(1)))
	b := a.Bounds()
	for i := 0; i < 500; i++ {
		params := a.DecideAction(fmt.Sprintf("d-%d", i), testState(int64(i)))
		assert.True(t, b.Contains(params), "iteration %d produced %+v", i, params)
	}
}

func TestAgent_ActionsWithinBoundsAfterHostileTraining(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	a := NewAgent(cfg, rand.New(rand.NewSource(2)))
	b := a.Bounds()

	// Feed extreme rewards to push the policy as hard as possible, then
	// confirm the rails still hold.
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("d-%d", i)
		params := a.DecideAction(id, testState(int64(i)))
		require.True(t, b.Contains(params))
		a.Feedback(id, 5.0, 0, false) // absurd 500% return every trade
	}
	assert.Greater(t, a.Batches(), 0)

	for i := 0; i < 100; i++ {
		params := a.DecideAction(fmt.Sprintf("post-%d", i), testState(int64(1000+i)))
		assert.True(t, b.Contains(params))
	}
}

func TestAgent_TrustRegionCapsParameterStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.MaxStepNorm = 0.1
	a := NewAgent(cfg, rand.New(rand.NewSource(3)))

	before := a.Snapshot()
	for i := 0; i < cfg.BatchSize; i++ {
		id := fmt.Sprintf("d-%d", i)
		a.DecideAction(id, testState(int64(i)))
		a.Feedback(id, 3.0, 0, false)
	}
	after := a.Snapshot()

	norm := 0.0
	for k := 0; k < ActionDim; k++ {
		for i := 0; i <= StateDim; i++ {
			d := after.Weights[k][i] - before.Weights[k][i]
			norm += d * d
		}
	}
	assert.LessOrEqual(t, norm, cfg.MaxStepNorm*cfg.MaxStepNorm+1e-9)
}

func TestAgent_FeedbackForUnknownDecisionIgnored(t *testing.T) {
	a := NewAgent(DefaultConfig(), rand.New(rand.NewSource(4)))
	assert.False(t, a.Feedback("never-seen", 0.05, 0, false))
}

func TestAgent_PendingCapEvictsOldest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PendingCap = 3
	a := NewAgent(cfg, rand.New(rand.NewSource(5)))

	for i := 0; i < 5; i++ {
		a.DecideAction(fmt.Sprintf("d-%d", i), testState(int64(i)))
	}
	assert.Equal(t, 3, a.PendingCount())
	assert.False(t, a.Feedback("d-0", 0.01, 0, false), "oldest entry should have been evicted")
	assert.True(t, a.Feedback("d-4", 0.01, 0, false))
}

func TestAgent_DeterministicGivenSeed(t *testing.T) {
	a := NewAgent(DefaultConfig(), rand.New(rand.NewSource(6)))
	b := NewAgent(DefaultConfig(), rand.New(rand.NewSource(6)))
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("d-%d", i)
		st := testState(int64(i))
		pa := a.DecideAction(id, st)
		pb := b.DecideAction(id, st)
		assert.Equal(t, pa, pb)
		if i%2 == 0 {
			a.Feedback(id, 0.02, 0.01, false)
			b.Feedback(id, 0.02, 0.01, false)
		}
	}
}

func TestRewardConfig_Shape(t *testing.T) {
	rc := DefaultRewardConfig()

	tests := []struct {
		name     string
		pnl      float64
		drawdown float64
		violated bool
		check    func(t *testing.T, r float64)
	}{
		{
			name: "gain rewarded sublinearly",
			pnl:  0.04,
			check: func(t *testing.T, r float64) {
				assert.InDelta(t, 0.2, r, 1e-9)
			},
		},
		{
			name: "drawdown penalized quadratically",
			pnl:  0.04, drawdown: 0.2,
			check: func(t *testing.T, r float64) {
				assert.InDelta(t, 0.2-4.0*0.04, r, 1e-9)
			},
		},
		{
			name: "violation penalized even on a winner",
			pnl:  0.09, violated: true,
			check: func(t *testing.T, r float64) {
				assert.InDelta(t, 0.3-1.0, r, 1e-9)
				assert.Less(t, r, 0.0)
			},
		},
		{
			name: "loss passes through linearly",
			pnl:  -0.05,
			check: func(t *testing.T, r float64) {
				assert.InDelta(t, -0.05, r, 1e-9)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, rc.Shape(tt.pnl, tt.drawdown, tt.violated))
		})
	}
}

func TestBounds_ClampReportsAudit(t *testing.T) {
	b := DefaultBounds()
	inside := model.ActionParams{PositionPct: 0.05, HoldHours: 24, StopPct: 0.05, TargetPct: 0.10}
	got, clamped := b.Clamp(inside)
	assert.False(t, clamped)
	assert.Equal(t, inside, got)

	outside := inside
	outside.PositionPct = 0.5
	got, clamped = b.Clamp(outside)
	assert.True(t, clamped)
	assert.Equal(t, b.PositionPctMax, got.PositionPct)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	a := NewAgent(cfg, rand.New(rand.NewSource(7)))
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("d-%d", i)
		a.DecideAction(id, testState(int64(i)))
		a.Feedback(id, 0.03, 0.02, false)
	}

	snap := a.Snapshot()
	restored := NewAgent(cfg, rand.New(rand.NewSource(7)))
	require.NoError(t, restored.Restore(snap))

	st := testState(99)
	assert.Equal(t, a.MeanAction(st), restored.MeanAction(st))
	assert.Equal(t, a.Batches(), restored.Batches())
}
