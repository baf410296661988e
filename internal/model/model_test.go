package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScores() ComponentScores {
	return ComponentScores{
		Theme:        7.5,
		Technical:    6.0,
		AIConfidence: 0.8,
		Sentiment:    5.5,
		Earnings:     4.0,
	}
}

func TestComponentScores_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ComponentScores)
		wantErr bool
	}{
		{name: "valid snapshot", mutate: func(*ComponentScores) {}},
		{name: "theme above range", mutate: func(cs *ComponentScores) { cs.Theme = 10.5 }, wantErr: true},
		{name: "technical negative", mutate: func(cs *ComponentScores) { cs.Technical = -0.1 }, wantErr: true},
		{name: "ai confidence above one", mutate: func(cs *ComponentScores) { cs.AIConfidence = 1.2 }, wantErr: true},
		{name: "nan sentiment", mutate: func(cs *ComponentScores) { cs.Sentiment = nan() }, wantErr: true},
		{name: "boundary values accepted", mutate: func(cs *ComponentScores) {
			cs.Theme = 10
			cs.AIConfidence = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := validScores()
			tt.mutate(&cs)
			err := cs.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestComponentScores_Normalized(t *testing.T) {
	cs := validScores()
	assert.InDelta(t, 0.75, cs.Normalized(SignalTheme), 1e-9)
	assert.InDelta(t, 0.80, cs.Normalized(SignalAIConfidence), 1e-9)
}

func TestMarketContext_Validate(t *testing.T) {
	ctx := MarketContext{
		IndexReturn:   0.012,
		VolIndex:      18.5,
		PctAboveTrend: 0.62,
		Breadth:       0.55,
		ThemeHeat:     6.0,
		Timestamp:     time.Now(),
	}
	require.NoError(t, ctx.Validate())

	ctx.VolIndex = 250
	err := ctx.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestComponentWeights_Normalized(t *testing.T) {
	w := ComponentWeights{
		SignalTheme:        2,
		SignalTechnical:    1,
		SignalAIConfidence: 1,
		SignalSentiment:    0,
		SignalEarnings:     0,
	}
	norm := w.Normalized()
	sum := 0.0
	for _, s := range Signals() {
		sum += norm[s]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 0.5, norm[SignalTheme], 1e-9)
}

func TestComponentWeights_ZeroSumFallsBackToUniform(t *testing.T) {
	w := ComponentWeights{}
	for _, s := range Signals() {
		w[s] = 0
	}
	norm := w.Normalized()
	for _, s := range Signals() {
		assert.InDelta(t, 0.2, norm[s], 1e-9)
	}
}

func TestComponentWeights_Composite(t *testing.T) {
	// All weight on theme: composite is the normalized theme score on a
	// 0-10 scale.
	w := ComponentWeights{
		SignalTheme:        1,
		SignalTechnical:    0,
		SignalAIConfidence: 0,
		SignalSentiment:    0,
		SignalEarnings:     0,
	}
	cs := validScores()
	assert.InDelta(t, 7.5, w.Composite(cs), 1e-9)
}

func TestTradeRecord_ComputeOutcome(t *testing.T) {
	entry := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	trade := TradeRecord{
		ID:         "t-1",
		DecisionID: "d-1",
		EntryPrice: 100,
		ExitPrice:  104,
		Size:       10,
		EntryTime:  entry,
		ExitTime:   entry.Add(36 * time.Hour),
	}
	require.NoError(t, trade.Validate())

	out := trade.ComputeOutcome()
	assert.Equal(t, OutcomeWin, out.Result)
	assert.InDelta(t, 0.04, out.PnLPct, 1e-9)
	assert.Equal(t, 36*time.Hour, out.HoldDuration)

	// Idempotent under recomputation.
	again := trade.ComputeOutcome()
	assert.Equal(t, out, again)
}

func TestTradeRecord_BreakevenBand(t *testing.T) {
	entry := time.Now()
	trade := TradeRecord{
		ID:         "t-2",
		DecisionID: "d-2",
		EntryPrice: 100,
		ExitPrice:  100.01,
		Size:       1,
		EntryTime:  entry,
		ExitTime:   entry.Add(time.Hour),
	}
	out := trade.ComputeOutcome()
	assert.Equal(t, OutcomeBreakeven, out.Result)
}

func TestTradeRecord_ValidateRejectsBadFills(t *testing.T) {
	entry := time.Now()
	trade := TradeRecord{
		ID:         "t-3",
		DecisionID: "d-3",
		EntryPrice: 0,
		ExitPrice:  10,
		Size:       1,
		EntryTime:  entry,
		ExitTime:   entry.Add(time.Minute),
	}
	err := trade.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}
