package journal

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantmind/internal/model"
)

func newTestJournal(t *testing.T, cfg Config) (*Journal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), cfg, zerolog.Nop()), mock
}

func sampleDecision() model.DecisionRecord {
	return model.DecisionRecord{
		ID:        "dec-1",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Scores:    model.ComponentScores{Theme: 7, Technical: 6, AIConfidence: 0.8, Sentiment: 5, Earnings: 4},
		Context:   model.MarketContext{IndexReturn: 0.01, VolIndex: 18, PctAboveTrend: 0.6, Breadth: 0.55, ThemeHeat: 6},
		Weights:   model.UniformWeights(),
		Regime:    model.RegimeBullMomentum,
		Learner:   "balanced",
		Composite: 6.2,
		Action:    model.ActionEnter,
		Params:    &model.ActionParams{PositionPct: 0.05, HoldHours: 48, StopPct: 0.04, TargetPct: 0.12},
	}
}

func sampleTrade() model.TradeRecord {
	tr := model.TradeRecord{
		ID:         "trade-1",
		DecisionID: "dec-1",
		Symbol:     "NVDA",
		EntryPrice: 100,
		ExitPrice:  106,
		Size:       10,
		EntryTime:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ExitTime:   time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}
	tr.ComputeOutcome()
	return tr
}

func TestJournal_RecordDecision(t *testing.T) {
	j, mock := newTestJournal(t, DefaultConfig())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO decisions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.RecordDecision(context.Background(), sampleDecision()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_RecordTrade(t *testing.T) {
	j, mock := newTestJournal(t, DefaultConfig())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trades")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.RecordTrade(context.Background(), sampleTrade()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_RecordTradeRequiresOutcome(t *testing.T) {
	j, _ := newTestJournal(t, DefaultConfig())

	tr := sampleTrade()
	tr.Outcome = nil
	err := j.RecordTrade(context.Background(), tr)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestJournal_RecentTrades(t *testing.T) {
	j, mock := newTestJournal(t, DefaultConfig())

	rows := sqlmock.NewRows([]string{
		"id", "decision_id", "symbol", "regime", "learner", "result", "pnl_pct", "exit_time",
	}).AddRow("trade-1", "dec-1", "NVDA", "bull_momentum", "balanced", "win", 0.06,
		time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT t.id, t.decision_id")).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := j.RecentTrades(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trade-1", got[0].TradeID)
	assert.Equal(t, "win", got[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerFailures = 3
	j, mock := newTestJournal(t, cfg)

	boom := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO decisions")).WillReturnError(boom)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.Error(t, j.RecordDecision(ctx, sampleDecision()))
	}

	// The breaker is now open; the next write never reaches the database.
	err := j.RecordDecision(ctx, sampleDecision())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, gobreaker.StateOpen.String(), j.BreakerState())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_Migrate(t *testing.T) {
	j, mock := newTestJournal(t, DefaultConfig())

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS decisions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, j.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
