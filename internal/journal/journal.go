// Package journal writes an append-only audit trail of decisions and trade
// outcomes to PostgreSQL. The journal is observability, not learning state:
// engine correctness never depends on it, so every write goes through a
// circuit breaker and a tripped breaker degrades to dropped rows instead of
// blocking decisions.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"quantmind/internal/model"
)

// Config tunes journal timeouts and breaker behavior.
type Config struct {
	// Timeout bounds each statement.
	Timeout time.Duration `yaml:"timeout"`

	// BreakerFailures is how many consecutive write failures open the
	// breaker.
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// DefaultConfig returns the shipped journal settings.
func DefaultConfig() Config {
	return Config{
		Timeout:         5 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
}

// Journal is the PostgreSQL audit writer.
type Journal struct {
	db      *sqlx.DB
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// New wraps an open database handle.
func New(db *sqlx.DB, cfg Config, log zerolog.Logger) *Journal {
	cfg.applyDefaults()
	j := &Journal{db: db, cfg: cfg, log: log}
	j.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "journal",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			j.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("journal breaker state change")
		},
	})
	return j
}

// Migrate creates the journal tables if they do not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS decisions (
	id                TEXT PRIMARY KEY,
	ts                TIMESTAMPTZ NOT NULL,
	regime            TEXT NOT NULL,
	regime_confidence DOUBLE PRECISION NOT NULL,
	learner           TEXT NOT NULL DEFAULT '',
	composite         DOUBLE PRECISION NOT NULL,
	action            TEXT NOT NULL,
	position_pct      DOUBLE PRECISION,
	hold_hours        DOUBLE PRECISION,
	stop_pct          DOUBLE PRECISION,
	target_pct        DOUBLE PRECISION,
	clamped           BOOLEAN NOT NULL DEFAULT FALSE,
	breaker_forced    BOOLEAN NOT NULL DEFAULT FALSE,
	scores            JSONB NOT NULL,
	market_context    JSONB NOT NULL,
	weights           JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL REFERENCES decisions(id),
	symbol      TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	size        DOUBLE PRECISION NOT NULL,
	entry_time  TIMESTAMPTZ NOT NULL,
	exit_time   TIMESTAMPTZ NOT NULL,
	result      TEXT NOT NULL,
	pnl_pct     DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions (ts DESC);
CREATE INDEX IF NOT EXISTS idx_trades_decision ON trades (decision_id);`

	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate journal schema: %w", err)
	}
	return nil
}

// RecordDecision appends one decision row.
func (j *Journal) RecordDecision(ctx context.Context, d model.DecisionRecord) error {
	scores, err := json.Marshal(d.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	mctx, err := json.Marshal(d.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	weights, err := json.Marshal(d.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	var posPct, holdHours, stopPct, targetPct *float64
	if d.Params != nil {
		posPct = &d.Params.PositionPct
		holdHours = &d.Params.HoldHours
		stopPct = &d.Params.StopPct
		targetPct = &d.Params.TargetPct
	}

	return j.execute(ctx, func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO decisions (
				id, ts, regime, regime_confidence, learner, composite, action,
				position_pct, hold_hours, stop_pct, target_pct,
				clamped, breaker_forced, scores, market_context, weights)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			d.ID, d.Timestamp, string(d.Regime), d.RegimeConfidence, d.Learner,
			d.Composite, string(d.Action),
			posPct, holdHours, stopPct, targetPct,
			d.Clamped, d.BreakerForced, scores, mctx, weights)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("%w: decision %s", model.ErrDuplicateTrade, d.ID)
			}
			return fmt.Errorf("insert decision %s: %w", d.ID, err)
		}
		return nil
	})
}

// RecordTrade appends one completed trade row. The outcome must already be
// computed.
func (j *Journal) RecordTrade(ctx context.Context, t model.TradeRecord) error {
	if t.Outcome == nil {
		return fmt.Errorf("%w: trade %s has no computed outcome", model.ErrValidation, t.ID)
	}

	return j.execute(ctx, func(ctx context.Context) error {
		_, err := j.db.ExecContext(ctx, `
			INSERT INTO trades (
				id, decision_id, symbol, entry_price, exit_price, size,
				entry_time, exit_time, result, pnl_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.ID, t.DecisionID, t.Symbol, t.EntryPrice, t.ExitPrice, t.Size,
			t.EntryTime, t.ExitTime, string(t.Outcome.Result), t.Outcome.PnLPct)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return fmt.Errorf("%w: trade %s", model.ErrDuplicateTrade, t.ID)
			}
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
		return nil
	})
}

// TradeSummary is one joined decision/trade row for reporting.
type TradeSummary struct {
	TradeID    string    `db:"id"`
	DecisionID string    `db:"decision_id"`
	Symbol     string    `db:"symbol"`
	Regime     string    `db:"regime"`
	Learner    string    `db:"learner"`
	Result     string    `db:"result"`
	PnLPct     float64   `db:"pnl_pct"`
	ExitTime   time.Time `db:"exit_time"`
}

// RecentTrades returns the most recently closed trades, newest first.
func (j *Journal) RecentTrades(ctx context.Context, limit int) ([]TradeSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	var out []TradeSummary
	err := j.db.SelectContext(ctx, &out, `
		SELECT t.id, t.decision_id, t.symbol, d.regime, d.learner, t.result, t.pnl_pct, t.exit_time
		FROM trades t
		JOIN decisions d ON d.id = t.decision_id
		ORDER BY t.exit_time DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent trades: %w", err)
	}
	return out, nil
}

// BreakerState reports the write breaker state for monitoring.
func (j *Journal) BreakerState() string {
	return j.breaker.State().String()
}

func (j *Journal) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	_, err := j.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}
