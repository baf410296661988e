package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantmind/internal/bandit"
	"quantmind/internal/meta"
	"quantmind/internal/model"
	"quantmind/internal/policy"
	"quantmind/internal/regime"
	"quantmind/internal/state"
)

// engineDoc is the orchestrator's own persisted state: rolling performance,
// breaker latch, open decisions, and the learned-trade dedup window.
type engineDoc struct {
	Perf          perfSnapshot           `json:"perf"`
	Breaker       BreakerStatus          `json:"breaker"`
	BreakerStreak int                    `json:"breaker_streak"`
	Exposure      float64                `json:"exposure"`
	Pending       []model.DecisionRecord `json:"pending"`
	Learned       []string               `json:"learned"`

	// Audit is the rolling decision log, including which specialist was
	// selected per decision.
	Audit []model.DecisionRecord `json:"audit"`
}

// Save writes every enabled tier's snapshot plus the engine document through
// the configured store.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(ctx)
}

func (e *Engine) saveLocked(ctx context.Context) error {
	if e.store == nil {
		return fmt.Errorf("no state store configured")
	}

	if e.cfg.Tiers.Regime {
		if err := e.store.Save(ctx, state.KeyRegime, e.classifier.Snapshot()); err != nil {
			return err
		}
	}
	if e.cfg.Tiers.Meta {
		if err := e.store.Save(ctx, state.KeyMeta, e.meta.Snapshot()); err != nil {
			return err
		}
	} else {
		if e.cfg.Tiers.Bandit {
			if err := e.store.Save(ctx, state.KeyBandit, e.bandit.Snapshot()); err != nil {
				return err
			}
		}
		if e.cfg.Tiers.Policy {
			if err := e.store.Save(ctx, state.KeyPolicy, e.agent.Snapshot()); err != nil {
				return err
			}
		}
	}

	doc := engineDoc{
		Perf:          e.perf.snapshot(),
		Breaker:       e.brk.status,
		BreakerStreak: e.brk.streak,
		Exposure:      e.exposure,
		Learned:       append([]string(nil), e.learnedOrder...),
		Audit:         append([]model.DecisionRecord(nil), e.audit...),
	}
	for _, id := range e.pendingOrder {
		doc.Pending = append(doc.Pending, *e.pending[id])
	}
	if err := e.store.Save(ctx, state.KeyEngine, doc); err != nil {
		return err
	}

	e.log.Info().
		Int("pending", len(doc.Pending)).
		Int("trades", doc.Perf.Trades).
		Msg("learning state saved")
	return nil
}

// Load restores tier state from the configured store. A missing document
// cold-starts that tier; a corrupt or incompatible document does the same
// with a warning. Load never fails the boot path.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return fmt.Errorf("no state store configured")
	}

	if e.cfg.Tiers.Regime {
		var snap regime.Snapshot
		e.loadDoc(ctx, state.KeyRegime, &snap, func() error {
			return e.classifier.Restore(snap)
		})
	}
	if e.cfg.Tiers.Meta {
		var snap meta.Snapshot
		e.loadDoc(ctx, state.KeyMeta, &snap, func() error {
			return e.meta.Restore(snap)
		})
	} else {
		if e.cfg.Tiers.Bandit {
			var snap bandit.Snapshot
			e.loadDoc(ctx, state.KeyBandit, &snap, func() error {
				return e.bandit.Restore(snap)
			})
		}
		if e.cfg.Tiers.Policy {
			var snap policy.Snapshot
			e.loadDoc(ctx, state.KeyPolicy, &snap, func() error {
				return e.agent.Restore(snap)
			})
		}
	}

	var doc engineDoc
	e.loadDoc(ctx, state.KeyEngine, &doc, func() error {
		e.perf.restore(doc.Perf)
		e.brk.status = doc.Breaker
		e.brk.streak = doc.BreakerStreak
		e.exposure = doc.Exposure
		if e.brk.tripped() {
			e.metrics.BreakerTripped.Set(1)
		}
		e.pending = make(map[string]*model.DecisionRecord, len(doc.Pending))
		e.pendingOrder = e.pendingOrder[:0]
		for i := range doc.Pending {
			d := doc.Pending[i]
			e.pending[d.ID] = &d
			e.pendingOrder = append(e.pendingOrder, d.ID)
		}
		e.learned = make(map[string]struct{}, len(doc.Learned))
		e.learnedOrder = append([]string(nil), doc.Learned...)
		for _, id := range doc.Learned {
			e.learned[id] = struct{}{}
		}
		e.audit = append([]model.DecisionRecord(nil), doc.Audit...)
		e.lastMetrics = e.perf.metrics(time.Now().UTC())
		return nil
	})
	return nil
}

// loadDoc fetches and applies one document, degrading to a cold start on any
// failure.
func (e *Engine) loadDoc(ctx context.Context, key string, into any, apply func() error) {
	err := e.store.Load(ctx, key, into)
	if errors.Is(err, state.ErrNotFound) {
		e.log.Info().Str("document", key).Msg("no saved state, cold start")
		return
	}
	if err != nil {
		e.log.Warn().Err(err).Str("document", key).Msg("saved state unusable, cold start")
		return
	}
	if err := apply(); err != nil {
		e.log.Warn().Err(err).Str("document", key).Msg("saved state rejected, cold start")
	}
}
