package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"quantmind/internal/engine"
	"quantmind/internal/model"
)

// phase describes one stretch of the synthetic market.
type phase struct {
	name    string
	length  int
	ret     float64
	vol     float64
	trend   float64
	breadth float64
	heat    float64
	quality float64
}

func simulateCmd() *cobra.Command {
	var trades int
	var seed int64

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive the full learning stack with a synthetic market stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := buildLogger(cfg.Log)

			cfg.Engine.Seed = seed
			cfg.Engine.CheckpointEvery = 0
			eng, err := engine.New(cfg.Engine, nil, nil, nil, log)
			if err != nil {
				return err
			}
			return runSimulation(cmd, eng, trades, seed)
		},
	}
	cmd.Flags().IntVar(&trades, "trades", 400, "number of simulated decision/outcome cycles")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for the market stream and the engine")
	return cmd
}

func runSimulation(cmd *cobra.Command, eng *engine.Engine, steps int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	ctx := cmd.Context()

	phases := []phase{
		{"bull", 120, 0.008, 16, 0.75, 0.70, 5.5, 0.75},
		{"choppy", 80, 0.000, 22, 0.50, 0.50, 4.0, 0.50},
		{"bear", 100, -0.010, 34, 0.25, 0.30, 2.0, 0.35},
		{"crisis", 40, -0.055, 52, 0.10, 0.20, 1.0, 0.15},
		{"recovery", 100, 0.006, 20, 0.60, 0.62, 4.5, 0.65},
	}

	actions := map[model.ActionClass]int{}
	entered := 0
	now := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC)

	step := 0
	for step < steps {
		for _, ph := range phases {
			for i := 0; i < ph.length && step < steps; i++ {
				mctx := syntheticContext(rng, ph, now)
				scores := syntheticScores(rng, ph)

				d, err := eng.Decide(ctx, scores, mctx)
				if err != nil {
					return err
				}
				actions[d.Action]++

				if d.Action == model.ActionEnter {
					entered++
					pnl := syntheticOutcome(rng, ph, d.Composite)
					_, err := eng.Learn(ctx, model.TradeRecord{
						ID:         fmt.Sprintf("sim-%d", step),
						DecisionID: d.ID,
						Symbol:     "SIM",
						EntryPrice: 100,
						ExitPrice:  100 * (1 + pnl),
						Size:       1,
						EntryTime:  now,
						ExitTime:   now.Add(24 * time.Hour),
					})
					if err != nil {
						return err
					}
				}

				now = now.Add(6 * time.Hour)
				step++
			}
		}
	}

	printSummary(cmd, eng, steps, entered, actions)
	return nil
}

func syntheticContext(rng *rand.Rand, ph phase, now time.Time) model.MarketContext {
	return model.MarketContext{
		IndexReturn:   clampf(ph.ret+rng.NormFloat64()*0.004, -0.5, 0.5),
		VolIndex:      clampf(ph.vol+rng.NormFloat64()*3, 0, 200),
		PctAboveTrend: clampf(ph.trend+rng.NormFloat64()*0.05, 0, 1),
		Breadth:       clampf(ph.breadth+rng.NormFloat64()*0.05, 0, 1),
		ThemeHeat:     clampf(ph.heat+rng.NormFloat64()*0.8, 0, 10),
		Timestamp:     now,
	}
}

func syntheticScores(rng *rand.Rand, ph phase) model.ComponentScores {
	q := func(spread float64) float64 {
		return clampf(ph.quality+rng.NormFloat64()*spread, 0, 1)
	}
	return model.ComponentScores{
		Theme:        q(0.15) * 10,
		Technical:    q(0.15) * 10,
		AIConfidence: q(0.10),
		Sentiment:    q(0.20) * 10,
		Earnings:     q(0.20) * 10,
	}
}

// syntheticOutcome draws a realized return whose odds improve with both the
// phase and the composite conviction, so learners have something to find.
func syntheticOutcome(rng *rand.Rand, ph phase, composite float64) float64 {
	winProb := clampf(0.25+0.45*ph.quality+0.02*(composite-5), 0.05, 0.9)
	if rng.Float64() < winProb {
		return 0.02 + rng.Float64()*0.06
	}
	return -(0.015 + rng.Float64()*0.04)
}

func printSummary(cmd *cobra.Command, eng *engine.Engine, steps, entered int, actions map[model.ActionClass]int) {
	m := eng.Metrics()

	cmd.Printf("simulated %d decision cycles, %d entered\n\n", steps, entered)
	cmd.Printf("actions:   enter=%d watch=%d stand_aside=%d\n",
		actions[model.ActionEnter], actions[model.ActionWatch], actions[model.ActionStandAside])
	cmd.Printf("trades:    %d  win_rate=%.3f  avg_return=%.4f  risk_adj=%.3f  max_dd=%.3f\n",
		m.TradeCount, m.WinRate, m.AvgReturn, m.RiskAdjusted, m.MaxDrawdown)
	cmd.Printf("breaker:   tripped=%v %s\n\n", eng.Breaker().Tripped, eng.Breaker().Reason)

	cmd.Printf("regime outcomes:\n")
	for _, r := range model.Regimes() {
		s, ok := eng.RegimeStats()[r]
		if !ok || s.Trades == 0 {
			continue
		}
		cmd.Printf("  %-15s trades=%-4d win_rate=%.3f avg_return=%.4f\n",
			r, s.Trades, s.WinRate(), s.AvgReturn())
	}

	cmd.Printf("\nlearner values (current regime %s):\n", eng.RegimeState().Current)
	if eng.RegimeState().Current.Valid() {
		for name, v := range eng.LearnerValues(eng.RegimeState().Current) {
			cmd.Printf("  %-15s %.4f\n", name, v)
		}
	}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
