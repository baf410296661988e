package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"quantmind/internal/engine"
	"quantmind/internal/model"
)

func stateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect persisted learning state",
	}
	cmd.AddCommand(stateShowCmd())
	return cmd
}

func stateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print a summary of the saved learning state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := buildLogger(cfg.Log)

			store, closeStore, err := buildStore(cfg.State)
			if err != nil {
				return err
			}
			defer closeStore()

			eng, err := engine.New(cfg.Engine, store, nil, nil, log)
			if err != nil {
				return err
			}
			if err := eng.Load(cmd.Context()); err != nil {
				return err
			}

			weights := make(map[model.Regime]map[string]model.ComponentWeights)
			values := make(map[model.Regime]map[string]float64)
			for _, r := range model.Regimes() {
				weights[r] = eng.MeanWeights(r)
				values[r] = eng.LearnerValues(r)
			}

			out, err := json.MarshalIndent(map[string]any{
				"metrics":        eng.Metrics(),
				"regime":         eng.RegimeState(),
				"regime_stats":   eng.RegimeStats(),
				"breaker":        eng.Breaker(),
				"pending":        eng.PendingDecisions(),
				"mean_weights":   weights,
				"learner_values": values,
			}, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
