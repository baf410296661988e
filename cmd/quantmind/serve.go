package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"quantmind/internal/engine"
	"quantmind/internal/httpapi"
	"quantmind/internal/journal"
	"quantmind/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the decision engine with the introspection API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := buildLogger(cfg.Log)
			ctx := cmd.Context()

			store, closeStore, err := buildStore(cfg.State)
			if err != nil {
				return err
			}
			defer closeStore()

			metrics := telemetry.New()

			var recorder engine.Recorder
			if cfg.Journal.Enabled {
				db, err := sqlx.Connect("postgres", cfg.Journal.DSN)
				if err != nil {
					return err
				}
				defer db.Close()
				jnl := journal.New(db, cfg.Journal.Config, log)
				if err := jnl.Migrate(ctx); err != nil {
					return err
				}
				recorder = jnl
			}

			eng, err := engine.New(cfg.Engine, store, recorder, metrics, log)
			if err != nil {
				return err
			}
			if err := eng.Load(ctx); err != nil {
				return err
			}

			server := httpapi.New(httpapi.Config{
				Addr:         cfg.HTTP.Addr,
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				RateRPS:      cfg.HTTP.RateRPS,
				RateBurst:    cfg.HTTP.RateBurst,
			}, eng, metrics.Handler(), log)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("http shutdown failed")
			}
			if err := eng.Save(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("final state save failed")
			}
			return nil
		},
	}
}
