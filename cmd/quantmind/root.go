package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quantmind/internal/config"
	"quantmind/internal/state"
)

var cfgPath string

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:   "quantmind",
		Short: "Adaptive trading decision engine",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config")
	root.AddCommand(serveCmd(), simulateCmd(), stateCmd())
	return root.ExecuteContext(ctx)
}

func loadConfig() (config.Config, error) {
	return config.Load(cfgPath)
}

func buildLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// buildStore returns the configured snapshot backend and a close function.
func buildStore(cfg config.StateConfig) (state.Store, func() error, error) {
	switch cfg.Backend {
	case "file":
		return state.NewFileStore(cfg.Dir), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return state.NewRedisStore(client, cfg.Redis.KeyPrefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}
