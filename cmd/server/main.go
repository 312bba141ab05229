package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/config"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "crewcal",
	Short: "Crew Calendar - project task scheduling for painting crews",
	Long: "Crew Calendar serves the scheduling dashboard API, answers the crew LINE bot " +
		"and manages the shared no-work-day registry.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, env and defaults only)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects the configured document store.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (services.Store, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store; data is lost on exit")
		return services.NewMemoryStore(), nil
	}
	fs, err := services.NewFirestoreStore(ctx, cfg.Firestore.ProjectID, log)
	if err != nil {
		return nil, err
	}
	log.Info("connected to firestore", zap.String("project", cfg.Firestore.ProjectID))
	return fs, nil
}

// openService is the setup shared by the admin subcommands. The returned
// func releases the store and flushes the logger.
func openService(ctx context.Context) (*services.Service, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	svc := services.NewService(store, log, metrics.New())
	return svc, func() {
		if err := store.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
		_ = log.Sync()
	}, nil
}
