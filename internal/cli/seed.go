package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hourly-quiz-service/internal/catalog"
	"hourly-quiz-service/internal/config"
	"hourly-quiz-service/internal/domain"
	pgstore "hourly-quiz-service/internal/infra/postgres"
)

// NewSeedCmd loads the question catalog into an empty questions table.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the question catalog if the table is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrations(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return seedQuestions(cmd.Context(), cfg, pool, logger)
		},
	}
}

// catalogQuestions returns the configured catalog file or the built-in set.
func catalogQuestions(cfg config.Config) ([]domain.Question, error) {
	if cfg.Quiz.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Quiz.CatalogPath)
}

func seedQuestions(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) error {
	questions, err := catalogQuestions(cfg)
	if err != nil {
		return err
	}
	inserted, err := pgstore.SeedIfEmpty(ctx, pool, questions)
	if err != nil {
		return err
	}
	if inserted > 0 {
		logger.Info("question catalog seeded", zap.Int("questions", inserted))
	} else {
		logger.Debug("question catalog already present")
	}
	return nil
}
