package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"lessonshop/internal/config"
	"lessonshop/internal/db"
	"lessonshop/internal/logging"
	lessonrepo "lessonshop/internal/repository/lesson"
	"lessonshop/internal/seed"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New("seed", cfg.LogLevel, cfg.LogPretty, os.Stdout)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("init logger")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	n, err := seed.Apply(ctx, lessonrepo.NewPostgres(pool, logger))
	if err != nil {
		logger.Fatal().Err(err).Int("seeded", n).Msg("seed apply")
	}

	logger.Info().Int("lessons", n).Msg("seed applied")
}
