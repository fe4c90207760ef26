package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"lessonshop/internal/config"
	"lessonshop/internal/db"
	"lessonshop/internal/logging"
	"lessonshop/internal/migrate"
)

func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New("migrate", cfg.LogLevel, cfg.LogPretty, os.Stdout)
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

	if *down {
		if err := migrate.Rollback(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("roll back migration")
		}
		logger.Info().Msg("migration rolled back")
		return
	}

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	logger.Info().Msg("migrations applied")
}
