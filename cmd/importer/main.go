package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"lessonshop/internal/config"
	"lessonshop/internal/db"
	"lessonshop/internal/importer"
	"lessonshop/internal/logging"
	lessonrepo "lessonshop/internal/repository/lesson"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to lessons CSV (id,subject,location,price,spaces,icon)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New("importer", cfg.LogLevel, cfg.LogPretty, os.Stderr)
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

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open file")
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, lessonrepo.NewPostgres(pool, logger))

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal().Err(err).Int("imported", count).Msg("import failed")
	}

	fmt.Printf("Imported %d lessons in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
