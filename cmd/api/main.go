package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lessonshop/internal/cache"
	"lessonshop/internal/config"
	"lessonshop/internal/db"
	"lessonshop/internal/httpserver"
	"lessonshop/internal/logging"
	"lessonshop/internal/metrics"
	lessonrepo "lessonshop/internal/repository/lesson"
	orderrepo "lessonshop/internal/repository/order"
	lessonsvc "lessonshop/internal/service/lesson"
	ordersvc "lessonshop/internal/service/order"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger, err := logging.New("api", cfg.LogLevel, cfg.LogPretty, os.Stdout)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("init logger")
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to db")
	}
	defer dbpool.Close()

	var lessonCache cache.LessonCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, lesson reads fall through to postgres")
		}
		lessonCache = cache.NewRedisCache(rdb, cfg.LessonCacheTTL)
		logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.LessonCacheTTL).Msg("lesson cache enabled")
	}

	lessonRepo := lessonrepo.NewPostgres(dbpool, logger)
	lessonService := lessonsvc.New(lessonRepo, lessonCache, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	orderService := ordersvc.New(orderRepo, lessonRepo, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics("api", reg)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		LessonSvc: lessonService,
		OrderSvc:  orderService,
		Metrics:   serverMetrics,
	}, httpserver.Options{
		CORSOrigins: cfg.CORSOrigins,
		FileURLHost: cfg.FileURLHost,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}
