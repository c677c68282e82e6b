package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/picahq/pica-gateway/internal/config"
	"github.com/picahq/pica-gateway/internal/entities"
	"github.com/picahq/pica-gateway/internal/ratelimit"
	"github.com/picahq/pica-gateway/internal/store"
	"github.com/picahq/pica-gateway/internal/watchdog"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "pica-watchdog").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer db.Close(context.Background())

	limiter, err := ratelimit.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer limiter.Close()

	taskStore := store.NewCRUDStore[entities.Task](db, store.CollTasks)

	wd := watchdog.New(watchdog.Config{
		RateLimiterRefreshInterval: cfg.RateLimiterRefreshInterval,
		MaxTasksPerBatch:           int64(cfg.MaxTasksPerBatch),
		HTTPClientTimeout:          cfg.HTTPClientTimeout,
	}, taskStore, limiter)

	log.Info().Msg("watchdog starting")
	if err := wd.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("watchdog stopped with error")
	}
	log.Info().Msg("watchdog stopped")
}
