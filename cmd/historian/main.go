// cmd/historian is an asynchronous historian service that pops action records from a Redis queue
// and persists them to PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	if err := run(ctx, logger); err != nil {
		logger.WithError(err).Error("historian exited")
		os.Exit(1)
	}
	logger.Info("Historian shutdown complete.")
}

func run(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.DatabaseURL == "" || cfg.RedisAddr == "" {
		return errors.New("historian needs DATABASE_URL and REDIS_ADDR")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	queue := cache.NewQueue(rdb, cfg.HistorianQueueName)
	logger.WithField("queue", queue.Name()).Info("draining action queue")

	svc := historian.New(queue, database.NewActionStore(pool), logger, historian.Options{
		BatchSize:     cfg.HistorianBatchSize,
		FlushInterval: cfg.FlushInterval(),
		Inactivity:    cfg.GameInactivityTimeout,
	})
	return svc.Run(ctx)
}
