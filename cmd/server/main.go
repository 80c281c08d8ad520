// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/ledger"
	"github.com/jason-s-yu/uno/internal/lobby"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/uno"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logrus.New()
	if err := run(ctx, logger); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.JWTPrivateKeyPath != "" {
		err = auth.InitFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpireTime)
	} else {
		err = auth.Init(cfg.TokenExpireTime)
	}
	if err != nil {
		return fmt.Errorf("initializing auth: %w", err)
	}

	var stats handlers.StatsReader
	var (
		led    ledger.Ledger = ledger.NewMemory(cfg.StartingCoins)
		checks               = map[string]handlers.Checker{}
		opts                 = []gateway.Option{
			gateway.WithSelectionTTL(cfg.SelectionTTL),
			gateway.WithLobbyIdleTimeout(cfg.LobbyIdleTimeout),
			gateway.WithFinishedRetention(cfg.FinishedRetention),
		}
	)

	// --- Postgres ---
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		led = ledger.NewPostgres(pool, cfg.StartingCoins)
		recorder := database.NewRecorder(pool)
		opts = append(opts, gateway.WithRecorder(recorder))
		stats = recorder
		checks["postgres"] = handlers.CheckFunc(pool.Ping)
	} else {
		logger.Warn("DATABASE_URL not set, balances are kept in memory")
	}

	// --- Redis ---
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts = append(opts, gateway.WithActionLog(cache.NewQueue(rdb, cfg.HistorianQueueName)))
		checks["redis"] = handlers.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.WithField("queue", cfg.HistorianQueueName).Info("publishing actions to redis")
	}

	// --- NATS ---
	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer nc.Drain()
		opts = append(opts, gateway.WithNotifier(notify.NewNATS(nc, logger)))
		checks["nats"] = handlers.CheckFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		})
	}

	hub := handlers.NewHub()
	opts = append(opts, gateway.WithNotifier(hub))

	manager := lobby.NewManager(lobby.NewStore(), led, logger, cfg.SessionIdleTimeout)
	gw := gateway.New(uno.NewStore(), manager, led, logger, opts...)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(handlers.Deps{
			Gateway: gw,
			Hub:     hub,
			Ledger:  led,
			Stats:   stats,
			Logger:  logger,
			Checks:  checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ln, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
		}
		logger.Infof("Running on %s", cfg.HTTPAddr)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("interval", cfg.SweepInterval).Info("starting sweeper")
		return gw.Run(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	gw.Wait()
	return err
}
