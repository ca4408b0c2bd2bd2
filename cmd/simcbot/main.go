package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seantiz/simcbot/internal/api"
	"github.com/seantiz/simcbot/internal/bot"
	"github.com/seantiz/simcbot/internal/config"
	"github.com/seantiz/simcbot/internal/delivery"
	"github.com/seantiz/simcbot/internal/executor"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
	"github.com/seantiz/simcbot/internal/queue"
	"github.com/seantiz/simcbot/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := executor.Check(cfg.SimcPath); err != nil {
		log.Fatalf("simc: %v", err)
	}

	logger.Info("simcbot: starting",
		"listen_addr", cfg.ListenAddr,
		"simc_path", cfg.SimcPath,
		"db_path", cfg.DBPath,
		"job_timeout", cfg.JobTimeout,
	)

	reg, err := params.NewRegistry(cfg.Parameters()...)
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	builder := profile.NewBuilder(reg, cfg.ProfileDir, cfg.ReportDir)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliverer, closeDeliverer, err := newDeliverer(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("delivery: %v", err)
	}
	defer closeDeliverer()

	worker := queue.NewWorker(queue.Config{
		Renderer:   builder,
		Executor:   executor.NewRunner(logger),
		Deliverer:  deliverer,
		Store:      db,
		Logger:     logger,
		Executable: cfg.SimcPath,
		Timeout:    cfg.JobTimeout,
		KeepFiles:  cfg.KeepFiles,
	})

	b := bot.New(bot.Config{
		OwnerID:   cfg.OwnerID,
		SendAsDM:  cfg.SendAsDM,
		AddonPath: cfg.AddonPath,
	}, reg, builder, worker, logger)

	srv := api.NewServer(cfg.ListenAddr, b, worker, db, logger)

	// The worker outlives the signal context so the executing job can finish
	// within the shutdown timeout.
	var wg sync.WaitGroup
	wg.Go(func() {
		if err := worker.Run(context.Background()); err != nil {
			logger.Warn("worker stopped", "error", err)
		}
	})

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := worker.Shutdown(shutdownCtx); err != nil {
		logger.Warn("executing job aborted at shutdown", "error", err)
	}
	wg.Wait()

	logger.Info("simcbot: stopped")
}

// newDeliverer publishes to AMQP when a broker URL is configured and writes
// to the outbox directory otherwise.
func newDeliverer(ctx context.Context, cfg config.Config, logger *slog.Logger) (delivery.Deliverer, func(), error) {
	if cfg.AMQP.URL == "" {
		ob, err := delivery.NewOutbox(cfg.OutboxDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("delivering to outbox", "dir", cfg.OutboxDir)
		return ob, func() {}, nil
	}

	pub, err := delivery.DialAMQP(ctx, delivery.AMQPConfig{
		URL:            cfg.AMQP.URL,
		Exchange:       cfg.AMQP.Exchange,
		RoutingKey:     cfg.AMQP.RoutingKey,
		PublishRetries: 3,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("close amqp publisher", "error", err)
		}
	}, nil
}
