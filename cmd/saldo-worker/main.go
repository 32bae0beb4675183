// Command saldo-worker consumes ledger change events from AMQP and audits
// each one against the stored ledger.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cli"
	"saldo/internal/log"
	"saldo/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker, os.Stdout)
	logger.Info("Starting saldo-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger store", err)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}

	auditor := worker.NewAuditWorker(result.Store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeLedgerChanged(gctx, auditor.HandleLedgerChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := auditor.Stats()
				logger.Info("Audit stats",
					log.FieldOperation, log.OpAudit,
					"processed", s.Processed,
					"inconsistent", s.Inconsistent,
					"stale", s.Stale)
			}
		}
	})

	runErr := g.Wait()
	logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
	if err := amqpClient.Close(); err != nil {
		logger.Error("Failed to close AMQP client", log.FieldError, err.Error())
	}
	if result.Cleanup != nil {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close ledger store", log.FieldError, err.Error())
		}
	}
	if runErr != nil {
		cli.Fatal(logger, "Message consumption failed", runErr)
	}
	logger.Info("Worker shutdown complete")
}
