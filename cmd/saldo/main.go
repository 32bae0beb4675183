package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"saldo/internal/cache"
	"saldo/internal/cli"
	apphttp "saldo/internal/http"
	"saldo/internal/ledger"
	"saldo/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	calendar := cache.NewLRUCache[[]ledger.DayGroup](32, 10*time.Minute)
	svc, err := cli.OpenLedgerService(ctx, cfg, logger, calendar)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger", err)
	}

	caches := cache.NewManager(logger)
	caches.Register(calendar)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		RecentLimit: cfg.RecentLimit,
		Location:    cfg.Location(),
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting saldo server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if err := svc.Close(); err != nil {
		logger.Error("Failed to release ledger resources", log.FieldError, err.Error())
	}
	if runErr != nil {
		cli.Fatal(logger, "Server error", runErr)
	}
	logger.Info("Server stopped gracefully")
}
