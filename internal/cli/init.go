// Package cli holds the startup steps shared by cmd/saldo, cmd/saldo-worker
// and cmd/saldoctl, plus the saldoctl subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"saldo/internal/amqp"
	"saldo/internal/backend"
	"saldo/internal/cache"
	"saldo/internal/config"
	"saldo/internal/events"
	"saldo/internal/events/kafka"
	"saldo/internal/ledger"
	"saldo/internal/log"
	"saldo/internal/services"
)

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it. Callers exit on error.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewPublisher returns the change-event publisher selected by EVENTS_BACKEND.
func NewPublisher(cfg *config.Config, logger *log.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		logger.Info("Publishing ledger changes to AMQP",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
		return client, nil
	case "kafka":
		logger.Info("Publishing ledger changes to Kafka",
			"brokers", cfg.KafkaBrokers,
			"topic", cfg.KafkaTopic)
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return events.Nop{}, nil
	}
}

// OpenLedgerService wires store, publisher and an optional calendar cache
// into a LedgerService. Closing the service releases the store and publisher.
func OpenLedgerService(ctx context.Context, cfg *config.Config, logger *log.Logger, calendarCache cache.Cache[[]ledger.DayGroup]) (*services.LedgerService, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	publisher, err := NewPublisher(cfg, logger)
	if err != nil {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		return nil, err
	}

	opts := []services.Option{}
	if result.Cleanup != nil {
		opts = append(opts, services.WithCleanup(result.Cleanup))
	}
	if calendarCache != nil {
		opts = append(opts, services.WithCalendarCache(calendarCache))
	}
	return services.NewLedgerService(result.Store, publisher, opts...), nil
}

// Fatal logs err as a startup failure and exits the process.
func Fatal(logger *log.Logger, msg string, err error) {
	log.NewStructuredLogger(logger).LogError(context.Background(), msg, err, logger.Component(), log.OpStartup, nil)
	os.Exit(1)
}
