package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/davidahmann/txnscore/internal/audit"
	"github.com/davidahmann/txnscore/internal/audit/pgstore"
	"github.com/davidahmann/txnscore/internal/audit/sqlstore"
	"github.com/davidahmann/txnscore/internal/config"
	"github.com/davidahmann/txnscore/internal/logging"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/stream"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv); err != nil && err != context.Canceled {
		fatalf("stream error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string

func run(args []string, getenv envFn) error {
	fs := flag.NewFlagSet("txnscore-stream", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to txnscore config file")
	maxInFlight := fs.Int64("max-in-flight", 4, "max concurrent single-record runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("TXNSCORE_CONFIG_PATH")
	}
	if cfgFile == "" {
		return fmt.Errorf("config file is required (-config or TXNSCORE_CONFIG_PATH)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}

	pol := policy.Default()
	if cfg.PolicyPath != "" {
		loaded, err := policy.Load(cfg.PolicyPath)
		if err != nil {
			return err
		}
		pol = loaded.Policy
		logger.Info().Str("policy_id", pol.PolicyID).Str("policy_hash", loaded.Hash).Msg("policy loaded")
	}

	store, err := openStore(cfg.DB)
	if err != nil {
		return err
	}

	runner := pipeline.New(pipeline.Options{Policy: pol, Logger: *logger})

	consumer, err := stream.New(stream.Config{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		GroupID:     cfg.Kafka.GroupID,
		MaxInFlight: *maxInFlight,
	}, runner, store, *logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error().Err(err).Msg("close consumer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("txnscore-stream consuming")
	return consumer.Run(ctx)
}

func openStore(db config.DBConfig) (audit.Store, error) {
	switch db.Driver {
	case "", "memory":
		return audit.NewInMemoryStore(), nil
	case "sqlite":
		return sqlstore.OpenSQLite(db.DSN)
	case "postgres":
		return pgstore.Open(db.DSN)
	}
	return nil, fmt.Errorf("unknown db driver %q", db.Driver)
}
