package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/davidahmann/txnscore/internal/api"
	"github.com/davidahmann/txnscore/internal/audit"
	"github.com/davidahmann/txnscore/internal/audit/pgstore"
	"github.com/davidahmann/txnscore/internal/audit/sqlstore"
	"github.com/davidahmann/txnscore/internal/config"
	"github.com/davidahmann/txnscore/internal/logging"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/policy"
	"github.com/davidahmann/txnscore/internal/summarize"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

type envFn func(string) string
type listenFn func(*http.Server) error

func run(args []string, getenv envFn, listen listenFn) error {
	fs := flag.NewFlagSet("txnscore-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to txnscore config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("TXNSCORE_CONFIG_PATH")
	}

	cfg := config.Config{ListenAddr: ":8080"}
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	addr := firstNonEmpty(getenv("TXNSCORE_LISTEN_ADDR"), cfg.ListenAddr, ":8080")

	logger, err := logging.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}

	pol := policy.Default()
	policyPath := firstNonEmpty(getenv("TXNSCORE_POLICY_PATH"), cfg.PolicyPath)
	if policyPath != "" {
		loaded, err := policy.Load(policyPath)
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

	var summarizer summarize.Summarizer
	summaryTTL := time.Duration(cfg.Summarizer.TimeoutMS) * time.Millisecond
	if cfg.Summarizer.Enabled {
		summarizer = summarize.Template{}
	}

	h := &api.Handler{
		Runner:     runner,
		Store:      store,
		Summarizer: summarizer,
		SummaryTTL: summaryTTL,
		Log:        *logger,
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("txnscore-gateway listening")
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
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

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
