package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"basketvault/config"
	"basketvault/core/events"
	"basketvault/core/genesis"
	"basketvault/core/vault"
	"basketvault/native/common"
	"basketvault/observability"
	"basketvault/observability/logging"
	telemetry "basketvault/observability/otel"
	"basketvault/services/basketd/server"
	"basketvault/services/basketd/storage"
	kv "basketvault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "basketd.toml", "path to basketd configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("basketd: load config", "error", err)
		os.Exit(1)
	}

	logOpts := []logging.Option{logging.WithLevel(logging.ParseLevel(cfg.Logging.Level))}
	if cfg.Logging.File != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups))
	}
	logger := logging.Setup("basketd", cfg.Environment, logOpts...)
	for _, w := range cfg.Warnings() {
		logger.Warn("basketd: risky configuration", "detail", w)
	}
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "basketd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		fatal("init telemetry", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fatal("create data dir", err)
	}
	db, err := kv.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		fatal("open state database", err)
	}
	defer db.Close()

	pauses := common.NewPauseSet(cfg.PausedModules...)
	v, err := vault.New(db,
		vault.WithNamespace(cfg.DerivationNamespace),
		vault.WithPauses(pauses),
		vault.WithEmitter(events.Fanout{observability.Events()}),
		vault.WithLogger(logger),
		vault.WithMetrics(observability.Basket()),
		vault.WithMaxAssets(cfg.MaxAssets),
		vault.WithUnitBasis(cfg.UnitBasis()),
	)
	if err != nil {
		fatal("init vault", err)
	}

	if cfg.GenesisFile != "" {
		spec, err := genesis.Load(cfg.GenesisFile)
		if err != nil {
			fatal("load genesis", err)
		}
		res, err := v.ApplyGenesis(ctx, spec)
		if err != nil {
			fatal("apply genesis", err)
		}
		logger.Info("genesis processed", "applied", res.Applied, "assets", len(res.Assets))
	}

	dsn, err := storage.ResolveDSN(cfg.ReceiptsDSN)
	if err != nil {
		fatal("resolve receipts DSN", err)
	}
	store, err := storage.Open(dsn)
	if err != nil {
		fatal("open receipts storage", err)
	}
	defer store.Close()

	secret := strings.TrimSpace(os.Getenv(cfg.JWTSecretEnv))
	auth, err := server.NewAuthenticator(server.AuthConfig{Secret: []byte(secret)})
	if err != nil {
		fatal("configure auth from "+cfg.JWTSecretEnv, err)
	}

	srv, err := server.New(server.Config{
		ListenAddress: cfg.ListenAddress,
		RateLimit: server.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
	}, v, store, pauses, auth, logger)
	if err != nil {
		fatal("init server", err)
	}
	if err := srv.Run(ctx); err != nil {
		fatal("server stopped", err)
	}
	logger.Info("basketd stopped")
}
