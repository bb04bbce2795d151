package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voltbridge/voltbridge/internal/admin"
	"github.com/voltbridge/voltbridge/internal/central"
	"github.com/voltbridge/voltbridge/internal/config"
	"github.com/voltbridge/voltbridge/internal/observability"
	"github.com/voltbridge/voltbridge/internal/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "centrald: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "centrald.toml", "path to central config file")
	flag.Parse()

	cfg, err := config.LoadCentralConfig(*configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger(cfg.Name)
	observability.RegisterMetrics()

	var validator schema.Validator = schema.AllowAll()
	if dir := strings.TrimSpace(cfg.SchemaDir); dir != "" {
		validator = schema.NewDirStore(dir, logger)
	} else {
		logger.Warn().Msg("no schema_dir configured, payload validation disabled")
	}

	srv, err := central.NewServer(central.ServerConfig{
		ListenAddr:        cfg.ListenAddr,
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
		CallTimeout:       time.Duration(cfg.CallTimeoutSeconds) * time.Second,
	}, validator, logger)
	if err != nil {
		return err
	}

	facade, err := admin.NewServer(admin.Config{
		Addr:        cfg.AdminAddr,
		CallTimeout: time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.AdminRateLimit,
		RateBurst:   cfg.AdminRateBurst,
	}, srv.Registry(), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminErr := make(chan error, 1)
	go func() { adminErr <- facade.Run(ctx) }()

	if err := srv.Serve(ctx); err != nil {
		return err
	}
	return <-adminErr
}
