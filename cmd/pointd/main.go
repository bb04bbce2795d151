package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voltbridge/voltbridge/internal/config"
	"github.com/voltbridge/voltbridge/internal/observability"
	"github.com/voltbridge/voltbridge/internal/point"
	"github.com/voltbridge/voltbridge/internal/schema"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "pointd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "pointd.toml", "path to point config file")
	flag.Parse()

	cfg, err := config.LoadPointConfig(*configPath)
	if err != nil {
		return err
	}
	logger := observability.InitLogger(cfg.Name)
	observability.RegisterMetrics()

	store, err := cfg.Store()
	if err != nil {
		return err
	}

	var validator schema.Validator = schema.AllowAll()
	if dir := strings.TrimSpace(cfg.SchemaDir); dir != "" {
		validator = schema.NewDirStore(dir, logger)
	}

	client, err := point.NewClient(point.ClientConfig{
		CentralAddr:    cfg.CentralAddr,
		Model:          cfg.Model,
		Vendor:         cfg.Vendor,
		SerialNumber:   cfg.SerialNumber,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutSeconds) * time.Second,
		CallTimeout:    time.Duration(cfg.CallTimeoutSeconds) * time.Second,
	}, store, validator, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return client.Run(ctx)
}
