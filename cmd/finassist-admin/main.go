package main

import (
	"context"
	"os"

	"finassist/internal/backend"
	"finassist/internal/cli"
	applog "finassist/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.SetupLogger(applog.ComponentAdmin, "info").Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(applog.ComponentAdmin, cfg.LogLevel)

	open := func(ctx context.Context) (*backend.BackendResult, error) {
		return cli.OpenStore(ctx, logger, cfg)
	}
	if err := cli.NewAdminCommand(open, nil).Execute(); err != nil {
		os.Exit(1)
	}
}
