package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/drivekeeper/internal/client/cli"
	"github.com/dmitrijs2005/drivekeeper/internal/client/config"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		slog.Error("app init failed", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)
}
