package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/purseflow/consumer"
	"golang.org/x/exp/slog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := consumer.LoadConfig()
	if err != nil {
		logger.Error("loading config", slog.Any("err", err))
		os.Exit(1)
	}

	app := consumer.NewApp(logger, cfg)
	if err := app.Start(); err != nil {
		logger.Error("starting app", slog.Any("err", err))
		app.Shutdown()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	<-ctx.Done()

	app.Shutdown()
}
