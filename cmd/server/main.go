package main

// promoshop serves the storefront order API and the operator dashboard API.

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/promoshop/promoshop/app"
	"github.com/promoshop/promoshop/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	application, err := app.New()
	if err != nil {
		fallbackLogger.Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close()

	logger := application.Logger
	srv, err := server.New(application.Config, logger, application.Handlers)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", "error", err)
			return 1
		}
		return 0
	case sig := <-signals:
		logger.Info("shutdown requested", "signal", sig.String(), "timeout", application.Config.ShutdownTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), application.Config.ShutdownTimeout)
	defer cancel()

	if err := srv.Close(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return 1
	}
	if err := <-serverErr; err != nil {
		logger.Error("server stopped with error", "error", err)
		return 1
	}
	return 0
}
