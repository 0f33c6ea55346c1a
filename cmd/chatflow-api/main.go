// Command chatflow-api serves the /api/send endpoint and, for transports that
// offer a subscriber, consumes the stream in the same process.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/drblury/chatflow"
	_ "github.com/drblury/chatflow/transport/transports"
)

func main() {
	configPath := flag.String("config", "", "optional path to a YAML config file")
	flag.Parse()

	cfg, err := chatflow.LoadConfig(*configPath)
	if err != nil {
		chatflow.NewJSONServiceLogger(os.Stderr, "error").Error("Invalid configuration", err, nil)
		os.Exit(1)
	}
	logger := chatflow.NewJSONServiceLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := chatflow.TryNewService(cfg, logger, ctx, chatflow.ServiceDependencies{})
	if err != nil {
		logger.Error("Failed to create chat service", err, nil)
		os.Exit(1)
	}

	logger.Info("Chat API listening", chatflow.LogFields{"port": cfg.HTTPPort, "stream": cfg.StreamName})
	if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Chat service stopped", err, nil)
		os.Exit(1)
	}
}
