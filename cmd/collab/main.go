// Package main starts the collab engine process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	collabcmd "github.com/finalProject2025/TP-sub000/internal/cmd/collab"
	"github.com/finalProject2025/TP-sub000/internal/platform/config"
	"github.com/finalProject2025/TP-sub000/internal/platform/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	logger, err := logging.FromEnv()
	if err != nil {
		config.Exitf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("collab")

	cfg, err := collabcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatal("parse flags", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := collabcmd.Run(ctx, cfg, logger); err != nil {
		logger.Fatal("failed to serve", zap.Error(err))
	}
}
