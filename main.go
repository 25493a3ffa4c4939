package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/threadline/threadline/pkg/config"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/utils"
)

func main() {
	// Initialize logging system
	utils.InitLogger()
	logger := utils.GetLogger()

	cfg, path, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config; falling back to defaults", "error", err, "path", path)
		cfg = &config.AppConfig{}
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DatabasePath())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, database)
	if err := server.Start(ctx); err != nil {
		logger.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}
