package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AaronLay10/DiagramEngine/internal/app"
	"github.com/AaronLay10/DiagramEngine/internal/config"
	"github.com/AaronLay10/DiagramEngine/internal/events"
	"github.com/AaronLay10/DiagramEngine/internal/version"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := app.NewLogger(cfg.Service.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start engine", zap.Error(err))
	}
	defer a.Close()

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "api starting", map[string]interface{}{
		"service":  cfg.Service.Name,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
		"storage":  cfg.Storage.Driver,
		"mode":     cfg.Pipeline.Mode,
	})
	a.Start()

	if err := a.Serve(ctx); err != nil {
		logger.Error("api server failed", zap.Error(err))
	}
	events.Emit("info", "system.shutdown", "api stopped", map[string]interface{}{
		"service": cfg.Service.Name,
	})
}
