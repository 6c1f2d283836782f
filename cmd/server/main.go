// Package main is the entry point for the SkyPulse API server. Sessions are
// driven in-process unless SKYPULSE_LAUNCHER=asynq hands them to cmd/worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/app"
	"github.com/dharsanguruparan/skypulse/internal/config"
	"github.com/dharsanguruparan/skypulse/internal/logger"
)

func main() {
	// Step 1: load configuration from the environment.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	// Step 2: cancel on SIGINT/SIGTERM so the server and in-flight runs wind down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Step 3: wire store, orchestrator, launcher and API.
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("init application", "error", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			lg.Error("close application", "error", err)
		}
	}()

	// Step 4: block until the HTTP server exits.
	if err := a.API().Run(ctx); err != nil {
		lg.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
