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
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("init application", "error", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	if err := a.RunWorker(ctx); err != nil {
		lg.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
