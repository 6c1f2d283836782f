package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/skypulse/internal/app"
	"github.com/dharsanguruparan/skypulse/internal/config"
	"github.com/dharsanguruparan/skypulse/internal/logger"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "skypulse: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skypulse",
		Short: "SkyPulse batch enrichment of astronomical objects",
		Long: `SkyPulse resolves lists of astronomical identifiers into enriched catalog records.
Configuration is read from SKYPULSE_* environment variables.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log component activity to stderr")
	cmd.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newClassifyCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				return a.API().Run(ctx)
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume queued session runs from asynq",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				return a.RunWorker(ctx)
			})
		},
	}
}

// withApp loads config, wires the application, runs fn, and closes the
// application afterwards. Long-running commands always log; one-shot commands
// only with --verbose.
func withApp(ctx context.Context, alwaysLog bool, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lg := logger.NewNop()
	if alwaysLog || verbose {
		if lg, err = logger.New(cfg.LogMode); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	defer lg.Sync()

	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			lg.Error("close application", "error", err)
		}
	}()
	return fn(ctx, a)
}
