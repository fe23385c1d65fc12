package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dealwatch/internal/config"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := newRootCmd(cfg).ExecuteContext(context.Background()); err != nil {
		slog.Error("dealwatch failed", "error", err)
		os.Exit(1)
	}
}

// newRootCmd serves by default; backfill replays historical files.
func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "dealwatch",
		Short:         "Confidence-routed sales call classification and stall alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newBackfillCmd(cfg))
	return root
}

func newServeCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the NATS consumers, HTTP API and janitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
