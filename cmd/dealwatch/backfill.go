package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/dealwatch/internal/backfill"
	"github.com/MikeSquared-Agency/dealwatch/internal/config"
	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/slack"
)

func newBackfillCmd(cfg config.Config) *cobra.Command {
	var (
		bf           backfill.Config
		since, until string
		summaries    bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay historical calls and deal documents from JSONL files",
		Long: `Replay historical calls and deal documents through the pipeline.

Each line of a .jsonl file holds either {"call": {...}} or {"document": {...}}.
Progress is saved so an interrupted run resumes where it stopped. Alerts are
not generated for historical data.`,
		Example: `  # Preview how last month's calls would be routed
  dealwatch backfill --dir ./history --since 2026-09-01 --dry-run

  # Replay one file
  dealwatch backfill --file ./history/2026-09-14.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if bf.Since, err = parseDay(since); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			if bf.Until, err = parseDay(until); err != nil {
				return fmt.Errorf("--until: %w", err)
			}
			if bf.Dir == "" && bf.SingleFile == "" {
				return fmt.Errorf("one of --dir or --file is required")
			}
			return runBackfill(cmd.Context(), cfg, bf, summaries)
		},
	}

	cmd.Flags().StringVar(&bf.Dir, "dir", "", "Directory of .jsonl files")
	cmd.Flags().StringVar(&bf.SingleFile, "file", "", "Process a single file")
	cmd.Flags().StringVar(&since, "since", "", "Skip records before this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Skip records after this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&bf.DryRun, "dry-run", false, "Classify calls only; write nothing")
	cmd.Flags().StringVar(&bf.StatePath, "state", backfill.DefaultStatePath, "Resumable state file")
	cmd.Flags().IntVar(&bf.BatchSize, "batch-size", 100, "Records between state saves")
	cmd.Flags().DurationVar(&bf.Pause, "pause", 0, "Pause after each batch")
	cmd.Flags().BoolVar(&summaries, "slack-summary", false, "Post the run summary to the review channel")

	return cmd
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func runBackfill(ctx context.Context, cfg config.Config, bf backfill.Config, summaries bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	proc := processor.New(processor.Deps{
		Rules:   c.engine,
		Routing: c.routing,
		CRM:     c.records,
		Audit:   c.auditLog,
		Stall:   c.analyzer,
		Metrics: c.metrics,
		Logger:  slog.Default(),
	})

	var notifier backfill.Notifier
	if summaries && cfg.SlackBotToken != "" && cfg.SlackReviewChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackReviewChannel, slog.Default())
	}
	return backfill.NewRunner(bf, proc, notifier, slog.Default()).Run(ctx)
}
