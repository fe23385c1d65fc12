package backfill

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Config holds the backfill command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	Since      time.Time
	Until      time.Time
	DryRun     bool          // classify calls only; no CRM, audit or stall writes
	StatePath  string        // default DefaultStatePath
	BatchSize  int           // records between state saves and pauses
	Pause      time.Duration // pause after each batch
}

// Pipeline is the part of the processor a backfill drives.
type Pipeline interface {
	ProcessCall(ctx context.Context, evt processor.CallEvent) processor.Result
	Classify(evt processor.CallEvent) (processor.Outcome, error)
	IngestDocument(ctx context.Context, doc stall.Document) (processor.StallOutcome, error)
}

// Notifier receives batch summaries. The Slack poster satisfies it; an
// empty thread ts posts a standalone message.
type Notifier interface {
	PostThread(ctx context.Context, threadTS, text string) error
}

// Runner replays historical calls and deal documents through the pipeline.
type Runner struct {
	cfg      Config
	pipeline Pipeline
	notifier Notifier
	out      io.Writer
	logger   *slog.Logger
}

// NewRunner creates a backfill runner. notifier may be nil.
func NewRunner(cfg Config, p Pipeline, notifier Notifier, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Runner{
		cfg:      cfg,
		pipeline: p,
		notifier: notifier,
		out:      os.Stdout,
		logger:   logger,
	}
}

// SetOutput redirects the final summary.
func (r *Runner) SetOutput(w io.Writer) { r.out = w }

// Run executes the backfill, resuming from saved state.
func (r *Runner) Run(ctx context.Context) error {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	pending := files[:0]
	for _, f := range files {
		if !state.Done(f) {
			pending = append(pending, f)
		}
	}
	state.FilesRemaining = len(pending)
	r.logger.Info("files to process", "total", len(files), "pending", len(pending), "dry_run", r.cfg.DryRun)

	var (
		summaries  []FileSummary
		inBatch    int
		totalCalls int
		totalDocs  int
	)
	for _, path := range pending {
		records, err := ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse backfill file", "path", path, "error", err)
			state.Fail(err.Error())
			continue
		}

		fs := FileSummary{Path: path}
		for _, rec := range records {
			select {
			case <-ctx.Done():
				r.logger.Info("backfill interrupted, saving state")
				if !r.cfg.DryRun {
					_ = state.Save()
				}
				r.postBatchSummary(ctx, append(summaries, fs))
				return ctx.Err()
			default:
			}
			if !r.inDateRange(rec.Timestamp()) {
				continue
			}
			if fs.Date == "" && !rec.Timestamp().IsZero() {
				fs.Date = rec.Timestamp().Format("2006-01-02")
			}

			if err := r.replay(ctx, rec, &fs); err != nil {
				r.logger.Error("replay failed", "path", path, "line", rec.Line, "error", err)
				state.Fail(fmt.Sprintf("%s:%d: %v", path, rec.Line, err))
				fs.Errors++
			}

			inBatch++
			if inBatch >= r.cfg.BatchSize {
				r.logger.Info("batch complete", "records", inBatch)
				if !r.cfg.DryRun {
					_ = state.Save()
				}
				inBatch = 0
				if r.cfg.Pause > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(r.cfg.Pause):
					}
				}
			}
		}

		totalCalls += fs.Calls
		totalDocs += fs.Documents
		summaries = append(summaries, fs)
		if r.cfg.DryRun {
			continue
		}
		state.Complete(fs)
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save backfill state", "error", err)
		}
	}

	r.postBatchSummary(ctx, summaries)

	r.logger.Info("backfill complete",
		"files_processed", len(summaries),
		"calls", totalCalls,
		"documents", totalDocs,
		"dry_run", r.cfg.DryRun,
	)

	fmt.Fprintf(r.out, "\n=== Backfill Summary ===\n")
	fmt.Fprintf(r.out, "Files processed: %d\n", len(summaries))
	fmt.Fprintf(r.out, "Calls: %d\n", totalCalls)
	fmt.Fprintf(r.out, "Documents: %d\n", totalDocs)
	fmt.Fprintf(r.out, "Errors: %d\n", len(state.Errors))
	if r.cfg.DryRun {
		fmt.Fprintf(r.out, "Mode: DRY RUN (classification only)\n")
	}
	fmt.Fprintf(r.out, "State file: %s\n", state.Path())

	return nil
}

func (r *Runner) replay(ctx context.Context, rec Record, fs *FileSummary) error {
	switch {
	case rec.Call != nil:
		fs.Calls++
		if r.cfg.DryRun {
			out, err := r.pipeline.Classify(*rec.Call)
			if err != nil {
				return err
			}
			countDecision(fs, out)
			return nil
		}
		res := r.pipeline.ProcessCall(ctx, *rec.Call)
		if res.Payload != nil {
			countDecision(fs, *res.Payload)
			if res.Payload.Stall != nil && res.Payload.Stall.Alert != nil {
				fs.Alerts++
			}
		}
		if !res.Success {
			return fmt.Errorf("call %s: %s", rec.Call.CallID, res.Error)
		}
	case rec.Document != nil:
		fs.Documents++
		if r.cfg.DryRun {
			return nil
		}
		out, err := r.pipeline.IngestDocument(ctx, *rec.Document)
		if err != nil {
			return fmt.Errorf("document for deal %s: %w", rec.Document.DealID, err)
		}
		if out.Alert != nil {
			fs.Alerts++
		}
	}
	return nil
}

func countDecision(fs *FileSummary, out processor.Outcome) {
	switch out.Decision.Action {
	case router.ActionAutoUpdate:
		fs.Applied++
	case router.ActionFlagForConfirmation:
		fs.Flagged++
	}
}

// postBatchSummary posts the summary through the notifier, or logs it when
// none is configured.
func (r *Runner) postBatchSummary(ctx context.Context, summaries []FileSummary) {
	if len(summaries) == 0 {
		return
	}

	text := FormatDailySummary(summaries)

	if r.notifier == nil {
		r.logger.Info("backfill batch summary", "summary", text)
		return
	}
	if err := r.notifier.PostThread(ctx, "", text); err != nil {
		r.logger.Warn("failed to post batch summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
	}
}

// FormatDailySummary formats file summaries grouped by date.
func FormatDailySummary(summaries []FileSummary) string {
	byDate := make(map[string][]FileSummary)
	for _, s := range summaries {
		date := s.Date
		if date == "" {
			date = "unknown"
		}
		byDate[date] = append(byDate[date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("*Backfill Batch Summary*\n")

	for _, date := range dates {
		files := byDate[date]
		calls, docs, alerts := 0, 0, 0
		for _, f := range files {
			calls += f.Calls
			docs += f.Documents
			alerts += f.Alerts
		}
		fmt.Fprintf(&sb, "\n*%s* (%d files, %d calls, %d documents, %d alerts)\n", date, len(files), calls, docs, alerts)
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s: %d calls (%d auto, %d flagged), %d docs",
				filepath.Base(f.Path), f.Calls, f.Applied, f.Flagged, f.Documents)
			if f.Errors > 0 {
				fmt.Fprintf(&sb, " (%d errors)", f.Errors)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("backfill dir not found: %s", dir)
	}
	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking backfill dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}

// inDateRange reports whether ts falls in the configured window. Records
// without a timestamp are always replayed.
func (r *Runner) inDateRange(ts time.Time) bool {
	if ts.IsZero() {
		return true
	}
	if !r.cfg.Since.IsZero() && ts.Before(r.cfg.Since) {
		return false
	}
	if !r.cfg.Until.IsZero() && ts.After(r.cfg.Until) {
		return false
	}
	return true
}
