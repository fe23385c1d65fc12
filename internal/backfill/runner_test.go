package backfill

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/router"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePipeline struct {
	processed  []string
	classified []string
	documents  []string
}

func (p *fakePipeline) ProcessCall(_ context.Context, evt processor.CallEvent) processor.Result {
	p.processed = append(p.processed, evt.CallID)
	if evt.CallID == "broken" {
		return processor.Result{Error: "crm unavailable", Payload: &processor.Outcome{Decision: router.Decision{Action: router.ActionAutoUpdate}}}
	}
	return processor.Result{Success: true, Payload: &processor.Outcome{Decision: router.Decision{Action: router.ActionAutoUpdate}}}
}

func (p *fakePipeline) Classify(evt processor.CallEvent) (processor.Outcome, error) {
	p.classified = append(p.classified, evt.CallID)
	return processor.Outcome{Decision: router.Decision{Action: router.ActionFlagForConfirmation}}, nil
}

func (p *fakePipeline) IngestDocument(_ context.Context, doc stall.Document) (processor.StallOutcome, error) {
	p.documents = append(p.documents, doc.DealID)
	return processor.StallOutcome{Alert: &alerts.Alert{ID: "a1"}}, nil
}

type fakeNotifier struct{ texts []string }

func (n *fakeNotifier) PostThread(_ context.Context, threadTS, text string) error {
	if threadTS != "" {
		return fmt.Errorf("expected standalone post, got thread %s", threadTS)
	}
	n.texts = append(n.texts, text)
	return nil
}

func backfillDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "a.jsonl",
		`{"call":{"call_id":"c1","text":"x","occurred_at":"2026-02-01T10:00:00Z"}}`,
		`{"call":{"call_id":"old","text":"x","occurred_at":"2025-01-01T10:00:00Z"}}`,
		`{"document":{"deal_id":"d1","source":"EMAIL","timestamp":"2026-02-01T11:00:00Z","text":"y"}}`,
	)
	writeFile(t, dir, "b.jsonl",
		`{"call":{"call_id":"broken","text":"x","occurred_at":"2026-02-03T10:00:00Z"}}`,
	)
	writeFile(t, dir, "notes.txt", "ignored")
	return dir
}

func TestRunner_Run(t *testing.T) {
	dir := backfillDir(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	p := &fakePipeline{}
	n := &fakeNotifier{}

	r := NewRunner(Config{
		Dir:       dir,
		Since:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		StatePath: statePath,
		BatchSize: 2,
	}, p, n, discardLogger())
	var out bytes.Buffer
	r.SetOutput(&out)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fmt.Sprint(p.processed) != "[c1 broken]" {
		t.Errorf("processed = %v", p.processed)
	}
	if fmt.Sprint(p.documents) != "[d1]" {
		t.Errorf("documents = %v", p.documents)
	}
	if len(n.texts) != 1 || !strings.Contains(n.texts[0], "*2026-02-01* (1 files, 1 calls, 1 documents, 1 alerts)") {
		t.Errorf("summary = %q", n.texts)
	}
	if !strings.Contains(out.String(), "Files processed: 2") {
		t.Errorf("output = %s", out.String())
	}

	state, err := LoadState(statePath)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if len(state.Completed) != 2 || state.CallsReplayed != 2 || state.DocumentsIngested != 1 {
		t.Errorf("state = %+v", state)
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "broken") {
		t.Errorf("errors = %v", state.Errors)
	}

	// A second run resumes and finds nothing left.
	p2 := &fakePipeline{}
	r2 := NewRunner(Config{Dir: dir, StatePath: statePath}, p2, nil, discardLogger())
	r2.SetOutput(io.Discard)
	if err := r2.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(p2.processed)+len(p2.documents) != 0 {
		t.Errorf("resumed run replayed %v / %v", p2.processed, p2.documents)
	}
}

func TestRunner_DryRun(t *testing.T) {
	dir := backfillDir(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	p := &fakePipeline{}

	r := NewRunner(Config{Dir: dir, DryRun: true, StatePath: statePath}, p, nil, discardLogger())
	r.SetOutput(io.Discard)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.processed) != 0 || len(p.documents) != 0 {
		t.Errorf("dry run wrote: %v / %v", p.processed, p.documents)
	}
	if len(p.classified) != 3 {
		t.Errorf("classified = %v", p.classified)
	}
	state, _ := LoadState(statePath)
	if len(state.Completed) != 0 {
		t.Errorf("dry run must not mark files, got %v", state.Completed)
	}
}

func TestRunner_SingleFileMissing(t *testing.T) {
	r := NewRunner(Config{SingleFile: filepath.Join(t.TempDir(), "nope.jsonl")}, &fakePipeline{}, nil, discardLogger())
	if err := r.Run(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	dir := backfillDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakePipeline{}
	r := NewRunner(Config{Dir: dir, StatePath: filepath.Join(t.TempDir(), "s.json")}, p, nil, discardLogger())
	if err := r.Run(ctx); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(p.processed) != 0 {
		t.Errorf("cancelled run replayed %v", p.processed)
	}
}

func TestFormatDailySummary(t *testing.T) {
	text := FormatDailySummary([]FileSummary{
		{Path: "/x/b.jsonl", Date: "2026-02-02", Calls: 2, Applied: 1, Flagged: 1, Errors: 1},
		{Path: "/x/a.jsonl", Date: "2026-02-01", Calls: 1, Documents: 2, Alerts: 1},
		{Path: "/x/c.jsonl"},
	})
	first := strings.Index(text, "2026-02-01")
	second := strings.Index(text, "2026-02-02")
	if first < 0 || second < 0 || first > second {
		t.Errorf("dates not sorted:\n%s", text)
	}
	if !strings.Contains(text, "b.jsonl: 2 calls (1 auto, 1 flagged), 0 docs (1 errors)") {
		t.Errorf("missing file line:\n%s", text)
	}
	if !strings.Contains(text, "*unknown*") {
		t.Errorf("undated files should group under unknown:\n%s", text)
	}
}
