package backfill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "calls.jsonl",
		`{"call":{"call_id":"c1","email":"a@example.com","text":"not interested","occurred_at":"2026-02-01T10:00:00Z"}}`,
		``,
		`{"document":{"deal_id":"d1","source":"EMAIL","timestamp":"2026-02-02T10:00:00Z","text":"circle back next quarter"}}`,
	)

	records, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Call == nil || records[0].Call.CallID != "c1" || records[0].Line != 1 {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].Document == nil || records[1].Document.DealID != "d1" || records[1].Line != 3 {
		t.Errorf("record 1 = %+v", records[1])
	}
	if got := records[1].Timestamp().Format("2006-01-02"); got != "2026-02-02" {
		t.Errorf("timestamp = %s", got)
	}
}

func TestParseFile_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		line string
		want string
	}{
		{"malformed", `{"call":`, "bad.jsonl:1"},
		{"neither", `{"other":1}`, "exactly one"},
		{"both", `{"call":{"call_id":"c"},"document":{"deal_id":"d"}}`, "exactly one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.jsonl", tt.line)
			_, err := ParseFile(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
