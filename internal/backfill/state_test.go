package backfill

import (
	"os"
	"path/filepath"
	"testing"
)

func TestState_SaveAndResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := LoadState(path)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	s.FilesRemaining = 2
	s.Complete(FileSummary{Path: "2026-01-01.jsonl", Calls: 3, Documents: 1})
	s.Complete(FileSummary{Path: "2026-01-02.jsonl", Calls: 2, Applied: 1})
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadState(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.Done("2026-01-02.jsonl") || loaded.Done("2026-01-03.jsonl") {
		t.Errorf("completed = %v", loaded.Completed)
	}
	if loaded.CallsReplayed != 5 || loaded.DocumentsIngested != 1 || loaded.FilesRemaining != 0 {
		t.Errorf("totals not restored: %+v", loaded)
	}
	if got := loaded.Completed["2026-01-02.jsonl"].Applied; got != 1 {
		t.Errorf("per-file summary lost, applied = %d", got)
	}
	if loaded.StartedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Errorf("timestamps not set: %+v", loaded)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the state file, found %d entries", len(entries))
	}
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"missing file starts fresh", filepath.Join(dir, "none.json"), false},
		{"corrupt file", corrupt, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadState(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadState: %v", err)
			}
			if len(s.Completed) != 0 || s.StartedAt.IsZero() || s.Path() != tt.path {
				t.Errorf("unexpected fresh state %+v", s)
			}
		})
	}
}

func TestState_Fail(t *testing.T) {
	s := &State{}
	s.Fail("a.jsonl:3: bad stage")
	s.Fail("b.jsonl: unreadable")
	if len(s.Errors) != 2 || s.Errors[0] != "a.jsonl:3: bad stage" {
		t.Errorf("errors = %v", s.Errors)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	if got, want := expandHome("~/x/state.json"), filepath.Join(home, "x/state.json"); got != want {
		t.Errorf("expandHome = %q, want %q", got, want)
	}
	if got := expandHome("/abs/state.json"); got != "/abs/state.json" {
		t.Errorf("absolute path changed: %q", got)
	}
}
