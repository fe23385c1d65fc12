package backfill

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultStatePath = "~/.dealwatch/backfill-state.json"

// State is the resumable progress of a backfill run. Files already in
// Completed are skipped on the next run.
type State struct {
	StartedAt         time.Time              `json:"started_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Completed         map[string]FileSummary `json:"completed"`
	FilesRemaining    int                    `json:"files_remaining"`
	CallsReplayed     int                    `json:"calls_replayed"`
	DocumentsIngested int                    `json:"documents_ingested"`
	Errors            []string               `json:"errors,omitempty"`

	path string
}

// LoadState reads the state file at path. A missing file yields a fresh state.
func LoadState(path string) (*State, error) {
	if path == "" {
		path = DefaultStatePath
	}
	path = expandHome(path)

	s := &State{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.StartedAt = time.Now().UTC()
		s.Completed = map[string]FileSummary{}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	if s.Completed == nil {
		s.Completed = map[string]FileSummary{}
	}
	return s, nil
}

// Path is where Save writes.
func (s *State) Path() string { return s.path }

// Done reports whether file was fully replayed by an earlier run.
func (s *State) Done(file string) bool {
	_, ok := s.Completed[file]
	return ok
}

// Complete records a replayed file and folds its counts into the totals.
func (s *State) Complete(sum FileSummary) {
	if s.Completed == nil {
		s.Completed = map[string]FileSummary{}
	}
	s.Completed[sum.Path] = sum
	s.CallsReplayed += sum.Calls
	s.DocumentsIngested += sum.Documents
	if s.FilesRemaining > 0 {
		s.FilesRemaining--
	}
}

// Fail appends an error message.
func (s *State) Fail(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Save writes the state through a temp file and rename so an interrupted
// write never leaves a truncated file behind.
func (s *State) Save() error {
	s.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".backfill-state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~/")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
