package backfill

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const maxLineSize = 4 << 20

// ParseFile reads a JSONL backfill file. Blank lines are skipped; a malformed
// line fails the whole file so it can be fixed and retried.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if (r.Call == nil) == (r.Document == nil) {
			return nil, fmt.Errorf("%s:%d: record must hold exactly one of call or document", path, line)
		}
		r.Line = line
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}
