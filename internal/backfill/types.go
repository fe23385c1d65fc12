package backfill

import (
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Record is one line of a backfill file. Exactly one of Call or Document is set.
type Record struct {
	Call     *processor.CallEvent `json:"call,omitempty"`
	Document *stall.Document      `json:"document,omitempty"`

	Line int `json:"-"`
}

// Timestamp is when the recorded call or document happened. Zero if unknown.
func (r Record) Timestamp() time.Time {
	switch {
	case r.Call != nil:
		return r.Call.OccurredAt
	case r.Document != nil:
		return r.Document.Timestamp
	}
	return time.Time{}
}

// FileSummary counts what one file contributed.
type FileSummary struct {
	Path      string `json:"path"`
	Date      string `json:"date,omitempty"`
	Calls     int    `json:"calls"`
	Applied   int    `json:"applied"`
	Flagged   int    `json:"flagged"`
	Documents int    `json:"documents"`
	Alerts    int    `json:"alerts"`
	Errors    int    `json:"errors"`
}
