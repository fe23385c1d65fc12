package detector

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

const (
	// MinLiveDuration is the call length in seconds a multi-speaker call must
	// exceed to count as a live conversation.
	MinLiveDuration = 30.0
	// LiveConversationConfidence is the confidence of a synthesized
	// LIVE_CONVERSATION signal.
	LiveConversationConfidence = 0.9
	// FallbackFactor scales base confidence for whole-text fallback hits.
	FallbackFactor = 0.8
	// RepeatBoost is added per repeated occurrence of a signal type.
	RepeatBoost = 0.1
)

// TranscriptDetector extracts typed signals from structured transcripts.
type TranscriptDetector struct {
	patterns []SignalPattern
}

// NewTranscriptDetector builds a detector over the given table; nil uses
// DefaultSignalPatterns.
func NewTranscriptDetector(patterns []SignalPattern) *TranscriptDetector {
	if patterns == nil {
		patterns = DefaultSignalPatterns()
	}
	return &TranscriptDetector{patterns: patterns}
}

// Validate rejects transcripts that cannot be scored.
func Validate(t Transcript) error {
	if strings.TrimSpace(t.CallID) == "" {
		return fmt.Errorf("%w: transcript has no call id", apperr.ErrValidation)
	}
	if t.Duration < 0 {
		return fmt.Errorf("%w: negative duration %.1f", apperr.ErrValidation, t.Duration)
	}
	hasText := false
	for i, s := range t.Segments {
		if s.Start < 0 || s.End < s.Start {
			return fmt.Errorf("%w: segment %d has invalid times %.1f-%.1f", apperr.ErrValidation, i, s.Start, s.End)
		}
		if strings.TrimSpace(s.Text) != "" {
			hasText = true
		}
	}
	if !hasText {
		return fmt.Errorf("%w: transcript %s has no text", apperr.ErrValidation, t.CallID)
	}
	return nil
}

// Detect returns the signals found in t in first-detection order. The
// transcript must already be valid.
func (d *TranscriptDetector) Detect(t Transcript) []Signal {
	acc := newAccumulator()

	if isLiveConversation(t) {
		acc.add(SignalLiveConversation, LiveConversationConfidence, "multiple speakers", t.stamp(0))
	}

	for _, seg := range t.Segments {
		for _, p := range d.patterns {
			for _, hit := range p.Regexp.FindAllString(seg.Text, -1) {
				acc.add(p.Type, p.BaseConfidence, hit, t.stamp(seg.Start))
			}
		}
	}

	// Phrases that straddle segment boundaries only count for types with no
	// per-segment hit.
	full := t.Text()
	for _, p := range d.patterns {
		if acc.fromSegments(p.Type) {
			continue
		}
		for _, hit := range p.Regexp.FindAllString(full, -1) {
			acc.addFallback(p.Type, p.BaseConfidence*FallbackFactor, hit, t.stamp(0))
		}
	}

	return acc.signals()
}

func isLiveConversation(t Transcript) bool {
	speakers := make(map[string]struct{})
	for _, s := range t.Segments {
		if s.Speaker != "" {
			speakers[strings.ToLower(s.Speaker)] = struct{}{}
		}
	}
	return len(speakers) > 1 && t.length() > MinLiveDuration
}

func (t Transcript) length() float64 {
	if t.Duration > 0 {
		return t.Duration
	}
	if len(t.Segments) == 0 {
		return 0
	}
	first, last := math.MaxFloat64, 0.0
	for _, s := range t.Segments {
		first = math.Min(first, s.Start)
		last = math.Max(last, s.End)
	}
	return last - first
}

func (t Transcript) stamp(offset float64) *time.Time {
	if t.StartedAt.IsZero() {
		return nil
	}
	ts := t.StartedAt.Add(time.Duration(offset * float64(time.Second)))
	return &ts
}

// accumulator merges repeated signal types into one signal each.
type accumulator struct {
	order    []SignalType
	byType   map[SignalType]*Signal
	segments map[SignalType]bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		byType:   make(map[SignalType]*Signal),
		segments: make(map[SignalType]bool),
	}
}

func (a *accumulator) add(t SignalType, conf float64, evidence string, ts *time.Time) {
	a.segments[t] = true
	a.merge(t, conf, evidence, ts)
}

func (a *accumulator) addFallback(t SignalType, conf float64, evidence string, ts *time.Time) {
	a.merge(t, conf, evidence, ts)
}

func (a *accumulator) fromSegments(t SignalType) bool {
	return a.segments[t]
}

func (a *accumulator) merge(t SignalType, conf float64, evidence string, ts *time.Time) {
	if s, ok := a.byType[t]; ok {
		s.Confidence = math.Min(1.0, math.Max(s.Confidence, conf)+RepeatBoost)
		return
	}
	a.order = append(a.order, t)
	a.byType[t] = &Signal{Type: t, Confidence: math.Min(1.0, conf), Evidence: evidence, Timestamp: ts}
}

func (a *accumulator) signals() []Signal {
	out := make([]Signal, 0, len(a.order))
	for _, t := range a.order {
		out = append(out, *a.byType[t])
	}
	return out
}

// TagInput is a structured call-signal tag supplied by an upstream system.
type TagInput struct {
	Type       SignalType `json:"type"`
	Confidence float64    `json:"confidence"`
	Evidence   string     `json:"evidence,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// FromTags validates structured tags and merges repeated types the same way
// transcript detection does.
func FromTags(tags []TagInput) ([]Signal, error) {
	acc := newAccumulator()
	for i, tag := range tags {
		if !tag.Type.Valid() {
			return nil, fmt.Errorf("%w: tag %d has unknown type %q", apperr.ErrValidation, i, tag.Type)
		}
		if tag.Confidence < 0 || tag.Confidence > 1 || math.IsNaN(tag.Confidence) {
			return nil, fmt.Errorf("%w: tag %d confidence %v outside [0,1]", apperr.ErrValidation, i, tag.Confidence)
		}
		acc.add(tag.Type, tag.Confidence, tag.Evidence, tag.Timestamp)
	}
	return acc.signals(), nil
}
