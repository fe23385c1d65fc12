package detector

import (
	"errors"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
)

func find(signals []Signal, t SignalType) (Signal, bool) {
	for _, s := range signals {
		if s.Type == t {
			return s, true
		}
	}
	return Signal{}, false
}

func TestDetect_LiveConversationSynthesized(t *testing.T) {
	tr := Transcript{
		CallID: "call-1",
		Segments: []Segment{
			{Speaker: "rep", Start: 0, End: 10, Text: "Hi, is this the owner of 12 Elm?"},
			{Speaker: "prospect", Start: 10, End: 45, Text: "Yes. Honestly I'm not interested."},
		},
	}

	got := NewTranscriptDetector(nil).Detect(tr)

	live, ok := find(got, SignalLiveConversation)
	if !ok {
		t.Fatal("expected LIVE_CONVERSATION signal")
	}
	if live.Confidence != LiveConversationConfidence {
		t.Errorf("live confidence = %v, want %v", live.Confidence, LiveConversationConfidence)
	}
	ni, ok := find(got, SignalNotInterested)
	if !ok {
		t.Fatal("expected NOT_INTERESTED signal")
	}
	if ni.Confidence != 0.85 {
		t.Errorf("per-segment confidence = %v, want base 0.85", ni.Confidence)
	}
}

func TestDetect_NoLiveConversation(t *testing.T) {
	tests := []struct {
		name string
		tr   Transcript
	}{
		{"single speaker", Transcript{CallID: "c", Duration: 120, Segments: []Segment{
			{Speaker: "rep", Start: 0, End: 60, Text: "Leave a message after the tone"},
			{Speaker: "rep", Start: 60, End: 120, Text: "hello?"},
		}}},
		{"too short", Transcript{CallID: "c", Duration: 30, Segments: []Segment{
			{Speaker: "rep", Start: 0, End: 10, Text: "hi"},
			{Speaker: "prospect", Start: 10, End: 30, Text: "wrong number"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTranscriptDetector(nil).Detect(tt.tr)
			if _, ok := find(got, SignalLiveConversation); ok {
				t.Error("did not expect LIVE_CONVERSATION")
			}
		})
	}
}

func TestDetect_FallbackAcrossSegments(t *testing.T) {
	tr := Transcript{
		CallID: "call-2",
		Segments: []Segment{
			{Speaker: "prospect", Start: 0, End: 5, Text: "I am really not"},
			{Speaker: "prospect", Start: 5, End: 9, Text: "interested, sorry"},
		},
	}

	got := NewTranscriptDetector(nil).Detect(tr)

	ni, ok := find(got, SignalNotInterested)
	if !ok {
		t.Fatal("expected NOT_INTERESTED from whole-text fallback")
	}
	want := 0.85 * FallbackFactor
	if diff := ni.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fallback confidence = %v, want %v", ni.Confidence, want)
	}
}

func TestDetect_FallbackSkippedWhenSegmentHit(t *testing.T) {
	tr := Transcript{
		CallID: "call-3",
		Segments: []Segment{
			{Speaker: "prospect", Start: 0, End: 5, Text: "please call me back"},
		},
	}

	got := NewTranscriptDetector(nil).Detect(tr)

	cb, ok := find(got, SignalCallbackRequested)
	if !ok {
		t.Fatal("expected CALLBACK_REQUESTED")
	}
	if cb.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8 without fallback double count", cb.Confidence)
	}
}

func TestDetect_RepeatsAccumulateCapped(t *testing.T) {
	tr := Transcript{
		CallID: "call-4",
		Segments: []Segment{
			{Speaker: "p", Start: 0, End: 1, Text: "do not call"},
			{Speaker: "p", Start: 1, End: 2, Text: "do not call"},
			{Speaker: "p", Start: 2, End: 3, Text: "remove me"},
		},
	}

	got := NewTranscriptDetector(nil).Detect(tr)

	count := 0
	for _, s := range got {
		if s.Type == SignalDoNotCall {
			count++
			if s.Confidence != 1.0 {
				t.Errorf("accumulated confidence = %v, want capped 1.0", s.Confidence)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected one merged DO_NOT_CALL signal, got %d", count)
	}
}

func TestDetect_Timestamps(t *testing.T) {
	start := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	tr := Transcript{
		CallID:    "call-5",
		StartedAt: start,
		Segments:  []Segment{{Speaker: "p", Start: 12, End: 14, Text: "call me back"}},
	}

	got := NewTranscriptDetector(nil).Detect(tr)
	cb, ok := find(got, SignalCallbackRequested)
	if !ok || cb.Timestamp == nil {
		t.Fatal("expected timestamped CALLBACK_REQUESTED")
	}
	if !cb.Timestamp.Equal(start.Add(12 * time.Second)) {
		t.Errorf("timestamp = %v", cb.Timestamp)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		tr      Transcript
		wantErr bool
	}{
		{"ok", Transcript{CallID: "c", Segments: []Segment{{Start: 0, End: 1, Text: "hi"}}}, false},
		{"no call id", Transcript{Segments: []Segment{{Text: "hi"}}}, true},
		{"no text", Transcript{CallID: "c", Segments: []Segment{{Text: "  "}}}, true},
		{"inverted times", Transcript{CallID: "c", Segments: []Segment{{Start: 5, End: 1, Text: "hi"}}}, true},
		{"negative duration", Transcript{CallID: "c", Duration: -1, Segments: []Segment{{Text: "hi"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.tr)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFromTags(t *testing.T) {
	got, err := FromTags([]TagInput{
		{Type: SignalLiveConversation, Confidence: 0.9},
		{Type: SignalNotInterested, Confidence: 0.6},
		{Type: SignalNotInterested, Confidence: 0.7},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 merged signals, got %d", len(got))
	}
	if got[1].Type != SignalNotInterested {
		t.Fatalf("order not preserved: %+v", got)
	}
	if diff := got[1].Confidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("merged confidence = %v, want 0.8", got[1].Confidence)
	}
}

func TestFromTags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		tags []TagInput
	}{
		{"unknown type", []TagInput{{Type: "BANANA", Confidence: 0.5}}},
		{"confidence above one", []TagInput{{Type: SignalVoicemail, Confidence: 1.5}}},
		{"negative confidence", []TagInput{{Type: SignalVoicemail, Confidence: -0.1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromTags(tt.tags); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
