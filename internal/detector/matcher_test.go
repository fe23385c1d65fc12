package detector

import (
	"regexp"
	"strings"
	"testing"
)

func TestMatch_NoMatches(t *testing.T) {
	m := NewPhraseMatcher(DefaultStallPatterns(), 0)

	for _, text := range []string{"", "Great, let's sign the contract today.", "12345"} {
		got := m.Match(text)
		if got == nil {
			t.Fatalf("Match(%q) returned nil, want empty slice", text)
		}
		if len(got) != 0 {
			t.Errorf("Match(%q) = %d matches, want 0", text, len(got))
		}
	}
}

func TestMatch_StallSentence(t *testing.T) {
	m := NewPhraseMatcher(DefaultStallPatterns(), 0)
	text := "let me think about it and I'll send you pricing next week"

	got := m.Match(text)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(got))
	}

	cats := make(map[Category]bool)
	for _, pm := range got {
		cats[pm.Category] = true
	}
	if !cats[CategoryThinking] {
		t.Error("expected a THINKING match")
	}
	if !cats[CategoryPricingRequest] && !cats[CategoryCallbackRequest] {
		t.Error("expected a PRICING_REQUEST or CALLBACK_REQUEST match")
	}

	for i := 1; i < len(got); i++ {
		if got[i].Position < got[i-1].Position {
			t.Errorf("matches not sorted by position: %d before %d", got[i-1].Position, got[i].Position)
		}
	}
	if got[0].Position != 0 || got[0].Category != CategoryThinking {
		t.Errorf("first match = %+v, want THINKING at 0", got[0])
	}
}

func TestMatch_RepeatedOccurrences(t *testing.T) {
	p := []Pattern{{Regexp: regexp.MustCompile(`(?i)call back`), Category: CategoryCallbackRequest, BaseConfidence: 0.6, Label: "call back"}}
	m := NewPhraseMatcher(p, 5)

	got := m.Match("Call back Monday, or call back Tuesday")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Position != 0 || got[1].Position != 21 {
		t.Errorf("positions = %d, %d; want 0, 21", got[0].Position, got[1].Position)
	}
	if got[1].MatchedText != "call back" {
		t.Errorf("matched text = %q", got[1].MatchedText)
	}
}

func TestMatch_Deterministic(t *testing.T) {
	m := NewPhraseMatcher(DefaultStallPatterns(), 0)
	text := "We're shopping around, too expensive right now, call me back next month."

	a := m.Match(text)
	b := m.Match(text)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("match %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestContextWindow(t *testing.T) {
	text := "0123456789abcdefghij"

	tests := []struct {
		name       string
		start, end int
		radius     int
		want       string
	}{
		{"fits entirely", 5, 7, 50, "0123456789abcdefghij"},
		{"truncated both sides", 10, 12, 3, "...789abcde..."},
		{"truncated right only", 0, 2, 3, "01234..."},
		{"truncated left only", 18, 20, 3, "...fghij"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contextWindow(text, tt.start, tt.end, tt.radius)
			if got != tt.want {
				t.Errorf("contextWindow = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextWindow_RuneBoundary(t *testing.T) {
	text := "héllo call back wörld"
	start := strings.Index(text, "call")
	got := contextWindow(text, start, start+9, 5)
	if !strings.Contains(got, "call back") {
		t.Errorf("context %q lost the match", got)
	}
	if !utf8Valid(got) {
		t.Errorf("context %q is not valid UTF-8", got)
	}
}

func utf8Valid(s string) bool {
	return strings.ToValidUTF8(s, "�") == s
}

func TestBestPerCategory(t *testing.T) {
	matches := []PhraseMatch{
		{Category: CategoryThinking, Confidence: 0.6, Position: 0, Phrase: "a"},
		{Category: CategoryPricingRequest, Confidence: 0.55, Position: 5, Phrase: "b"},
		{Category: CategoryThinking, Confidence: 0.7, Position: 10, Phrase: "c"},
		{Category: CategoryPricingRequest, Confidence: 0.55, Position: 15, Phrase: "d"},
	}

	got := BestPerCategory(matches)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(got))
	}
	if got[0].Category != CategoryThinking || got[0].Phrase != "c" {
		t.Errorf("THINKING best = %+v, want phrase c", got[0])
	}
	if got[1].Category != CategoryPricingRequest || got[1].Phrase != "b" {
		t.Errorf("tie should keep first occurrence, got %+v", got[1])
	}
}

func TestGroupByCategory_Empty(t *testing.T) {
	if got := GroupByCategory(nil); len(got) != 0 {
		t.Errorf("expected no groups, got %d", len(got))
	}
	if got := BestPerCategory(nil); len(got) != 0 {
		t.Errorf("expected no best matches, got %d", len(got))
	}
}
