package detector

import (
	"regexp"
	"sort"
	"unicode/utf8"
)

// DefaultContextRadius is the number of bytes kept on each side of a match.
const DefaultContextRadius = 50

const ellipsis = "..."

// Matcher finds categorized phrase matches in free text.
type Matcher interface {
	Match(text string) []PhraseMatch
}

// Pattern is one row of an ordered pattern table.
type Pattern struct {
	Regexp         *regexp.Regexp
	Category       Category
	BaseConfidence float64
	Label          string
}

// PhraseMatcher is a regexp-backed Matcher.
type PhraseMatcher struct {
	patterns []Pattern
	radius   int
}

// NewPhraseMatcher builds a matcher over the given table. A radius <= 0 uses
// DefaultContextRadius.
func NewPhraseMatcher(patterns []Pattern, radius int) *PhraseMatcher {
	if radius <= 0 {
		radius = DefaultContextRadius
	}
	return &PhraseMatcher{patterns: patterns, radius: radius}
}

// Match returns every occurrence of every pattern, sorted by position.
// Equal positions keep table order.
func (m *PhraseMatcher) Match(text string) []PhraseMatch {
	matches := []PhraseMatch{}
	if text == "" {
		return matches
	}
	for _, p := range m.patterns {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			matches = append(matches, PhraseMatch{
				Phrase:      p.Label,
				Category:    p.Category,
				MatchedText: text[loc[0]:loc[1]],
				Confidence:  p.BaseConfidence,
				Position:    loc[0],
				Context:     contextWindow(text, loc[0], loc[1], m.radius),
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches
}

// contextWindow cuts radius bytes around [start,end), snapped to rune
// boundaries, marking truncated sides with an ellipsis.
func contextWindow(text string, start, end, radius int) string {
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}

	out := text[from:to]
	if from > 0 {
		out = ellipsis + out
	}
	if to < len(text) {
		out += ellipsis
	}
	return out
}

// CategoryGroup is the matches of one category in first-seen order.
type CategoryGroup struct {
	Category Category
	Matches  []PhraseMatch
}

// GroupByCategory groups position-sorted matches by category. Groups are
// ordered by the position of their first match.
func GroupByCategory(matches []PhraseMatch) []CategoryGroup {
	idx := make(map[Category]int)
	var groups []CategoryGroup
	for _, pm := range matches {
		i, ok := idx[pm.Category]
		if !ok {
			i = len(groups)
			idx[pm.Category] = i
			groups = append(groups, CategoryGroup{Category: pm.Category})
		}
		groups[i].Matches = append(groups[i].Matches, pm)
	}
	return groups
}

// BestPerCategory reduces matches left to right, keeping the highest
// confidence match per category. Ties keep the earlier match.
func BestPerCategory(matches []PhraseMatch) []PhraseMatch {
	groups := GroupByCategory(matches)
	best := make([]PhraseMatch, 0, len(groups))
	for _, g := range groups {
		top := g.Matches[0]
		for _, pm := range g.Matches[1:] {
			if pm.Confidence > top.Confidence {
				top = pm
			}
		}
		best = append(best, top)
	}
	return best
}
