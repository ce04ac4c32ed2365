package extract

import (
	"regexp"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// Matcher attempts to extract one field value from cleaned filing text.
// A miss is reported with ok == false; matchers never fail.
type Matcher[T any] interface {
	Name() string
	Match(text string) (value T, confidence models.Confidence, ok bool)
}

// patternMatcher returns the first regexp match whose submatches parse.
type patternMatcher[T any] struct {
	name       string
	re         *regexp.Regexp
	confidence models.Confidence
	parse      func(groups []string) (T, bool)
}

func (m patternMatcher[T]) Name() string { return m.name }

func (m patternMatcher[T]) Match(text string) (T, models.Confidence, bool) {
	for _, groups := range m.re.FindAllStringSubmatch(text, -1) {
		if v, ok := m.parse(groups); ok {
			return v, m.confidence, true
		}
	}
	var zero T
	return zero, models.ConfidenceUnknown, false
}

// proximityMatcher picks the value closest to any anchor phrase, within
// maxDistance characters. Used as the last resort in a chain.
type proximityMatcher[T any] struct {
	name        string
	anchor      *regexp.Regexp
	value       *regexp.Regexp
	maxDistance int
	confidence  models.Confidence
	parse       func(groups []string) (T, bool)
}

func (m proximityMatcher[T]) Name() string { return m.name }

func (m proximityMatcher[T]) Match(text string) (T, models.Confidence, bool) {
	var zero T
	anchors := m.anchor.FindAllStringIndex(text, -1)
	if len(anchors) == 0 {
		return zero, models.ConfidenceUnknown, false
	}

	best, bestDist := zero, -1
	for _, loc := range m.value.FindAllStringSubmatchIndex(text, -1) {
		groups := submatches(text, loc)
		v, ok := m.parse(groups)
		if !ok {
			continue
		}
		for _, a := range anchors {
			d := distance(loc[0], loc[1], a[0], a[1])
			if d <= m.maxDistance && (bestDist < 0 || d < bestDist) {
				best, bestDist = v, d
			}
		}
	}
	if bestDist < 0 {
		return zero, models.ConfidenceUnknown, false
	}
	return best, m.confidence, true
}

// distance is the gap in characters between two spans, 0 when they overlap.
func distance(s1, e1, s2, e2 int) int {
	switch {
	case e1 <= s2:
		return s2 - e1
	case e2 <= s1:
		return s1 - e2
	}
	return 0
}

func submatches(text string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}

// firstMatch runs the chain in order and tags the winner with its matcher's
// confidence. An exhausted chain yields an unknown field.
func firstMatch[T any](chain []Matcher[T], text string) models.Field[T] {
	for _, m := range chain {
		if v, c, ok := m.Match(text); ok {
			return models.Known(v, c)
		}
	}
	return models.Field[T]{}
}
