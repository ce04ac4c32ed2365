package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// ParseAmount parses a positive dollar amount such as "$1,234.50", "52",
// or "52.00 dollars".
func ParseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "dollars")
	s = strings.TrimSuffix(s, "per share")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "us")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// dateLayouts are tried after commas and periods have been removed.
var dateLayouts = []string{
	models.DateLayout,
	"January 2 2006",
	"Jan 2 2006",
}

// ParseDate parses ISO dates and "Month D, YYYY" dates (full or abbreviated
// month, any letter case) into a calendar day.
func ParseDate(s string) (models.Date, bool) {
	s = strings.NewReplacer(",", " ", ".", " ").Replace(strings.TrimSpace(s))
	fields := strings.Fields(s)
	for i, f := range fields {
		if strings.EqualFold(f, "sept") {
			fields[i] = "Sep"
		}
	}
	s = strings.Join(fields, " ")

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), true
		}
	}
	return models.Date{}, false
}

// parseShareCount parses "1,500,000" or "2.5" with a "million" scale.
func parseShareCount(num, scale string) (int64, bool) {
	num = strings.ReplaceAll(strings.TrimSpace(num), ",", "")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if strings.EqualFold(strings.TrimSpace(scale), "million") {
		v *= 1_000_000
	}
	return int64(v), true
}

// scaleAmount applies a "million" or "billion" suffix to a dollar figure.
func scaleAmount(v float64, scale string) float64 {
	switch strings.ToLower(strings.TrimSpace(scale)) {
	case "million":
		return v * 1e6
	case "billion":
		return v * 1e9
	}
	return v
}

// firstNonEmpty returns the first non-empty submatch, used by patterns that
// accept both "$X" and "X dollars".
func firstNonEmpty(groups ...string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}
