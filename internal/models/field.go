// Package models defines the core domain entities for the tenderarb engine.
// These models represent filings, per-filing deal term drafts, canonical deals,
// price quotes, and the run summary produced for each pipeline run.
// Models include built-in validation to keep data consistent between stages.
//
// Terminology:
//   - Filing: one raw document (SEC filing or aggregator listing) about a tender offer.
//   - DealTerms: the structured draft extracted from a single filing. Never mutated.
//   - Deal: the canonical record reconciled from one or more drafts plus a quote.
package models

import (
	"fmt"
	"strings"
)

// Confidence grades how an extracted value was found.
// The zero value is ConfidenceUnknown, meaning the value was not found at all.
type Confidence int

const (
	ConfidenceUnknown Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = map[Confidence]string{
	ConfidenceUnknown: "UNKNOWN",
	ConfidenceLow:     "LOW",
	ConfidenceMedium:  "MEDIUM",
	ConfidenceHigh:    "HIGH",
}

func (c Confidence) String() string {
	if name, ok := confidenceNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Confidence(%d)", int(c))
}

// MarshalText encodes the confidence as its upper-case name.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText, case-insensitively.
func (c *Confidence) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	for k, name := range confidenceNames {
		if name == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown confidence %q", string(text))
}

// Field is a single extracted value tagged with the confidence it was found with.
// A Field with ConfidenceUnknown carries the zero value and must be ignored.
type Field[T any] struct {
	Value      T          `json:"value"`
	Confidence Confidence `json:"confidence"`
}

// Known builds a Field holding v.
func Known[T any](v T, c Confidence) Field[T] {
	return Field[T]{Value: v, Confidence: c}
}

// IsKnown reports whether the field was found.
func (f Field[T]) IsKnown() bool {
	return f.Confidence != ConfidenceUnknown
}
