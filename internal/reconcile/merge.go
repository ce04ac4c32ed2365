package reconcile

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// candidate is one known value for a field, with its provenance.
type candidate[T any] struct {
	value      T
	text       string // normalized form used for comparison and audit
	confidence models.Confidence
	filingID   string
	filingDate models.Date
}

// collect gathers the known values of one field across drafts.
// UNKNOWN values are dropped here.
func collect[T any](drafts []models.DealTerms, get func(*models.DealTerms) models.Field[T], format func(T) string) []candidate[T] {
	var out []candidate[T]
	for i := range drafts {
		f := get(&drafts[i])
		if !f.IsKnown() {
			continue
		}
		out = append(out, candidate[T]{
			value:      f.Value,
			text:       format(f.Value),
			confidence: f.Confidence,
			filingID:   drafts[i].FilingID,
			filingDate: drafts[i].FilingDate,
		})
	}
	return out
}

// rankCandidates orders candidates best first: higher confidence, then more
// recent filing, then filing id and value text so the order is total.
func rankCandidates[T any](cands []candidate[T]) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if !a.filingDate.Equal(b.filingDate.Time) {
			return a.filingDate.After(b.filingDate)
		}
		if a.filingID != b.filingID {
			return a.filingID < b.filingID
		}
		return a.text < b.text
	})
}

// resolve picks the winning candidate and reports a conflict when any losing
// candidate carries a different value.
func resolve[T any](field string, cands []candidate[T]) (candidate[T], *models.Conflict, bool) {
	if len(cands) == 0 {
		var zero candidate[T]
		return zero, nil, false
	}
	rankCandidates(cands)
	winner := cands[0]
	reason := fmt.Sprintf("%s confidence, most recent filing", winner.confidence)
	return winner, conflictFor(field, winner, cands[1:], reason), true
}

func conflictFor[T any](field string, winner candidate[T], losers []candidate[T], resolution string) *models.Conflict {
	var rejected []models.RejectedValue
	seen := make(map[string]bool)
	for _, c := range losers {
		if c.text == winner.text {
			continue
		}
		key := c.text + "\x00" + c.filingID
		if seen[key] {
			continue
		}
		seen[key] = true
		rejected = append(rejected, models.RejectedValue{
			Value:      c.text,
			FilingID:   c.filingID,
			Confidence: c.confidence,
		})
	}
	if len(rejected) == 0 {
		return nil
	}
	return &models.Conflict{
		Field:      field,
		Chosen:     winner.text,
		ChosenFrom: winner.filingID,
		Rejected:   rejected,
		Resolution: resolution,
	}
}
