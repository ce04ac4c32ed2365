package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// Scope carries everything that is fixed for the duration of one run: its
// identity, the calendar day used for day counts, the reference time for quote
// staleness, and a quote memo. Nothing here is shared between runs.
type Scope struct {
	RunID string
	Today models.Date
	Now   time.Time

	quotes *cache.Cache
}

// NewScope creates a run scope with a fresh run id.
func NewScope(today models.Date, now time.Time) *Scope {
	return &Scope{
		RunID:  uuid.New().String(),
		Today:  today,
		Now:    now.UTC(),
		quotes: cache.New(cache.NoExpiration, 0),
	}
}

// ScopeFor creates a scope that reproduces the clock of a recorded batch.
func ScopeFor(b *models.Batch) *Scope {
	return NewScope(b.Today, b.AsOf)
}

// Quote returns the memoized quote for ticker, calling fetch on the first
// lookup. Failed lookups are not memoized.
func (s *Scope) Quote(ticker string, fetch func() (models.Quote, error)) (models.Quote, error) {
	if v, ok := s.quotes.Get(ticker); ok {
		return v.(models.Quote), nil
	}
	q, err := fetch()
	if err != nil {
		return models.Quote{}, err
	}
	s.quotes.Set(ticker, q, cache.NoExpiration)
	return q, nil
}
