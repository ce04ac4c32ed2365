// Package ranker orders economically annotated deals by attractiveness and
// assigns rating tiers.
//
// Deals are first filtered (expired, spread below the minimum, horizon beyond
// the maximum, and optionally deals without odd-lot priority). Each surviving
// deal is then scored:
//
//	score = w_ar × clamp(annualized_return / normalization_cap, 0, 1)
//	      + odd_lot_bonus × [odd_lot_priority]
//	      − stale_penalty × [price_stale]
//	      − conflict_penalty × [len(conflicts) > 0]
//
// A stale quote lowers the score but never removes the deal. Ratings come from
// configurable cutoffs; every deal that passes the filters gets one.
package ranker

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rewired-gh/tenderarb/internal/economics"
	"github.com/rewired-gh/tenderarb/internal/logger"
	"github.com/rewired-gh/tenderarb/internal/models"
)

// Weights are the coefficients of the composite score.
type Weights struct {
	AnnualizedReturn float64
	NormalizationCap float64 // annualized return (percent) that earns the full weight
	OddLotBonus      float64
	StalePenalty     float64
	ConflictPenalty  float64
}

// DefaultWeights favour annualized return with smaller adjustments.
var DefaultWeights = Weights{
	AnnualizedReturn: 1.0,
	NormalizationCap: 100.0,
	OddLotBonus:      0.25,
	StalePenalty:     0.20,
	ConflictPenalty:  0.10,
}

// Cutoffs are the minimum scores of each rating tier.
type Cutoffs struct {
	A, B, C, D float64
}

// DefaultCutoffs admit every deal that passes the filters.
var DefaultCutoffs = Cutoffs{A: 0.8, B: 0.5, C: 0.2, D: -1.0}

// Validate requires strictly decreasing cutoffs.
func (c Cutoffs) Validate() error {
	if !(c.A > c.B && c.B > c.C && c.C > c.D) {
		return errors.New("rating cutoffs must be strictly decreasing (A > B > C > D)")
	}
	return nil
}

// Tier returns the rating for score. Every qualifying deal is rated, so a
// score below the D cutoff is still D.
func (c Cutoffs) Tier(score float64) models.Rating {
	switch {
	case score >= c.A:
		return models.RatingA
	case score >= c.B:
		return models.RatingB
	case score >= c.C:
		return models.RatingC
	}
	return models.RatingD
}

// Options configures a Ranker.
type Options struct {
	MinSpreadPct    float64
	MaxDaysToExpiry int
	OddLotOnly      bool
	Weights         Weights
	Cutoffs         Cutoffs
}

// Ranker filters, scores and orders deals.
type Ranker struct {
	opts Options
}

// New creates a Ranker. Cutoffs must already be valid.
func New(opts Options) *Ranker {
	return &Ranker{opts: opts}
}

// NormalizedReturn maps an annualized return into [0, 1]. An undefined
// return counts as zero.
func NormalizedReturn(annualized *float64, normCap float64) float64 {
	if annualized == nil || normCap <= 0 {
		return 0
	}
	return max(0, min(1, *annualized/normCap))
}

// CompositeScore combines the weighted signals of one deal.
func CompositeScore(d *models.Deal, w Weights) float64 {
	var ar *float64
	if d.Economics != nil {
		ar = d.AnnualizedReturn
	}
	score := w.AnnualizedReturn * NormalizedReturn(ar, w.NormalizationCap)
	if d.OddLotPriority {
		score += w.OddLotBonus
	}
	if d.PriceStale {
		score -= w.StalePenalty
	}
	if len(d.Conflicts) > 0 {
		score -= w.ConflictPenalty
	}
	return economics.Round(score, 4)
}

// exclusionReason returns why a deal cannot be ranked, or "" when it can.
func (r *Ranker) exclusionReason(d *models.Deal) string {
	switch {
	case d.Economics == nil:
		return "economics not computed"
	case d.Expired:
		return "expired"
	case d.SpreadPct < r.opts.MinSpreadPct:
		return fmt.Sprintf("spread %.2f%% below minimum %.2f%%", d.SpreadPct, r.opts.MinSpreadPct)
	case r.opts.MaxDaysToExpiry > 0 && d.DaysRemaining > r.opts.MaxDaysToExpiry:
		return fmt.Sprintf("%d days to expiry exceeds maximum %d", d.DaysRemaining, r.opts.MaxDaysToExpiry)
	case r.opts.OddLotOnly && !d.OddLotPriority:
		return "no odd-lot priority"
	}
	return ""
}

// Rank filters, scores and sorts deals, returning the ranked deals and the
// exclusions. Ties are broken by higher spread, then earlier expiry, then
// ticker. Input deals are not modified. Returns an empty (non-nil) slice when
// nothing qualifies.
func (r *Ranker) Rank(deals []models.Deal) ([]models.Deal, []models.Exclusion) {
	ranked := []models.Deal{}
	excluded := []models.Exclusion{}

	for _, d := range deals {
		if reason := r.exclusionReason(&d); reason != "" {
			excluded = append(excluded, models.Exclusion{Key: d.Key, Ticker: d.Ticker, Reason: reason})
			continue
		}

		d.Score = CompositeScore(&d, r.opts.Weights)
		d.Rating = r.opts.Cutoffs.Tier(d.Score)
		ranked = append(ranked, d)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SpreadPct != b.SpreadPct {
			return a.SpreadPct > b.SpreadPct
		}
		if !a.ExpiryDate.Equal(b.ExpiryDate.Time) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		return a.Key < b.Key
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	sort.SliceStable(excluded, func(i, j int) bool { return excluded[i].Key < excluded[j].Key })

	logger.Debug("Rank: %d deals in, %d ranked, %d excluded", len(deals), len(ranked), len(excluded))
	return ranked, excluded
}
