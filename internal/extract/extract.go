// Package extract turns raw tender-offer filing text into structured deal term
// drafts.
//
// Each field is located by an ordered chain of matchers. The first matcher
// that yields a parseable value wins and tags the field with its confidence:
//
//	HIGH    primary regulatory phrasing ("purchase price of $X per share")
//	MEDIUM  looser fallback phrasing ("$X per share")
//	LOW     proximity heuristics (nearest dollar amount to "per share")
//
// A price-range clause marks a modified Dutch auction. The range then
// overrides any single price and the offer price is derived from the range
// according to DutchBasis.
//
// Extraction is pure: the same filing always yields the same draft.
package extract

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// DutchBasis selects which point of a Dutch auction range is used as the
// offer price for ranking.
type DutchBasis string

const (
	DutchLower    DutchBasis = "lower"
	DutchMidpoint DutchBasis = "midpoint"
	DutchUpper    DutchBasis = "upper"
)

// Price returns the offer price implied by r under this basis.
func (b DutchBasis) Price(r models.PriceRange) float64 {
	switch b {
	case DutchMidpoint:
		return r.Midpoint()
	case DutchUpper:
		return r.High
	}
	return r.Low
}

// Options configures an Extractor.
type Options struct {
	DutchBasis DutchBasis
}

// ExtractionError reports a filing in which a mandatory field was not found.
type ExtractionError struct {
	FilingID string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for filing %s: %s", e.FilingID, e.Reason)
}

// Extractor applies the matcher chains to filings.
type Extractor struct {
	opts Options
}

// New creates an Extractor. An empty DutchBasis means DutchLower.
func New(opts Options) *Extractor {
	if opts.DutchBasis == "" {
		opts.DutchBasis = DutchLower
	}
	return &Extractor{opts: opts}
}

// Extract builds a draft from one filing. It fails with *ExtractionError when
// neither a price nor a price range, or no expiry date, can be located.
func (e *Extractor) Extract(f models.Filing) (models.DealTerms, error) {
	text := CleanText(f.RawText)

	terms := models.DealTerms{
		FilingID:       f.ID,
		FilingType:     f.Type,
		FilingDate:     f.Date,
		FilingURL:      f.URL,
		Source:         "filing",
		OfferPrice:     firstMatch(priceMatchers, text),
		PriceRange:     firstMatch(rangeMatchers, text),
		ExpiryDate:     firstMatch(expiryMatchers, text),
		SharesSought:   firstMatch(sharesMatchers, text),
		OddLotPriority: firstMatch(oddLotMatchers, text),
		Proration:      firstMatch(prorationMatchers, text),
		TotalValue:     firstMatch(totalValueMatchers, text),
		Conditions:     conditions(text),
		OddLotExcerpt:  oddLotExcerpt(text),
	}

	if t := strings.ToUpper(strings.TrimSpace(f.Ticker)); t != "" {
		terms.Ticker = models.Known(t, models.ConfidenceHigh)
	} else {
		terms.Ticker = firstMatch(tickerMatchers, text)
	}

	if ot, ok := offerTypeFromHint(f.Type); ok {
		terms.OfferType = models.Known(ot, models.ConfidenceHigh)
	} else {
		terms.OfferType = firstMatch(offerTypeMatchers, text)
	}

	if terms.PriceRange.IsKnown() {
		terms.OfferType = models.Known(models.OfferIssuerDutch, terms.PriceRange.Confidence)
		terms.OfferPrice = models.Known(e.opts.DutchBasis.Price(terms.PriceRange.Value), models.ConfidenceMedium)
	}

	var missing []string
	if !terms.OfferPrice.IsKnown() {
		missing = append(missing, "offer price")
	}
	if !terms.ExpiryDate.IsKnown() {
		missing = append(missing, "expiry date")
	}
	if len(missing) > 0 {
		return models.DealTerms{}, &ExtractionError{
			FilingID: f.ID,
			Reason:   "no " + strings.Join(missing, " or ") + " found",
		}
	}

	return terms, nil
}
