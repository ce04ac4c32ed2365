// Package reconcile merges the deal term drafts of one tender offer, plus a
// price quote, into a single canonical deal.
//
// Every field is merged independently: unknown values are dropped, the
// highest confidence wins, and ties go to the most recent filing. Losing
// values that differ from the winner are kept as conflicts for auditing.
// The odd-lot flag follows OddLotPolicy over HIGH and MEDIUM sources, since
// filings state odd-lot priority explicitly when it exists.
package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// OddLotPolicy combines odd-lot evidence from HIGH and MEDIUM sources.
type OddLotPolicy string

const (
	OddLotAny      OddLotPolicy = "or"
	OddLotAll      OddLotPolicy = "and"
	OddLotMajority OddLotPolicy = "majority"
)

// Options configures a Reconciler.
type Options struct {
	FreshnessWindow time.Duration
	OddLotPolicy    OddLotPolicy
	Now             time.Time // reference time for quote staleness
}

// ReconciliationError reports drafts that cannot be merged into one deal.
type ReconciliationError struct {
	Ticker string
	Reason string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed for %s: %s", e.Ticker, e.Reason)
}

// Reconciler builds canonical deals.
type Reconciler struct {
	opts Options
}

// New creates a Reconciler. An empty policy means OddLotAny.
func New(opts Options) *Reconciler {
	if opts.OddLotPolicy == "" {
		opts.OddLotPolicy = OddLotAny
	}
	return &Reconciler{opts: opts}
}

func formatPrice(v float64) string          { return strconv.FormatFloat(v, 'f', 2, 64) }
func formatDate(d models.Date) string       { return d.String() }
func formatRange(r models.PriceRange) string { return r.String() }
func formatType(t models.OfferType) string  { return string(t) }
func formatBool(b bool) string              { return strconv.FormatBool(b) }
func formatInt(n int64) string              { return strconv.FormatInt(n, 10) }
func formatTicker(s string) string          { return strings.ToUpper(strings.TrimSpace(s)) }

// Reconcile merges drafts that describe the same deal and applies the quote.
// Drafts are not modified. The result does not depend on the order of drafts.
func (r *Reconciler) Reconcile(drafts []models.DealTerms, quote models.Quote) (*models.Deal, error) {
	if len(drafts) == 0 {
		return nil, &ReconciliationError{Ticker: formatTicker(quote.Ticker), Reason: "no drafts to reconcile"}
	}
	drafts = append([]models.DealTerms(nil), drafts...)
	sort.SliceStable(drafts, func(i, j int) bool {
		if !drafts[i].FilingDate.Equal(drafts[j].FilingDate.Time) {
			return drafts[i].FilingDate.Before(drafts[j].FilingDate)
		}
		return drafts[i].FilingID < drafts[j].FilingID
	})

	ticker, err := resolveTicker(drafts, quote)
	if err != nil {
		return nil, err
	}

	deal := &models.Deal{
		Ticker:           ticker,
		AnnouncementDate: drafts[0].FilingDate,
		SourceConfidence: make(map[string]models.Confidence),
		Conflicts:        []models.Conflict{},
	}
	deal.Key = ticker + "@" + deal.AnnouncementDate.String()
	for _, d := range drafts {
		deal.ContributingSources = append(deal.ContributingSources, d.FilingID)
	}

	note := func(field string, c models.Confidence, conflict *models.Conflict) {
		deal.SourceConfidence[field] = c
		if conflict != nil {
			deal.Conflicts = append(deal.Conflicts, *conflict)
		}
	}

	offerType, err := resolveOfferType(ticker, drafts)
	if err != nil {
		return nil, err
	}
	if w, c, ok := resolve("offer_type", offerType); ok {
		deal.OfferType = w.value
		note("offer_type", w.confidence, c)
	}

	if w, c, ok := resolve("offer_price", collect(drafts, func(d *models.DealTerms) models.Field[float64] { return d.OfferPrice }, formatPrice)); ok {
		deal.OfferPrice = w.value
		note("offer_price", w.confidence, c)
	} else {
		return nil, &ReconciliationError{Ticker: ticker, Reason: "no source supplied an offer price"}
	}

	if w, c, ok := resolve("expiry_date", collect(drafts, func(d *models.DealTerms) models.Field[models.Date] { return d.ExpiryDate }, formatDate)); ok {
		deal.ExpiryDate = w.value
		note("expiry_date", w.confidence, c)
	} else {
		return nil, &ReconciliationError{Ticker: ticker, Reason: "no source supplied an expiry date"}
	}

	if deal.OfferType == models.OfferIssuerDutch {
		if w, c, ok := resolve("price_range", collect(drafts, func(d *models.DealTerms) models.Field[models.PriceRange] { return d.PriceRange }, formatRange)); ok {
			pr := w.value
			deal.PriceRange = &pr
			note("price_range", w.confidence, c)
		}
	}

	if w, c, ok := resolve("shares_sought", collect(drafts, func(d *models.DealTerms) models.Field[int64] { return d.SharesSought }, formatInt)); ok {
		n := w.value
		deal.SharesSought = &n
		note("shares_sought", w.confidence, c)
	}

	if w, c, ok := resolve("proration", collect(drafts, func(d *models.DealTerms) models.Field[bool] { return d.Proration }, formatBool)); ok {
		deal.Proration = w.value
		note("proration", w.confidence, c)
	}

	if w, c, ok := resolve("total_value", collect(drafts, func(d *models.DealTerms) models.Field[float64] { return d.TotalValue }, formatPrice)); ok {
		v := w.value
		deal.TotalValue = &v
		note("total_value", w.confidence, c)
	}

	oddLot := collect(drafts, func(d *models.DealTerms) models.Field[bool] { return d.OddLotPriority }, formatBool)
	if w, c, ok := r.resolveOddLot(oddLot); ok {
		deal.OddLotPriority = w.value
		note("odd_lot_priority", w.confidence, c)
		deal.OddLotExcerpt = excerptFrom(drafts, w.filingID)
	}

	deal.Conditions = mergeConditions(drafts)
	deal.FilingURL = latestURL(drafts)

	sort.SliceStable(deal.Conflicts, func(i, j int) bool {
		return deal.Conflicts[i].Field < deal.Conflicts[j].Field
	})

	deal.ApplyQuote(quote, r.opts.FreshnessWindow, r.opts.Now)
	return deal, nil
}

// resolveTicker requires every known ticker, and the quote, to agree.
func resolveTicker(drafts []models.DealTerms, quote models.Quote) (string, error) {
	seen := make(map[string]bool)
	var tickers []string
	for _, d := range drafts {
		if !d.Ticker.IsKnown() {
			continue
		}
		t := formatTicker(d.Ticker.Value)
		if t != "" && !seen[t] {
			seen[t] = true
			tickers = append(tickers, t)
		}
	}
	quoteTicker := formatTicker(quote.Ticker)
	if len(tickers) == 0 {
		if quoteTicker == "" {
			return "", &ReconciliationError{Reason: "no ticker in drafts or quote"}
		}
		return quoteTicker, nil
	}
	sort.Strings(tickers)
	if len(tickers) > 1 {
		return "", &ReconciliationError{
			Ticker: tickers[0],
			Reason: "drafts disagree on ticker: " + strings.Join(tickers, ", "),
		}
	}
	if quoteTicker != "" && quoteTicker != tickers[0] {
		return "", &ReconciliationError{
			Ticker: tickers[0],
			Reason: fmt.Sprintf("quote is for %s", quoteTicker),
		}
	}
	return tickers[0], nil
}

// resolveOfferType rejects mixing a third-party offer with an issuer offer.
// Fixed versus Dutch issuer offers are left to the normal merge.
func resolveOfferType(ticker string, drafts []models.DealTerms) ([]candidate[models.OfferType], error) {
	cands := collect(drafts, func(d *models.DealTerms) models.Field[models.OfferType] { return d.OfferType }, formatType)
	var issuer, thirdParty bool
	for _, c := range cands {
		if c.value.IsIssuer() {
			issuer = true
		} else {
			thirdParty = true
		}
	}
	if issuer && thirdParty {
		return nil, &ReconciliationError{Ticker: ticker, Reason: "drafts disagree on offer type: issuer and third-party"}
	}
	return cands, nil
}

// resolveOddLot applies the odd-lot policy to HIGH and MEDIUM evidence.
// When only LOW evidence exists the normal merge decides.
func (r *Reconciler) resolveOddLot(cands []candidate[bool]) (candidate[bool], *models.Conflict, bool) {
	var strong []candidate[bool]
	for _, c := range cands {
		if c.confidence >= models.ConfidenceMedium {
			strong = append(strong, c)
		}
	}
	if len(strong) == 0 {
		return resolve("odd_lot_priority", cands)
	}

	yes := 0
	for _, c := range strong {
		if c.value {
			yes++
		}
	}
	var value bool
	switch r.opts.OddLotPolicy {
	case OddLotAll:
		value = yes == len(strong)
	case OddLotMajority:
		value = 2*yes > len(strong)
	default:
		value = yes > 0
	}

	rankCandidates(cands)
	var winner candidate[bool]
	var losers []candidate[bool]
	found := false
	for _, c := range cands {
		if !found && c.value == value && c.confidence >= models.ConfidenceMedium {
			winner, found = c, true
			continue
		}
		losers = append(losers, c)
	}
	resolution := fmt.Sprintf("%s policy over HIGH/MEDIUM sources", r.opts.OddLotPolicy)
	return winner, conflictFor("odd_lot_priority", winner, losers, resolution), found
}

// excerptFrom prefers the excerpt of the filing that decided the odd-lot flag.
func excerptFrom(drafts []models.DealTerms, filingID string) string {
	for _, d := range drafts {
		if d.FilingID == filingID && d.OddLotExcerpt != "" {
			return d.OddLotExcerpt
		}
	}
	for i := len(drafts) - 1; i >= 0; i-- {
		if drafts[i].OddLotExcerpt != "" {
			return drafts[i].OddLotExcerpt
		}
	}
	return ""
}

// mergeConditions unions condition clauses, newest filing first.
func mergeConditions(drafts []models.DealTerms) []string {
	var out []string
	seen := make(map[string]bool)
	for i := len(drafts) - 1; i >= 0; i-- {
		for _, c := range drafts[i].Conditions {
			key := strings.ToLower(c)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}

func latestURL(drafts []models.DealTerms) string {
	for i := len(drafts) - 1; i >= 0; i-- {
		if drafts[i].FilingURL != "" {
			return drafts[i].FilingURL
		}
	}
	return ""
}
