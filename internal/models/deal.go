package models

import (
	"errors"
	"time"
)

// Rating is the attractiveness tier assigned by the ranker.
type Rating string

const (
	RatingA Rating = "A"
	RatingB Rating = "B"
	RatingC Rating = "C"
	RatingD Rating = "D"
)

// Quote is a point-in-time market price for a ticker.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// RejectedValue is a candidate value that lost a field merge.
type RejectedValue struct {
	Value      string     `json:"value"`
	FilingID   string     `json:"filing_id"`
	Confidence Confidence `json:"confidence"`
}

// Conflict records a field where sources disagreed and how it was resolved.
type Conflict struct {
	Field      string          `json:"field"`
	Chosen     string          `json:"chosen"`
	ChosenFrom string          `json:"chosen_from"`
	Rejected   []RejectedValue `json:"rejected"`
	Resolution string          `json:"resolution"`
}

// OddLotRow is one line of the odd-lot payoff table.
type OddLotRow struct {
	Shares  int     `json:"shares"`
	Cost    float64 `json:"cost"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

// Economics holds the fields derived from price, offer and expiry.
// All values are rounded for output; nil AnnualizedReturn means undefined.
type Economics struct {
	SpreadAbs        float64     `json:"spread_abs"`
	SpreadPct        float64     `json:"spread_pct"`
	DaysRemaining    int         `json:"days_remaining"`
	AnnualizedReturn *float64    `json:"annualized_return"`
	Expired          bool        `json:"expired"`
	OddLotTable      []OddLotRow `json:"odd_lot_table,omitempty"`
}

// Deal is the canonical, reconciled record for one tender offer.
// It is created by the reconciler, annotated by the economics calculator and
// rated by the ranker.
type Deal struct {
	Key              string      `json:"key"` // TICKER@announcement-date
	Ticker           string      `json:"ticker"`
	AnnouncementDate Date        `json:"announcement_date"`
	OfferType        OfferType   `json:"offer_type"`
	OfferPrice       float64     `json:"offer_price"`
	PriceRange       *PriceRange `json:"price_range,omitempty"`
	ExpiryDate       Date        `json:"expiry_date"`
	SharesSought     *int64      `json:"shares_sought,omitempty"`
	OddLotPriority   bool        `json:"odd_lot_priority"`
	Proration        bool        `json:"proration"`
	TotalValue       *float64    `json:"total_value,omitempty"`
	Conditions       []string    `json:"conditions,omitempty"`
	OddLotExcerpt    string      `json:"odd_lot_excerpt,omitempty"`
	FilingURL        string      `json:"filing_url,omitempty"`

	SourceConfidence    map[string]Confidence `json:"source_confidence"`
	ContributingSources []string              `json:"contributing_sources"`
	Conflicts           []Conflict            `json:"conflicts"`

	CurrentPrice float64   `json:"current_price"`
	QuoteTime    time.Time `json:"quote_timestamp"`
	PriceStale   bool      `json:"price_stale"`

	*Economics

	Score  float64 `json:"score"`
	Rating Rating  `json:"rating,omitempty"`
	Rank   int     `json:"rank,omitempty"`
}

// ApplyQuote sets the current price and staleness flag. Derived economics are
// dropped because they no longer match the new price.
func (d *Deal) ApplyQuote(q Quote, window time.Duration, now time.Time) {
	d.CurrentPrice = q.Price
	d.QuoteTime = q.Timestamp
	d.PriceStale = q.Timestamp.IsZero() || now.Sub(q.Timestamp) > window
	d.Economics = nil
}

// Validate checks that a reconciled deal is complete.
func (d *Deal) Validate() error {
	if d.Ticker == "" {
		return errors.New("deal ticker must not be empty")
	}
	if d.Key == "" {
		return errors.New("deal key must not be empty")
	}
	if d.OfferPrice <= 0 {
		return errors.New("offer price must be positive")
	}
	if d.ExpiryDate.IsZero() {
		return errors.New("expiry date must be set")
	}
	if len(d.ContributingSources) == 0 {
		return errors.New("deal must have at least one contributing source")
	}
	if d.PriceRange != nil && d.PriceRange.Low > d.PriceRange.High {
		return errors.New("price range low must not exceed high")
	}
	return nil
}
