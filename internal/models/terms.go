package models

import "fmt"

// OfferType classifies who is buying and how the price is set.
type OfferType string

const (
	OfferIssuerFixed OfferType = "ISSUER_FIXED"
	OfferIssuerDutch OfferType = "ISSUER_DUTCH"
	OfferThirdParty  OfferType = "THIRD_PARTY"
)

// IsIssuer reports whether the company is buying back its own shares.
func (t OfferType) IsIssuer() bool {
	return t == OfferIssuerFixed || t == OfferIssuerDutch
}

// PriceRange is the bid range of a modified Dutch auction.
type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (r PriceRange) String() string {
	return fmt.Sprintf("%.2f-%.2f", r.Low, r.High)
}

// Midpoint returns the centre of the range.
func (r PriceRange) Midpoint() float64 {
	return (r.Low + r.High) / 2
}

// Filing is one raw document handed to the term extractor.
type Filing struct {
	ID      string `json:"filing_id" validate:"required"`
	Type    string `json:"filing_type"`                           // e.g. "SC TO-I", "SC TO-T/A"
	Ticker  string `json:"ticker,omitempty"`                      // set by the fetch adapter when known
	URL     string `json:"filing_url,omitempty"`
	Date    Date   `json:"filing_date"`
	RawText string `json:"raw_text,omitempty" validate:"required"` // plain text or HTML
}

// DealTerms is the structured draft extracted from a single filing or listing.
// Drafts are values: they are never modified after extraction and a re-scan
// produces a new draft rather than updating an old one.
type DealTerms struct {
	FilingID   string `json:"filing_id"`
	FilingType string `json:"filing_type,omitempty"`
	FilingDate Date   `json:"filing_date"`
	FilingURL  string `json:"filing_url,omitempty"`
	Source     string `json:"source"` // "edgar", "insidearbitrage", "sample", ...

	Ticker         Field[string]     `json:"ticker"`
	OfferType      Field[OfferType]  `json:"offer_type"`
	OfferPrice     Field[float64]    `json:"offer_price"`
	PriceRange     Field[PriceRange] `json:"price_range"`
	ExpiryDate     Field[Date]       `json:"expiry_date"`
	SharesSought   Field[int64]      `json:"shares_sought"`
	OddLotPriority Field[bool]       `json:"odd_lot_priority"`
	Proration      Field[bool]       `json:"proration"`
	TotalValue     Field[float64]    `json:"total_value"`

	Conditions    []string `json:"conditions,omitempty"`
	OddLotExcerpt string   `json:"odd_lot_excerpt,omitempty"`
}
