package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rewired-gh/tenderarb/internal/extract"
	"github.com/rewired-gh/tenderarb/internal/models"
)

const DefaultInsideArbitrageURL = "https://www.insidearbitrage.com/tender-offers/"

// InsideArbitrage scrapes the InsideArbitrage tender offer table. Listings are
// secondary sources, so every field is MEDIUM confidence.
type InsideArbitrage struct {
	client *Client
	url    string
	basis  extract.DutchBasis
}

// NewInsideArbitrage creates the adapter. basis picks the price used for
// listings that quote a range.
func NewInsideArbitrage(client *Client, pageURL string, basis extract.DutchBasis) *InsideArbitrage {
	if pageURL == "" {
		pageURL = DefaultInsideArbitrageURL
	}
	if basis == "" {
		basis = extract.DutchLower
	}
	return &InsideArbitrage{client: client, url: pageURL, basis: basis}
}

func (s *InsideArbitrage) Name() string { return "insidearbitrage" }

// Drafts returns one draft per listed tender offer, dated asOf.
func (s *InsideArbitrage) Drafts(ctx context.Context, asOf models.Date) ([]models.DealTerms, error) {
	body, err := s.client.Get(ctx, s.url, "text/html")
	if err != nil {
		return nil, err
	}
	return s.parse(body, asOf)
}

func (s *InsideArbitrage) parse(body []byte, asOf models.Date) ([]models.DealTerms, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listings: %w", err)
	}

	var drafts []models.DealTerms
	doc.Find("table").First().Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		col := func(n int) string {
			if n >= cells.Length() {
				return ""
			}
			return strings.TrimSpace(cells.Eq(n).Text())
		}
		if d, ok := s.draft(col(0), col(2), col(3), col(4), asOf); ok {
			drafts = append(drafts, d)
		}
	})
	return drafts, nil
}

func (s *InsideArbitrage) draft(ticker, price, expiry, kind string, asOf models.Date) (models.DealTerms, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return models.DealTerms{}, false
	}
	const c = models.ConfidenceMedium
	d := models.DealTerms{
		FilingID:   "insidearbitrage:" + ticker,
		FilingDate: asOf,
		FilingURL:  s.url,
		Source:     s.Name(),
		Ticker:     models.Known(ticker, c),
	}

	if lo, hi, ok := strings.Cut(price, "-"); ok {
		low, okLow := extract.ParseAmount(lo)
		high, okHigh := extract.ParseAmount(hi)
		if okLow && okHigh && low < high {
			r := models.PriceRange{Low: low, High: high}
			d.PriceRange = models.Known(r, c)
			d.OfferPrice = models.Known(s.basis.Price(r), c)
			d.OfferType = models.Known(models.OfferIssuerDutch, c)
		}
	} else if v, ok := extract.ParseAmount(price); ok {
		d.OfferPrice = models.Known(v, c)
	}

	if date, ok := extract.ParseDate(expiry); ok {
		d.ExpiryDate = models.Known(date, c)
	}

	if !d.OfferType.IsKnown() {
		switch k := strings.ToLower(kind); {
		case strings.Contains(k, "dutch"):
			d.OfferType = models.Known(models.OfferIssuerDutch, c)
		case strings.Contains(k, "third"), strings.Contains(k, "acqui"), strings.Contains(k, "merger"):
			d.OfferType = models.Known(models.OfferThirdParty, c)
		case strings.Contains(k, "issuer"), strings.Contains(k, "self"):
			d.OfferType = models.Known(models.OfferIssuerFixed, c)
		}
	}

	if !d.OfferPrice.IsKnown() && !d.ExpiryDate.IsKnown() {
		return models.DealTerms{}, false
	}
	return d, true
}
