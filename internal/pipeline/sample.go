package pipeline

import (
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

const sampleYext = `Yext, Inc. (NYSE: YEXT) is offering to purchase up to $180 million of its shares of
common stock through a modified Dutch auction at a price not greater than $6.50 nor less than
$5.75 per share, in cash. The tender offer will expire on March 12, 2026, unless extended.
Odd lot holders who tender all of their shares will be given priority. Shares tendered may be
subject to proration. The offer is not conditioned on any minimum number of shares being tendered.`

const sampleDocebo = `Docebo Inc. (NASDAQ: DCBO) is making a substantial issuer bid to repurchase up to
$60 million of its common shares at a purchase price of $20.40 per share in cash. The offer will
expire on March 10, 2026. Odd lot holders will not be subject to proration. The offer is subject
to Intercap Equity participating to maintain its proportionate ownership.`

const sampleLandsEnd = `WHP Global is offering to purchase up to 2,170,000 shares of the outstanding common
stock of Lands' End, Inc. (NASDAQ: LE) at a purchase price of $45.00 per share, net to the seller in
cash. The offer will expire on March 26, 2026. The offer is conditioned upon the closing of the
joint venture transaction. If more shares are tendered, shares will be purchased on a pro rata basis.`

const sampleGreatLakes = `Saltchuk Resources, through its merger sub, is offering to purchase all outstanding
shares of Great Lakes Dredge & Dock Corporation (NASDAQ: GLDD) at a purchase price of $17.00 per
share, net to the seller in cash. The offer will expire at one minute after 11:59 p.m., New York City
time, on June 30, 2026. The offer is subject to regulatory approval and a majority of the
outstanding shares being validly tendered.`

const sampleArcellx = `Gilead Sciences is offering to purchase all outstanding shares of Arcellx, Inc.
(NASDAQ: ACLX) for $115.00 per share in cash plus one contingent value right of $5.00. The offer will
expire on June 30, 2026. The offer is conditioned upon regulatory approval. The contingent value
right is contingent upon anito-cel net sales of at least $6 billion by 2029.`

// SampleBatch returns a fixed offline batch used by dry runs.
func SampleBatch() *models.Batch {
	asOf := time.Date(2026, time.February, 20, 21, 0, 0, 0, time.UTC)
	quoteAt := asOf.Add(-10 * time.Minute)
	filing := func(id, typ, ticker string, day models.Date, text string) models.Filing {
		return models.Filing{
			ID:      id,
			Type:    typ,
			Ticker:  ticker,
			URL:     "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&type=" + typ,
			Date:    day,
			RawText: text,
		}
	}
	quote := func(ticker string, price float64) *models.Quote {
		return &models.Quote{Ticker: ticker, Price: price, Timestamp: quoteAt, Source: "sample"}
	}

	return &models.Batch{
		Today: models.DateOf(asOf),
		AsOf:  asOf,
		Candidates: []models.Candidate{
			{
				Ticker:  "ACLX",
				Filings: []models.Filing{filing("sample-aclx-1", "SC TO-T", "ACLX", models.NewDate(2026, time.February, 2), sampleArcellx)},
				Quote:   quote("ACLX", 115.00),
			},
			{
				Ticker:  "DCBO",
				Filings: []models.Filing{filing("sample-dcbo-1", "SC TO-I", "DCBO", models.NewDate(2026, time.February, 9), sampleDocebo)},
				Quote:   quote("DCBO", 17.05),
			},
			{
				Ticker:  "GLDD",
				Filings: []models.Filing{filing("sample-gldd-1", "SC TO-T", "GLDD", models.NewDate(2026, time.February, 11), sampleGreatLakes)},
				Quote:   quote("GLDD", 16.91),
			},
			{
				Ticker:  "LE",
				Filings: []models.Filing{filing("sample-le-1", "SC TO-T", "LE", models.NewDate(2026, time.February, 17), sampleLandsEnd)},
				Quote:   quote("LE", 17.40),
			},
			{
				Ticker:  "YEXT",
				Filings: []models.Filing{filing("sample-yext-1", "SC TO-I", "YEXT", models.NewDate(2026, time.February, 10), sampleYext)},
				Quote:   quote("YEXT", 5.68),
			},
		},
	}
}
