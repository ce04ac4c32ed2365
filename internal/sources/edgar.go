package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rewired-gh/tenderarb/internal/models"
)

const (
	DefaultEDGARSearchURL  = "https://efts.sec.gov/LATEST/search-index"
	DefaultEDGARArchiveURL = "https://www.sec.gov"
)

// DefaultForms are the tender offer schedules searched by default.
var DefaultForms = []string{"SC TO-I", "SC TO-T"}

var displayTicker = regexp.MustCompile(`\(([A-Z]{1,5})\)`)

// EDGAR searches SEC full-text search for tender offer schedules.
type EDGAR struct {
	client     *Client
	searchURL  string
	archiveURL string
	forms      []string
}

// NewEDGAR creates an EDGAR adapter. Empty URLs and forms take the defaults.
func NewEDGAR(client *Client, searchURL, archiveURL string, forms []string) *EDGAR {
	if searchURL == "" {
		searchURL = DefaultEDGARSearchURL
	}
	if archiveURL == "" {
		archiveURL = DefaultEDGARArchiveURL
	}
	if len(forms) == 0 {
		forms = DefaultForms
	}
	return &EDGAR{
		client:     client,
		searchURL:  searchURL,
		archiveURL: strings.TrimRight(archiveURL, "/"),
		forms:      forms,
	}
}

func (e *EDGAR) Name() string { return "edgar" }

type eftsResponse struct {
	Hits struct {
		Hits []eftsHit `json:"hits"`
	} `json:"hits"`
}

type eftsHit struct {
	ID     string `json:"_id"` // "<accession>:<document>"
	Source struct {
		DisplayNames []string `json:"display_names"`
		CIKs         []string `json:"ciks"`
		FileDate     string   `json:"file_date"`
		Form         string   `json:"form"`
	} `json:"_source"`
}

// Filings returns filings of the configured forms filed between since and
// until, one per accession number, oldest first.
func (e *EDGAR) Filings(ctx context.Context, since, until models.Date) ([]models.Filing, error) {
	byAccession := make(map[string]models.Filing)

	for _, form := range e.forms {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("%q", form))
		params.Set("forms", form)
		params.Set("dateRange", "custom")
		params.Set("startdt", since.String())
		params.Set("enddt", until.String())

		var resp eftsResponse
		if err := e.client.GetJSON(ctx, e.searchURL+"?"+params.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("search %s: %w", form, err)
		}

		for _, hit := range resp.Hits.Hits {
			f, ok := e.filingFromHit(hit, form)
			if !ok {
				continue
			}
			if _, seen := byAccession[f.ID]; !seen {
				byAccession[f.ID] = f
			}
		}
	}

	filings := make([]models.Filing, 0, len(byAccession))
	for _, f := range byAccession {
		filings = append(filings, f)
	}
	sort.Slice(filings, func(i, j int) bool {
		if !filings[i].Date.Equal(filings[j].Date.Time) {
			return filings[i].Date.Before(filings[j].Date)
		}
		return filings[i].ID < filings[j].ID
	})
	return filings, nil
}

func (e *EDGAR) filingFromHit(hit eftsHit, form string) (models.Filing, bool) {
	accession, document, _ := strings.Cut(hit.ID, ":")
	if accession == "" || len(hit.Source.CIKs) == 0 {
		return models.Filing{}, false
	}
	date, err := models.ParseISODate(hit.Source.FileDate)
	if err != nil {
		return models.Filing{}, false
	}

	var ticker string
	for _, name := range hit.Source.DisplayNames {
		if m := displayTicker.FindStringSubmatch(name); m != nil {
			ticker = m[1]
			break
		}
	}

	cik := strings.TrimLeft(hit.Source.CIKs[0], "0")
	if cik == "" {
		cik = "0"
	}
	folder := fmt.Sprintf("%s/Archives/edgar/data/%s/%s", e.archiveURL, cik, strings.ReplaceAll(accession, "-", ""))
	link := folder + "/" + accession + "-index.htm"
	if document != "" {
		link = folder + "/" + document
	}

	if hit.Source.Form != "" {
		form = hit.Source.Form
	}
	return models.Filing{
		ID:     accession,
		Type:   form,
		Ticker: ticker,
		URL:    link,
		Date:   date,
	}, true
}

// FetchText downloads the filing document. Index pages are resolved to the
// primary document first.
func (e *EDGAR) FetchText(ctx context.Context, f models.Filing) (string, error) {
	link := f.URL
	if strings.HasSuffix(link, "-index.htm") || strings.HasSuffix(link, "-index.html") {
		body, err := e.client.Get(ctx, link, "text/html")
		if err != nil {
			return "", err
		}
		link, err = primaryDocument(body, link)
		if err != nil {
			return "", err
		}
	}

	body, err := e.client.Get(ctx, link, "text/html")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// primaryDocument picks the tender offer document from an EDGAR filing index.
func primaryDocument(body []byte, indexURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse filing index: %w", err)
	}
	base, err := url.Parse(indexURL)
	if err != nil {
		return "", err
	}

	var first, primary string
	doc.Find("table.tableFile tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 || primary != "" {
			return
		}
		href, ok := cells.Eq(2).Find("a").Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if first == "" {
			first = abs
		}
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(cells.Eq(3).Text())), "SC TO") {
			primary = abs
		}
	})

	switch {
	case primary != "":
		return primary, nil
	case first != "":
		return first, nil
	}
	return "", fmt.Errorf("no documents listed in %s", indexURL)
}
