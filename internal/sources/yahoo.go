package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

const DefaultYahooURL = "https://query1.finance.yahoo.com"

// Yahoo fetches last-trade quotes from the Yahoo Finance chart API.
type Yahoo struct {
	client  *Client
	baseURL string
}

// NewYahoo creates the quote adapter.
func NewYahoo(client *Client, baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &Yahoo{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (y *Yahoo) Name() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Quote returns the latest regular-session price for ticker.
func (y *Yahoo) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.baseURL, url.PathEscape(ticker))

	var resp chartResponse
	if err := y.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return models.Quote{}, err
	}
	if resp.Chart.Error != nil {
		return models.Quote{}, fmt.Errorf("yahoo chart error for %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return models.Quote{}, fmt.Errorf("yahoo returned no quote for %s", ticker)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return models.Quote{}, errors.New("yahoo quote has no market price for " + ticker)
	}

	q := models.Quote{
		Ticker: strings.ToUpper(ticker),
		Price:  meta.RegularMarketPrice,
		Source: y.Name(),
	}
	if meta.RegularMarketTime > 0 {
		q.Timestamp = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	return q, nil
}
