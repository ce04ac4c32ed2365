package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/tenderarb/internal/logger"
	"github.com/rewired-gh/tenderarb/internal/models"
)

// FilingSource lists tender offer filings and fetches their text.
type FilingSource interface {
	Name() string
	Filings(ctx context.Context, since, until models.Date) ([]models.Filing, error)
	FetchText(ctx context.Context, f models.Filing) (string, error)
}

// DraftSource supplies pre-structured deal terms, such as an aggregator's
// listing table.
type DraftSource interface {
	Name() string
	Drafts(ctx context.Context, asOf models.Date) ([]models.DealTerms, error)
}

// QuoteSource supplies market prices.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, ticker string) (models.Quote, error)
}

// FetchError reports a source call that failed after all retries.
type FetchError struct {
	Source string
	Target string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed for %s: %v", e.Source, e.Target, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TimeoutError reports a source call that did not answer in time.
type TimeoutError struct {
	Source string
	Target string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch from %s timed out for %s after %s", e.Source, e.Target, e.After)
}

// retryable is implemented by source errors that know whether another
// attempt could succeed.
type retryable interface {
	Retryable() bool
}

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	LookbackDays   int
}

// Collector gathers a batch from source adapters. Any source may be nil.
type Collector struct {
	filings FilingSource
	drafts  DraftSource
	quotes  QuoteSource
	opts    CollectorOptions
}

// NewCollector creates a Collector.
func NewCollector(filings FilingSource, drafts DraftSource, quotes QuoteSource, opts CollectorOptions) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Collector{filings: filings, drafts: drafts, quotes: quotes, opts: opts}
}

// call runs fn with a per-attempt timeout, retrying failures with a linearly
// growing delay.
func (c *Collector) call(ctx context.Context, source, target string, fn func(ctx context.Context) error) error {
	var lastErr error

	for i := 0; i <= c.opts.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		err := fn(attemptCtx)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err == nil {
			return nil
		}
		if timedOut {
			lastErr = &TimeoutError{Source: source, Target: target, After: c.opts.Timeout}
		} else {
			lastErr = &FetchError{Source: source, Target: target, Err: err}
		}

		var r retryable
		if errors.As(err, &r) && !r.Retryable() {
			break
		}
		if i == c.opts.MaxRetries {
			break
		}

		delay := time.Duration(i+1) * c.opts.RetryDelayBase
		logger.Warn("%s: attempt %d/%d for %s failed: %v, retrying in %v",
			source, i+1, c.opts.MaxRetries+1, target, err, delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// Collect gathers filings, aggregator drafts and quotes into a batch.
// Source failures are recorded in Batch.FetchFailures; only cancellation
// returns an error.
func (c *Collector) Collect(ctx context.Context, scope *Scope) (*models.Batch, error) {
	batch := &models.Batch{Today: scope.Today, AsOf: scope.Now}
	byTicker := make(map[string]*models.Candidate)
	candidate := func(ticker string) *models.Candidate {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		cand, ok := byTicker[ticker]
		if !ok {
			cand = &models.Candidate{Ticker: ticker}
			byTicker[ticker] = cand
		}
		return cand
	}
	fail := func(ticker, filingID string, err error) {
		logger.Warn("Fetch failure: %v", err)
		batch.FetchFailures = append(batch.FetchFailures, models.SkippedItem{
			Stage:    models.StageFetch,
			Ticker:   ticker,
			FilingID: filingID,
			Reason:   err.Error(),
		})
	}

	if c.filings != nil {
		var filings []models.Filing
		since := scope.Today.AddDays(-c.opts.LookbackDays)
		err := c.call(ctx, c.filings.Name(), "filing search", func(ctx context.Context) error {
			var err error
			filings, err = c.filings.Filings(ctx, since, scope.Today)
			return err
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			fail("", "", err)
		}
		logger.Info("%s: %d filings since %s", c.filings.Name(), len(filings), since)

		for _, f := range filings {
			if strings.TrimSpace(f.Ticker) == "" {
				fail("", f.ID, fmt.Errorf("filing %s has no ticker", f.ID))
				continue
			}
			err := c.call(ctx, c.filings.Name(), f.ID, func(ctx context.Context) error {
				text, err := c.filings.FetchText(ctx, f)
				f.RawText = text
				return err
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				fail(f.Ticker, f.ID, err)
				continue
			}
			cand := candidate(f.Ticker)
			cand.Filings = append(cand.Filings, f)
		}
	}

	if c.drafts != nil {
		var drafts []models.DealTerms
		err := c.call(ctx, c.drafts.Name(), "listings", func(ctx context.Context) error {
			var err error
			drafts, err = c.drafts.Drafts(ctx, scope.Today)
			return err
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			fail("", "", err)
		}
		logger.Info("%s: %d listings", c.drafts.Name(), len(drafts))
		for _, d := range drafts {
			if !d.Ticker.IsKnown() {
				continue
			}
			cand := candidate(d.Ticker.Value)
			cand.Drafts = append(cand.Drafts, d)
		}
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		cand := byTicker[t]
		if c.quotes != nil {
			q, err := scope.Quote(t, func() (models.Quote, error) {
				var q models.Quote
				err := c.call(ctx, c.quotes.Name(), t, func(ctx context.Context) error {
					var err error
					q, err = c.quotes.Quote(ctx, t)
					return err
				})
				return q, err
			})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				fail(t, "", err)
			} else {
				cand.Quote = &q
			}
		}
		batch.Candidates = append(batch.Candidates, *cand)
	}

	logger.Info("Collected %d candidates, %d fetch failures", len(batch.Candidates), len(batch.FetchFailures))
	return batch, nil
}
