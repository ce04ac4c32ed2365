package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tenderarb/internal/models"
)

type fakeFilings struct {
	filings  []models.Filing
	texts    map[string]string
	failures map[string]int // remaining failures per filing id
	searches int
}

func (f *fakeFilings) Name() string { return "fake-filings" }

func (f *fakeFilings) Filings(ctx context.Context, since, until models.Date) ([]models.Filing, error) {
	f.searches++
	return f.filings, nil
}

func (f *fakeFilings) FetchText(ctx context.Context, filing models.Filing) (string, error) {
	if f.failures[filing.ID] > 0 {
		f.failures[filing.ID]--
		return "", errors.New("connection reset")
	}
	return f.texts[filing.ID], nil
}

type fakeDrafts struct {
	drafts []models.DealTerms
}

func (f *fakeDrafts) Name() string { return "fake-drafts" }

func (f *fakeDrafts) Drafts(ctx context.Context, asOf models.Date) ([]models.DealTerms, error) {
	return f.drafts, nil
}

type fakeQuotes struct {
	calls map[string]int
	block bool
}

func (f *fakeQuotes) Name() string { return "fake-quotes" }

func (f *fakeQuotes) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	f.calls[ticker]++
	if f.block {
		<-ctx.Done()
		return models.Quote{}, ctx.Err()
	}
	return models.Quote{Ticker: ticker, Price: 10, Timestamp: runNow}, nil
}

type permanentError struct{}

func (permanentError) Error() string   { return "not found" }
func (permanentError) Retryable() bool { return false }

func testCollectorOptions() CollectorOptions {
	return CollectorOptions{
		Timeout:        time.Second,
		MaxRetries:     2,
		RetryDelayBase: time.Millisecond,
		LookbackDays:   30,
	}
}

func TestCollectGroupsByTicker(t *testing.T) {
	filings := &fakeFilings{
		filings: []models.Filing{
			{ID: "b-1", Ticker: "bbb"},
			{ID: "a-1", Ticker: "AAA"},
			{ID: "a-2", Ticker: "AAA"},
			{ID: "x-1"},
		},
		texts:    map[string]string{"a-1": "first", "a-2": "second", "b-1": "third"},
		failures: map[string]int{"a-2": 1},
	}
	drafts := &fakeDrafts{drafts: []models.DealTerms{
		{FilingID: "listing-1", Ticker: models.Known("AAA", models.ConfidenceMedium)},
		{FilingID: "listing-2", Ticker: models.Known("CCC", models.ConfidenceMedium)},
		{FilingID: "listing-3"},
	}}
	quotes := &fakeQuotes{calls: map[string]int{}}

	scope := NewScope(runToday, runNow)
	batch, err := NewCollector(filings, drafts, quotes, testCollectorOptions()).Collect(context.Background(), scope)
	require.NoError(t, err)

	require.Len(t, batch.Candidates, 3)
	assert.Equal(t, "AAA", batch.Candidates[0].Ticker)
	assert.Equal(t, "BBB", batch.Candidates[1].Ticker)
	assert.Equal(t, "CCC", batch.Candidates[2].Ticker)

	aaa := batch.Candidates[0]
	require.Len(t, aaa.Filings, 2)
	assert.Equal(t, "second", aaa.Filings[1].RawText, "retried fetch succeeds")
	require.Len(t, aaa.Drafts, 1)
	require.NotNil(t, aaa.Quote)

	require.Len(t, batch.FetchFailures, 1)
	assert.Equal(t, "x-1", batch.FetchFailures[0].FilingID)

	assert.Equal(t, map[string]int{"AAA": 1, "BBB": 1, "CCC": 1}, quotes.calls)
	assert.Equal(t, runToday, batch.Today)
	assert.Equal(t, runNow, batch.AsOf)
}

func TestCollectRecordsExhaustedRetries(t *testing.T) {
	filings := &fakeFilings{
		filings:  []models.Filing{{ID: "a-1", Ticker: "AAA"}},
		texts:    map[string]string{"a-1": "text"},
		failures: map[string]int{"a-1": 5},
	}

	batch, err := NewCollector(filings, nil, nil, testCollectorOptions()).Collect(context.Background(), NewScope(runToday, runNow))
	require.NoError(t, err)

	assert.Empty(t, batch.Candidates)
	require.Len(t, batch.FetchFailures, 1)
	assert.Equal(t, models.StageFetch, batch.FetchFailures[0].Stage)
	assert.Equal(t, 2, filings.failures["a-1"], "three attempts were made")
}

func TestCallStopsOnPermanentError(t *testing.T) {
	c := NewCollector(nil, nil, nil, testCollectorOptions())
	attempts := 0
	err := c.call(context.Background(), "src", "AAA", func(ctx context.Context) error {
		attempts++
		return permanentError{}
	})

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, "src", fe.Source)
}

func TestCallTimeout(t *testing.T) {
	quotes := &fakeQuotes{calls: map[string]int{}, block: true}
	opts := testCollectorOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.MaxRetries = 1
	c := NewCollector(nil, nil, quotes, opts)

	err := c.call(context.Background(), quotes.Name(), "AAA", func(ctx context.Context) error {
		_, err := quotes.Quote(ctx, "AAA")
		return err
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, quotes.calls["AAA"])
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	filings := &fakeFilings{filings: []models.Filing{{ID: "a-1", Ticker: "AAA"}}}
	_, err := NewCollector(filings, nil, nil, testCollectorOptions()).Collect(ctx, NewScope(runToday, runNow))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, filings.searches)
}
