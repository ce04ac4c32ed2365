// Package pipeline runs the verification and reconciliation engine over a
// batch of candidates and gathers those batches from source adapters.
//
// Each candidate is processed independently (extract, reconcile, economics)
// on a bounded worker pool. Per-item failures are recorded in the run summary
// and never abort the run. The ranker runs once over the full set.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rewired-gh/tenderarb/internal/economics"
	"github.com/rewired-gh/tenderarb/internal/extract"
	"github.com/rewired-gh/tenderarb/internal/logger"
	"github.com/rewired-gh/tenderarb/internal/models"
	"github.com/rewired-gh/tenderarb/internal/ranker"
	"github.com/rewired-gh/tenderarb/internal/reconcile"
)

// ErrNoCandidates is returned when no deal survives to the ranker.
var ErrNoCandidates = errors.New("no candidates survived to the ranker")

// Options configures an Engine.
type Options struct {
	Workers         int
	Extract         extract.Options
	FreshnessWindow time.Duration
	OddLotPolicy    reconcile.OddLotPolicy
	Rank            ranker.Options
}

// Engine turns batches into ranked deals.
type Engine struct {
	opts      Options
	extractor *extract.Extractor
	ranker    *ranker.Ranker
}

// NewEngine creates an Engine. Fewer than one worker means one.
func NewEngine(opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		opts:      opts,
		extractor: extract.New(opts.Extract),
		ranker:    ranker.New(opts.Rank),
	}
}

// outcome is the result of processing one candidate.
type outcome struct {
	deal    *models.Deal
	drafts  int
	skipped []models.SkippedItem
}

// Run processes the batch within scope. Cancellation is observed between
// candidates only; a candidate that has started is always finished.
//
// When no deal reaches the ranker, Run returns the (empty) result together
// with ErrNoCandidates so that the skipped items can still be reported.
func (e *Engine) Run(ctx context.Context, scope *Scope, batch *models.Batch) (*models.RunResult, error) {
	reconciler := reconcile.New(reconcile.Options{
		FreshnessWindow: e.opts.FreshnessWindow,
		OddLotPolicy:    e.opts.OddLotPolicy,
		Now:             scope.Now,
	})
	calc := economics.New(scope.Today)

	logger.Info("Run %s: processing %d candidates with %d workers", scope.RunID, len(batch.Candidates), e.opts.Workers)

	outcomes := make([]outcome, len(batch.Candidates))
	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup
	var cancelled error

	for i := range batch.Candidates {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = e.process(&batch.Candidates[i], reconciler, calc)
		}(i)
	}
	wg.Wait()

	if cancelled != nil {
		logger.Warn("Run %s cancelled: %v", scope.RunID, cancelled)
		return nil, cancelled
	}

	summary := models.RunSummary{
		RunID:       scope.RunID,
		Today:       scope.Today,
		GeneratedAt: scope.Now,
		Candidates:  len(batch.Candidates),
		FetchErrors: len(batch.FetchFailures),
		Skipped:     append([]models.SkippedItem{}, batch.FetchFailures...),
	}

	var deals []models.Deal
	for i, c := range batch.Candidates {
		o := outcomes[i]
		summary.Filings += len(c.Filings)
		summary.Drafts += o.drafts
		summary.Skipped = append(summary.Skipped, o.skipped...)
		if o.deal == nil {
			continue
		}
		if o.deal.PriceStale {
			summary.StaleQuotes++
		}
		deals = append(deals, *o.deal)
	}
	summary.Reconciled = len(deals)

	ranked, excluded := e.ranker.Rank(deals)
	summary.Ranked = len(ranked)
	summary.Excluded = excluded

	result := &models.RunResult{Summary: summary, Deals: ranked}
	logger.Info("Run %s: %d reconciled, %d ranked, %d skipped, %d excluded",
		scope.RunID, summary.Reconciled, summary.Ranked, len(summary.Skipped), len(excluded))

	if len(deals) == 0 {
		return result, ErrNoCandidates
	}
	return result, nil
}

// process runs one candidate through extraction, reconciliation and
// economics. It touches no state shared with other candidates.
func (e *Engine) process(c *models.Candidate, reconciler *reconcile.Reconciler, calc *economics.Calculator) outcome {
	var o outcome
	skip := func(stage models.Stage, filingID string, err error) {
		logger.Warn("Skipping %s %s: %v", c.Ticker, stage, err)
		o.skipped = append(o.skipped, models.SkippedItem{
			Stage:    stage,
			Ticker:   c.Ticker,
			FilingID: filingID,
			Reason:   err.Error(),
		})
	}

	drafts := append([]models.DealTerms{}, c.Drafts...)
	extractionFailed := false
	for _, f := range c.Filings {
		if f.Ticker == "" {
			f.Ticker = c.Ticker
		}
		if err := checkFiling(&f); err != nil {
			extractionFailed = true
			skip(models.StageExtract, f.ID, err)
			continue
		}
		terms, err := e.extractor.Extract(f)
		if err != nil {
			extractionFailed = true
			skip(models.StageExtract, f.ID, err)
			continue
		}
		drafts = append(drafts, terms)
	}
	o.drafts = len(drafts)

	if len(drafts) == 0 {
		if !extractionFailed {
			skip(models.StageExtract, "", errors.New("no filings or drafts for ticker"))
		}
		return o
	}
	if c.Quote == nil {
		skip(models.StageReconcile, "", errors.New("no quote available"))
		return o
	}

	deal, err := reconciler.Reconcile(drafts, *c.Quote)
	if err != nil {
		skip(models.StageReconcile, "", err)
		return o
	}
	if err := calc.Annotate(deal); err != nil {
		skip(models.StageEconomics, "", err)
		return o
	}
	o.deal = deal
	return o
}
