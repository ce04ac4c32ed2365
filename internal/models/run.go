package models

import "time"

// Stage names the pipeline step where an item was dropped.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageExtract   Stage = "extract"
	StageReconcile Stage = "reconcile"
	StageEconomics Stage = "economics"
)

// Candidate is everything gathered for one ticker before reconciliation.
type Candidate struct {
	Ticker  string      `json:"ticker"`
	Filings []Filing    `json:"filings,omitempty"`
	Drafts  []DealTerms `json:"drafts,omitempty"` // pre-structured terms, e.g. aggregator listings
	Quote   *Quote      `json:"quote,omitempty"`
}

// Batch is the complete input of one engine run. Archiving a batch is enough
// to replay the run.
type Batch struct {
	Today         Date          `json:"today"`
	AsOf          time.Time     `json:"as_of"`
	Candidates    []Candidate   `json:"candidates"`
	FetchFailures []SkippedItem `json:"fetch_failures,omitempty"`
}

// SkippedItem is a filing or ticker dropped before ranking, with the reason.
type SkippedItem struct {
	Stage    Stage  `json:"stage"`
	Ticker   string `json:"ticker,omitempty"`
	FilingID string `json:"filing_id,omitempty"`
	Reason   string `json:"reason"`
}

// Exclusion is a reconciled deal filtered out by the ranker.
type Exclusion struct {
	Key    string `json:"key"`
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// RunSummary describes what happened during a run.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Today       Date          `json:"today"`
	GeneratedAt time.Time     `json:"generated_at"`
	Candidates  int           `json:"candidates"`
	Filings     int           `json:"filings"`
	Drafts      int           `json:"drafts"`
	Reconciled  int           `json:"reconciled"`
	Ranked      int           `json:"ranked"`
	StaleQuotes int           `json:"stale_quotes"`
	FetchErrors int           `json:"fetch_errors"`
	Skipped     []SkippedItem `json:"skipped"`
	Excluded    []Exclusion   `json:"excluded"`
}

// RunResult is the engine output: ranked deals plus the run summary.
type RunResult struct {
	Summary RunSummary `json:"summary"`
	Deals   []Deal     `json:"deals"`
}
