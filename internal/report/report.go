// Package report renders a run result as a Markdown report and derives the
// factual risk flags shown for each deal.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

const (
	wideSpreadPct    = 20.0
	longHorizonDays  = 60
	imminentDays     = 5
	maxExcerptInLine = 400
)

// RiskFlags lists factual risk observations for a deal. It never suggests an
// action.
func RiskFlags(d models.Deal) []string {
	var flags []string

	if d.Economics != nil {
		if d.SpreadPct < 0 {
			flags = append(flags, "Negative spread: the market price is above the offer price")
		}
		if d.SpreadPct > wideSpreadPct {
			flags = append(flags, fmt.Sprintf("Spread above %.0f%%: the market may be pricing proration or completion risk", wideSpreadPct))
		}
		if d.DaysRemaining > longHorizonDays {
			flags = append(flags, fmt.Sprintf("Long horizon: %d days until expiry", d.DaysRemaining))
		}
		if d.DaysRemaining >= 0 && d.DaysRemaining <= imminentDays {
			flags = append(flags, fmt.Sprintf("Imminent expiry: %d days left", d.DaysRemaining))
		}
	}

	switch {
	case d.Proration && !d.OddLotPriority:
		flags = append(flags, "Proration applies and odd-lot holders have no priority")
	case !d.OddLotPriority:
		flags = append(flags, "No odd-lot priority found")
	}

	if d.OfferType == models.OfferIssuerDutch && d.PriceRange != nil && d.OfferPrice == d.PriceRange.Low {
		flags = append(flags, fmt.Sprintf("Dutch auction valued at the range low; clearing price may be up to $%.2f", d.PriceRange.High))
	}
	if d.PriceStale {
		flags = append(flags, "Stale price: quote is older than the freshness window")
	}
	if len(d.Conflicts) > 0 {
		fields := make([]string, 0, len(d.Conflicts))
		for _, c := range d.Conflicts {
			fields = append(fields, c.Field)
		}
		flags = append(flags, "Sources disagree on: "+strings.Join(fields, ", "))
	}
	for _, c := range d.Conditions {
		flags = append(flags, "Condition: "+c)
	}
	return flags
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"pct":   func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"annual": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.2f%%", *v)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"price": func(d models.Deal) string {
		if d.PriceRange != nil {
			return fmt.Sprintf("$%.2f (range %s)", d.OfferPrice, d.PriceRange)
		}
		return fmt.Sprintf("$%.2f", d.OfferPrice)
	},
	"cell": func(s string) string {
		s = strings.ReplaceAll(s, "|", "\\|")
		return strings.Join(strings.Fields(s), " ")
	},
	"excerpt": func(s string) string {
		s = strings.Join(strings.Fields(s), " ")
		if r := []rune(s); len(r) > maxExcerptInLine {
			s = string(r[:maxExcerptInLine]) + "..."
		}
		return s
	},
	"risks": RiskFlags,
	"ts":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 MST") },
	"join":  strings.Join,
}

const reportTemplate = `# Tender Offer Arbitrage Report

> Run {{.Summary.RunID}} for {{.Summary.Today}}, generated {{ts .Summary.GeneratedAt}}

## Summary

| Candidates | Filings | Drafts | Reconciled | Ranked | Stale quotes | Fetch errors | Skipped | Excluded |
|---|---|---|---|---|---|---|---|---|
| {{.Summary.Candidates}} | {{.Summary.Filings}} | {{.Summary.Drafts}} | {{.Summary.Reconciled}} | {{.Summary.Ranked}} | {{.Summary.StaleQuotes}} | {{.Summary.FetchErrors}} | {{len .Summary.Skipped}} | {{len .Summary.Excluded}} |
{{if .Deals}}
## Ranked Deals

| Rank | Ticker | Type | Offer | Price | Spread | Annualized | Expiry | Days | Odd-lot | Rating |
|---|---|---|---|---|---|---|---|---|---|---|
{{- range .Deals}}
| {{.Rank}} | **{{.Ticker}}** | {{.OfferType}} | {{price .}} | {{money .CurrentPrice}}{{if .PriceStale}} (stale){{end}} | {{pct .SpreadPct}} | {{annual .AnnualizedReturn}} | {{.ExpiryDate}} | {{.DaysRemaining}} | {{yesno .OddLotPriority}} | {{.Rating}} |
{{- end}}
{{range .Deals}}
### {{.Rank}}. {{.Ticker}} ({{.Rating}}, score {{printf "%.4f" .Score}})

| Item | Detail |
|---|---|
| Offer type | {{.OfferType}} |
| Offer price | {{price .}} |
| Current price | {{money .CurrentPrice}} as of {{ts .QuoteTime}}{{if .PriceStale}} (stale){{end}} |
| Spread | {{money .SpreadAbs}} ({{pct .SpreadPct}}) |
| Expiry | {{.ExpiryDate}} ({{.DaysRemaining}} days) |
| Annualized return | {{annual .AnnualizedReturn}} |
| Odd-lot priority | {{yesno .OddLotPriority}} |
| Proration | {{yesno .Proration}} |
{{- if .SharesSought}}
| Shares sought | {{.SharesSought}} |
{{- end}}
{{- if .TotalValue}}
| Total value | {{money .TotalValue}} |
{{- end}}
| Sources | {{join .ContributingSources ", "}} |
{{- if .FilingURL}}
| Filing | {{.FilingURL}} |
{{- end}}
{{with risks .}}
**Risk flags**
{{range .}}
- {{.}}
{{- end}}
{{end}}
{{- if .OddLotTable}}
**Odd-lot payoff**

| Shares | Cost | Revenue | Profit |
|---|---|---|---|
{{- range .OddLotTable}}
| {{.Shares}} | {{money .Cost}} | {{money .Revenue}} | {{money .Profit}} |
{{- end}}
{{end}}
{{- if .Conflicts}}
**Source conflicts**

| Field | Chosen | From | Rejected | Resolution |
|---|---|---|---|---|
{{- range .Conflicts}}
| {{.Field}} | {{cell .Chosen}} | {{.ChosenFrom}} | {{range $i, $r := .Rejected}}{{if $i}}; {{end}}{{cell $r.Value}} ({{$r.FilingID}}, {{$r.Confidence}}){{end}} | {{.Resolution}} |
{{- end}}
{{end}}
{{- if .OddLotExcerpt}}
> {{excerpt .OddLotExcerpt}}
{{end}}
{{- end}}
{{- else}}
No deals qualified in this run.
{{end}}
{{- if .Summary.Skipped}}
## Skipped Items

| Stage | Ticker | Filing | Reason |
|---|---|---|---|
{{- range .Summary.Skipped}}
| {{.Stage}} | {{.Ticker}} | {{.FilingID}} | {{cell .Reason}} |
{{- end}}
{{end}}
{{- if .Summary.Excluded}}
## Excluded Deals

| Deal | Reason |
|---|---|
{{- range .Summary.Excluded}}
| {{.Key}} | {{cell .Reason}} |
{{- end}}
{{end}}
---

Generated automatically from public filings and market data. Figures are for information only.
`

var tmpl = template.Must(template.New("report").Funcs(funcs).Parse(reportTemplate))

// Render returns the Markdown report for a run.
func Render(result *models.RunResult) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, result); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
