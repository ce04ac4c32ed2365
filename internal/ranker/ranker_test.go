package ranker

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rewired-gh/tenderarb/internal/models"
)

func deal(ticker string, spreadPct, annual float64, days int, mutators ...func(d *models.Deal)) models.Deal {
	ar := annual
	d := models.Deal{
		Key:        ticker + "@2026-01-05",
		Ticker:     ticker,
		OfferPrice: 10,
		ExpiryDate: models.NewDate(2026, time.January, 1).AddDays(days),
		Conflicts:  []models.Conflict{},
		Economics: &models.Economics{
			SpreadPct:        spreadPct,
			DaysRemaining:    days,
			AnnualizedReturn: &ar,
		},
	}
	for _, m := range mutators {
		m(&d)
	}
	return d
}

func defaultRanker() *Ranker {
	return New(Options{Weights: DefaultWeights, Cutoffs: DefaultCutoffs})
}

func tickers(deals []models.Deal) []string {
	out := make([]string, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.Ticker)
	}
	return out
}

func TestCompositeScore(t *testing.T) {
	tests := []struct {
		name string
		deal models.Deal
		want float64
	}{
		{name: "return only", deal: deal("A", 4, 48.67, 30), want: 0.4867},
		{name: "return capped", deal: deal("A", 40, 250, 30), want: 1.0},
		{name: "negative return floored", deal: deal("A", -4, -40, 30), want: 0},
		{name: "odd lot bonus", deal: deal("A", 4, 50, 30, func(d *models.Deal) { d.OddLotPriority = true }), want: 0.75},
		{name: "stale penalty", deal: deal("A", 4, 50, 30, func(d *models.Deal) { d.PriceStale = true }), want: 0.3},
		{
			name: "conflict penalty applied once",
			deal: deal("A", 4, 50, 30, func(d *models.Deal) {
				d.Conflicts = []models.Conflict{{Field: "offer_price"}, {Field: "expiry_date"}}
			}),
			want: 0.4,
		},
		{
			name: "undefined return counts as zero",
			deal: deal("A", 4, 0, 0, func(d *models.Deal) { d.AnnualizedReturn = nil }),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompositeScore(&tt.deal, DefaultWeights)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected score %.4f, got %.4f", tt.want, got)
			}
		})
	}
}

func TestRankOrdersByScore(t *testing.T) {
	deals := []models.Deal{
		deal("LOW", 1, 10, 30),
		deal("HIGH", 5, 80, 30),
		deal("MID", 3, 40, 30, func(d *models.Deal) { d.OddLotPriority = true }),
	}

	ranked, excluded := defaultRanker().Rank(deals)
	if len(excluded) != 0 {
		t.Fatalf("Expected no exclusions, got %v", excluded)
	}
	if got, want := tickers(ranked), []string{"HIGH", "MID", "LOW"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected order %v, got %v", want, got)
	}
	for i, d := range ranked {
		if d.Rank != i+1 {
			t.Errorf("Expected %s at rank %d, got %d", d.Ticker, i+1, d.Rank)
		}
	}
	wantRatings := []models.Rating{models.RatingA, models.RatingB, models.RatingD}
	for i, want := range wantRatings {
		if ranked[i].Rating != want {
			t.Errorf("Expected %s rated %s, got %s", ranked[i].Ticker, want, ranked[i].Rating)
		}
	}
	if deals[0].Rank != 0 {
		t.Errorf("Input deals must not be modified, got rank %d", deals[0].Rank)
	}
}

func TestRankTieBreak(t *testing.T) {
	deals := []models.Deal{
		deal("ZZZ", 3, 50, 40),
		deal("BBB", 3, 50, 20),
		deal("AAA", 3, 50, 20),
		deal("WIDE", 4, 50, 60),
	}

	ranked, _ := defaultRanker().Rank(deals)
	if got, want := tickers(ranked), []string{"WIDE", "AAA", "BBB", "ZZZ"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected order %v, got %v", want, got)
	}

	again, _ := defaultRanker().Rank([]models.Deal{deals[2], deals[3], deals[0], deals[1]})
	if !reflect.DeepEqual(ranked, again) {
		t.Errorf("Expected the same ranking regardless of input order, got %v", tickers(again))
	}
}

func TestRankStaleDealIsDownRankedNotRemoved(t *testing.T) {
	deals := []models.Deal{
		deal("FRESH", 3, 45, 30),
		deal("STALE", 4, 50, 30, func(d *models.Deal) { d.PriceStale = true }),
	}

	ranked, excluded := defaultRanker().Rank(deals)
	if len(excluded) != 0 {
		t.Errorf("Expected no exclusions, got %v", excluded)
	}
	if got, want := tickers(ranked), []string{"FRESH", "STALE"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected order %v, got %v", want, got)
	}
}

func TestRankFilters(t *testing.T) {
	deals := []models.Deal{
		deal("OK", 3, 40, 30, func(d *models.Deal) { d.OddLotPriority = true }),
		deal("EXP", 3, 0, -1, func(d *models.Deal) { d.Expired = true; d.AnnualizedReturn = nil }),
		deal("THIN", 0.5, 6, 30, func(d *models.Deal) { d.OddLotPriority = true }),
		deal("FAR", 8, 10, 300, func(d *models.Deal) { d.OddLotPriority = true }),
		deal("NOLOT", 3, 40, 30),
		deal("NOECON", 0, 0, 30, func(d *models.Deal) { d.Economics = nil }),
	}

	r := New(Options{
		MinSpreadPct:    1,
		MaxDaysToExpiry: 180,
		OddLotOnly:      true,
		Weights:         DefaultWeights,
		Cutoffs:         DefaultCutoffs,
	})
	ranked, excluded := r.Rank(deals)

	if got, want := tickers(ranked), []string{"OK"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected ranked %v, got %v", want, got)
	}
	reasons := make(map[string]string)
	for _, e := range excluded {
		reasons[e.Ticker] = e.Reason
	}
	want := map[string]string{
		"EXP":    "expired",
		"THIN":   "spread 0.50% below minimum 1.00%",
		"FAR":    "300 days to expiry exceeds maximum 180",
		"NOLOT":  "no odd-lot priority",
		"NOECON": "economics not computed",
	}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("Expected exclusions %v, got %v", want, reasons)
	}
}

func TestRankScoreBelowFloorIsRatedD(t *testing.T) {
	cutoffs := Cutoffs{A: 0.8, B: 0.5, C: 0.2, D: 0.1}
	if err := cutoffs.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	r := New(Options{Weights: DefaultWeights, Cutoffs: cutoffs})
	ranked, excluded := r.Rank([]models.Deal{deal("LOW", 0.2, 5, 30)})

	if len(excluded) != 0 {
		t.Errorf("Expected no exclusions, got %v", excluded)
	}
	if len(ranked) != 1 {
		t.Fatalf("Expected 1 ranked deal, got %d", len(ranked))
	}
	if ranked[0].Rating != models.RatingD {
		t.Errorf("Expected rating D for score %.4f, got %s", ranked[0].Score, ranked[0].Rating)
	}
}

func TestCutoffsTier(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Rating
	}{
		{0.95, models.RatingA},
		{0.8, models.RatingA},
		{0.6, models.RatingB},
		{0.2, models.RatingC},
		{0.0, models.RatingD},
		{-5, models.RatingD},
	}
	for _, tt := range tests {
		if got := DefaultCutoffs.Tier(tt.score); got != tt.want {
			t.Errorf("Tier(%.2f) = %s, expected %s", tt.score, got, tt.want)
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	ranked, excluded := defaultRanker().Rank(nil)
	if ranked == nil {
		t.Error("Expected a non-nil empty slice")
	}
	if len(ranked) != 0 || len(excluded) != 0 {
		t.Errorf("Expected nothing ranked or excluded, got %d and %d", len(ranked), len(excluded))
	}
}

func TestCutoffsValidate(t *testing.T) {
	tests := []struct {
		name    string
		cutoffs Cutoffs
		wantErr bool
	}{
		{name: "defaults", cutoffs: DefaultCutoffs},
		{name: "equal tiers", cutoffs: Cutoffs{A: 0.5, B: 0.5, C: 0.2, D: 0}, wantErr: true},
		{name: "inverted", cutoffs: Cutoffs{A: 0.1, B: 0.5, C: 0.2, D: 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cutoffs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
