// Package economics derives spread, annualized return and odd-lot payoffs for
// canonical deals.
//
//	spread_abs        = offer - current
//	spread_pct        = spread_abs / current * 100
//	days_remaining    = expiry - today (calendar days)
//	annualized_return = spread_pct * 365 / max(days_remaining, 1), undefined when days_remaining <= 0
//
// All arithmetic is done on unrounded values; rounding to two decimals happens
// once, when the result is written to the deal.
package economics

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// OddLotSizes are the share counts of the odd-lot payoff table.
var OddLotSizes = []int{50, 99}

// EconomicsError reports a deal whose economics are undefined.
type EconomicsError struct {
	Ticker string
	Reason string
}

func (e *EconomicsError) Error() string {
	return fmt.Sprintf("economics failed for %s: %s", e.Ticker, e.Reason)
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Compute returns the rounded economics of an offer.
func Compute(offer, current float64, expiry, today models.Date, oddLot bool) (models.Economics, error) {
	if current <= 0 {
		return models.Economics{}, &EconomicsError{Reason: fmt.Sprintf("current price %.2f is not positive", current)}
	}

	spreadAbs := offer - current
	spreadPct := spreadAbs / current * 100
	days := today.DaysUntil(expiry)

	econ := models.Economics{
		SpreadAbs:     Round(spreadAbs, 2),
		SpreadPct:     Round(spreadPct, 2),
		DaysRemaining: days,
		Expired:       days < 0,
	}

	if days > 0 {
		annualized := Round(spreadPct*(365/float64(max(days, 1))), 2)
		econ.AnnualizedReturn = &annualized
	}

	if oddLot {
		for _, n := range OddLotSizes {
			cost := current * float64(n)
			revenue := offer * float64(n)
			econ.OddLotTable = append(econ.OddLotTable, models.OddLotRow{
				Shares:  n,
				Cost:    Round(cost, 2),
				Revenue: Round(revenue, 2),
				Profit:  Round(revenue-cost, 2),
			})
		}
	}

	return econ, nil
}

// Calculator annotates deals against a fixed calendar day.
type Calculator struct {
	today models.Date
}

// New creates a Calculator for today.
func New(today models.Date) *Calculator {
	return &Calculator{today: today}
}

// Annotate computes and attaches the deal's economics.
func (c *Calculator) Annotate(d *models.Deal) error {
	econ, err := Compute(d.OfferPrice, d.CurrentPrice, d.ExpiryDate, c.today, d.OddLotPriority)
	if err != nil {
		var ee *EconomicsError
		if errors.As(err, &ee) {
			ee.Ticker = d.Ticker
		}
		return err
	}
	d.Economics = &econ
	return nil
}
