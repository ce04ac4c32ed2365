package economics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/tenderarb/internal/models"
)

var today = models.NewDate(2026, time.January, 1)

func TestComputeSpread(t *testing.T) {
	econ, err := Compute(52, 50, models.NewDate(2026, time.January, 31), today, false)
	require.NoError(t, err)

	assert.Equal(t, 2.00, econ.SpreadAbs)
	assert.Equal(t, 4.00, econ.SpreadPct)
	assert.Equal(t, 30, econ.DaysRemaining)
	require.NotNil(t, econ.AnnualizedReturn)
	assert.Equal(t, 48.67, *econ.AnnualizedReturn)
	assert.False(t, econ.Expired)
	assert.Empty(t, econ.OddLotTable)
}

func TestComputeOddLotTable(t *testing.T) {
	econ, err := Compute(52, 50, models.NewDate(2026, time.January, 31), today, true)
	require.NoError(t, err)

	assert.Equal(t, []models.OddLotRow{
		{Shares: 50, Cost: 2500.00, Revenue: 2600.00, Profit: 100.00},
		{Shares: 99, Cost: 4950.00, Revenue: 5148.00, Profit: 198.00},
	}, econ.OddLotTable)
}

func TestComputeDayBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		expiry      models.Date
		wantDays    int
		wantExpired bool
		wantAnnual  *float64
	}{
		{name: "expires today", expiry: today, wantDays: 0, wantExpired: false},
		{name: "expired yesterday", expiry: models.NewDate(2025, time.December, 31), wantDays: -1, wantExpired: true},
		{name: "one day left", expiry: models.NewDate(2026, time.January, 2), wantDays: 1, wantAnnual: ptr(1460.00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			econ, err := Compute(52, 50, tt.expiry, today, false)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, econ.DaysRemaining)
			assert.Equal(t, tt.wantExpired, econ.Expired)
			assert.Equal(t, tt.wantAnnual, econ.AnnualizedReturn)
		})
	}
}

func TestComputeRejectsNonPositivePrice(t *testing.T) {
	for _, price := range []float64{0, -1.5} {
		_, err := Compute(52, price, today, today, false)
		var ee *EconomicsError
		require.True(t, errors.As(err, &ee), "price %v", price)
	}
}

func TestComputeNegativeSpread(t *testing.T) {
	econ, err := Compute(16.5, 17.25, models.NewDate(2026, time.February, 15), today, false)
	require.NoError(t, err)
	assert.Equal(t, -0.75, econ.SpreadAbs)
	assert.Equal(t, -4.35, econ.SpreadPct)
}

func TestAnnotate(t *testing.T) {
	d := &models.Deal{
		Ticker:         "ACLX",
		OfferPrice:     115,
		CurrentPrice:   112,
		ExpiryDate:     models.NewDate(2026, time.January, 31),
		OddLotPriority: true,
	}
	require.NoError(t, New(today).Annotate(d))
	require.NotNil(t, d.Economics)
	assert.Equal(t, 3.00, d.SpreadAbs)
	assert.Equal(t, 2.68, d.SpreadPct)
	assert.Len(t, d.OddLotTable, 2)

	d.CurrentPrice = 0
	err := New(today).Annotate(d)
	var ee *EconomicsError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "ACLX", ee.Ticker)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 48.67, Round(4.0*(365.0/30.0), 2))
	assert.Equal(t, 1.01, Round(1.005, 2))
	assert.Equal(t, -2.68, Round(-2.675, 2))
}

func ptr(v float64) *float64 { return &v }
