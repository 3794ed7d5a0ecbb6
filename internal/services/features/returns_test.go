package features

import (
	"testing"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

func TestDailyReturns(t *testing.T) {
	prices := models.PriceTable{
		Dates:  days(3),
		Assets: []string{"AAA"},
		Prices: map[string][]float64{"AAA": {100, 110, 99}},
	}

	rets, err := DailyReturns(prices)
	require.NoError(t, err)
	require.Equal(t, 2, rets.Rows())
	require.Equal(t, prices.Dates[1:], rets.Dates)
	require.InDelta(t, 0.10, rets.Returns["AAA"][0], 1e-12)
	require.InDelta(t, -0.10, rets.Returns["AAA"][1], 1e-12)
}

func TestDailyReturnsMultiAsset(t *testing.T) {
	prices := models.PriceTable{
		Dates:  days(3),
		Assets: []string{"AAA", "BBB"},
		Prices: map[string][]float64{
			"AAA": {100, 101, 102.01},
			"BBB": {50, 49, 49},
		},
	}

	rets, err := DailyReturns(prices)
	require.NoError(t, err)
	require.InDelta(t, 0.01, rets.Returns["AAA"][0], 1e-12)
	require.InDelta(t, 0.01, rets.Returns["AAA"][1], 1e-12)
	require.InDelta(t, -0.02, rets.Returns["BBB"][0], 1e-12)
	require.InDelta(t, 0, rets.Returns["BBB"][1], 1e-12)
}

func TestDailyReturnsEmptyTable(t *testing.T) {
	_, err := DailyReturns(models.PriceTable{})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestDailyReturnsMisalignedColumn(t *testing.T) {
	prices := models.PriceTable{
		Dates:  days(3),
		Assets: []string{"AAA"},
		Prices: map[string][]float64{"AAA": {100, 110}},
	}
	_, err := DailyReturns(prices)
	require.Error(t, err)
	require.Contains(t, err.Error(), "misaligned")
}
