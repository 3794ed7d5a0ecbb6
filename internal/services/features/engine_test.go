package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

func days(n int) []time.Time {
	out := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = base.AddDate(0, 0, i)
	}
	return out
}

func series(values ...float64) models.ReturnSeries {
	return models.ReturnSeries{Dates: days(len(values)), Values: values}
}

func TestAnnualizedVolatility(t *testing.T) {
	got, err := AnnualizedVolatility(series(0.01, -0.01, 0.01, -0.01))
	require.NoError(t, err)

	// sample stddev 0.01*sqrt(4/3), scaled by sqrt(252)
	want := 0.01 * math.Sqrt(4.0/3.0) * math.Sqrt(252)
	require.InDelta(t, want, got, 1e-12)
}

func TestAnnualizedVolatilityConstantReturns(t *testing.T) {
	got, err := AnnualizedVolatility(series(0.02, 0.02, 0.02))
	require.NoError(t, err)
	require.InDelta(t, 0, got, 1e-12)
}

func TestAnnualizedVolatilityEmpty(t *testing.T) {
	_, err := AnnualizedVolatility(models.ReturnSeries{})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestHistoricalVaR95LinearInterpolation(t *testing.T) {
	// sorted: -0.02, -0.01, 0.005, 0.01, 0.03; rank h = 0.05*4 = 0.2
	got, err := HistoricalVaR95(series(0.01, -0.02, 0.03, -0.01, 0.005))
	require.NoError(t, err)
	require.InDelta(t, 0.018, got, 1e-12)
}

func TestHistoricalVaR95SingleObservation(t *testing.T) {
	got, err := HistoricalVaR95(series(-0.04))
	require.NoError(t, err)
	require.InDelta(t, 0.04, got, 1e-12)
}

func TestMaxDrawdown(t *testing.T) {
	// growth: 1.10, 0.88, 0.968; worst decline from the 1.10 peak is 20%
	got, err := MaxDrawdown(series(0.10, -0.20, 0.10))
	require.NoError(t, err)
	require.InDelta(t, 0.20, got, 1e-12)
}

func TestMaxDrawdownMonotoneGrowth(t *testing.T) {
	got, err := MaxDrawdown(series(0.01, 0.02, 0.03))
	require.NoError(t, err)
	require.InDelta(t, 0, got, 1e-12)
}

func TestMaxDrawdownRebasedPerWindow(t *testing.T) {
	// A window sliced from a longer series must only measure its own
	// drawdowns, not inherit the peak from before the slice.
	full := series(0.50, -0.10, 0.01, 0.01)
	window := full.Window(2, 4)
	got, err := MaxDrawdown(window)
	require.NoError(t, err)
	require.InDelta(t, 0, got, 1e-12)
}

func TestDiversificationRatioZeroVolPortfolio(t *testing.T) {
	comps := models.ReturnTable{
		Dates:  days(3),
		Assets: []string{"A", "B"},
		Returns: map[string][]float64{
			"A": {0.01, -0.01, 0.02},
			"B": {-0.01, 0.01, -0.02},
		},
	}
	weights := models.WeightMap{"A": 0.5, "B": 0.5}

	// perfectly anti-correlated components cancel out
	portfolio := series(0, 0, 0)
	got, err := DiversificationRatio(portfolio, comps, weights)
	require.NoError(t, err)
	require.Equal(t, 1.0, got)
}

func TestDiversificationRatio(t *testing.T) {
	comps := models.ReturnTable{
		Dates:  days(4),
		Assets: []string{"A", "B"},
		Returns: map[string][]float64{
			"A": {0.01, -0.01, 0.01, -0.01},
			"B": {-0.01, 0.01, 0.01, -0.01},
		},
	}
	weights := models.WeightMap{"A": 0.5, "B": 0.5}
	portfolio := series(0, 0, 0.01, -0.01)

	got, err := DiversificationRatio(portfolio, comps, weights)
	require.NoError(t, err)
	require.InDelta(t, math.Sqrt2, got, 1e-12)
}

func TestDiversificationRatioSkipsUnknownAssets(t *testing.T) {
	comps := models.ReturnTable{
		Dates:   days(3),
		Assets:  []string{"A"},
		Returns: map[string][]float64{"A": {0.01, -0.01, 0.02}},
	}
	weights := models.WeightMap{"A": 0.5, "MISSING": 0.5}
	portfolio := series(0.005, -0.005, 0.01)

	got, err := DiversificationRatio(portfolio, comps, weights)
	require.NoError(t, err)
	require.Greater(t, got, 0.0)
}

func TestComputeWithoutComponents(t *testing.T) {
	fv, err := Compute(series(0.01, -0.02, 0.03), nil, nil)
	require.NoError(t, err)
	require.Nil(t, fv.DiversificationRatio)
	require.Equal(t, 1.0, fv.DivRatioOr(1.0))
}

func TestComputeDeterministic(t *testing.T) {
	comps := models.ReturnTable{
		Dates:  days(3),
		Assets: []string{"A", "B"},
		Returns: map[string][]float64{
			"A": {0.01, -0.01, 0.02},
			"B": {0.02, -0.02, 0.01},
		},
	}
	weights := models.WeightMap{"A": 0.5, "B": 0.5}
	portfolio := series(0.015, -0.015, 0.015)

	first, err := Compute(portfolio, &comps, weights)
	require.NoError(t, err)
	second, err := Compute(portfolio, &comps, weights)
	require.NoError(t, err)

	require.Equal(t, first.AnnualizedVolatility, second.AnnualizedVolatility)
	require.Equal(t, first.HistoricalVaR95, second.HistoricalVaR95)
	require.Equal(t, first.MaxDrawdown, second.MaxDrawdown)
	require.NotNil(t, first.DiversificationRatio)
	require.Equal(t, *first.DiversificationRatio, *second.DiversificationRatio)
}

func TestComputeEmptyInput(t *testing.T) {
	_, err := Compute(models.ReturnSeries{}, nil, nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestPercentileEndpoints(t *testing.T) {
	xs := []float64{3, 1, 2}
	require.InDelta(t, 1, percentile(xs, 0), 1e-12)
	require.InDelta(t, 3, percentile(xs, 1), 1e-12)
	require.InDelta(t, 2, percentile(xs, 0.5), 1e-12)
}
