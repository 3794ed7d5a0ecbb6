package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"QuantShield/internal/domain/models"
)

// TradingDaysPerYear is the annualization factor for daily volatility.
const TradingDaysPerYear = 252

// zeroVolTolerance matches the "no measurable risk" cutoff for the
// diversification ratio denominator.
const zeroVolTolerance = 1e-8

// AnnualizedVolatility is the sample standard deviation of daily returns
// scaled by sqrt(252).
func AnnualizedVolatility(r models.ReturnSeries) (float64, error) {
	if r.Len() == 0 {
		return 0, fmt.Errorf("portfolio returns: %w", ErrEmptyInput)
	}
	return stat.StdDev(r.Values, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// HistoricalVaR95 is the empirical 5th percentile of daily returns with
// linear interpolation, reported as a non-negative loss magnitude.
func HistoricalVaR95(r models.ReturnSeries) (float64, error) {
	if r.Len() == 0 {
		return 0, fmt.Errorf("portfolio returns: %w", ErrEmptyInput)
	}
	return math.Abs(percentile(r.Values, 0.05)), nil
}

// MaxDrawdown is the largest proportional decline of the cumulative growth
// series from its running peak. The growth series is re-based to 1.0 at the
// start of the slice, so each window measures only its own drawdowns.
func MaxDrawdown(r models.ReturnSeries) (float64, error) {
	if r.Len() == 0 {
		return 0, fmt.Errorf("portfolio returns: %w", ErrEmptyInput)
	}
	growth := 1.0
	peak := math.Inf(-1)
	worst := 0.0
	for _, ret := range r.Values {
		growth *= 1 + ret
		if growth > peak {
			peak = growth
		}
		if dd := (growth - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst), nil
}

// DiversificationRatio is the weighted average of component volatilities
// over the realized portfolio volatility. Assets missing from either the
// weight map or the component table are skipped. A portfolio volatility
// within zeroVolTolerance of zero yields exactly 1.0.
func DiversificationRatio(portfolio models.ReturnSeries, components models.ReturnTable, weights models.WeightMap) (float64, error) {
	if portfolio.Len() == 0 {
		return 0, fmt.Errorf("portfolio returns: %w", ErrEmptyInput)
	}

	weightedVol := 0.0
	for asset, w := range weights {
		col, ok := components.Returns[asset]
		if !ok {
			continue
		}
		weightedVol += w * stat.StdDev(col, nil)
	}

	portfolioVol := stat.StdDev(portfolio.Values, nil)
	if math.Abs(portfolioVol) < zeroVolTolerance {
		return 1.0, nil
	}
	return weightedVol / portfolioVol, nil
}

// Compute evaluates all risk statistics for one return window. The
// diversification ratio is included only when both component returns and
// weights are provided; otherwise the field stays nil and consumers apply
// their own fallback. Pure: identical inputs produce identical output.
func Compute(portfolio models.ReturnSeries, components *models.ReturnTable, weights models.WeightMap) (models.FeatureVector, error) {
	vol, err := AnnualizedVolatility(portfolio)
	if err != nil {
		return models.FeatureVector{}, err
	}
	var95, err := HistoricalVaR95(portfolio)
	if err != nil {
		return models.FeatureVector{}, err
	}
	maxDD, err := MaxDrawdown(portfolio)
	if err != nil {
		return models.FeatureVector{}, err
	}

	fv := models.FeatureVector{
		AnnualizedVolatility: vol,
		HistoricalVaR95:      var95,
		MaxDrawdown:          maxDD,
	}

	if components != nil && weights != nil {
		ratio, err := DiversificationRatio(portfolio, *components, weights)
		if err != nil {
			return models.FeatureVector{}, err
		}
		fv.DiversificationRatio = &ratio
	}

	return fv, nil
}

// percentile computes the p-quantile (p in [0,1]) of xs using linear
// interpolation between closest ranks: h = p*(n-1), interpolating between
// floor(h) and ceil(h). This matches the reference fixtures; gonum's
// LinInterp cumulant has midpoint semantics and does not.
func percentile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	h := p * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
