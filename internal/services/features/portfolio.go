package features

import (
	"math"
	"sort"

	"QuantShield/internal/domain/models"
)

// StrictWeightTolerance is the training-side tolerance for |sum(weights)-1|.
const StrictWeightTolerance = 1e-5

// Soft weight-sum acceptance window used at inference time.
const (
	SoftWeightMin = 0.95
	SoftWeightMax = 1.05
)

// Aggregator combines per-asset return series into a single weighted
// portfolio return series. It never mutates its inputs.
type Aggregator struct {
	components models.ReturnTable
}

// NewAggregator creates an aggregator over an aligned component return table.
func NewAggregator(components models.ReturnTable) *Aggregator {
	return &Aggregator{components: components}
}

// Aggregate computes r_t = sum_asset w[asset]*r_asset_t for every date and
// the cumulative series c_t = prod(1+r_s)-1, applying the strict
// training-side weight validation: the map must be non-empty, reference
// only known assets, and sum to 1.0 within StrictWeightTolerance. Assets
// present in the table but absent from the map carry weight zero.
func (a *Aggregator) Aggregate(weights models.WeightMap) (models.PortfolioReturns, error) {
	if err := a.validateWeights(weights); err != nil {
		return models.PortfolioReturns{}, err
	}
	if math.Abs(weights.Sum()-1.0) > StrictWeightTolerance {
		return models.PortfolioReturns{}, &InvalidWeightsError{Reason: "weights must sum to 1.0", Sum: weights.Sum()}
	}
	return a.combine(weights), nil
}

// AggregateWithin is the inference-side variant: the sum check is relaxed
// to the [lo, hi] acceptance window. Empty maps and unknown assets still
// fail.
func (a *Aggregator) AggregateWithin(weights models.WeightMap, lo, hi float64) (models.PortfolioReturns, error) {
	if err := a.validateWeights(weights); err != nil {
		return models.PortfolioReturns{}, err
	}
	if sum := weights.Sum(); sum < lo || sum > hi {
		return models.PortfolioReturns{}, &InvalidWeightsError{Reason: "weight sum outside acceptance window", Sum: sum}
	}
	return a.combine(weights), nil
}

func (a *Aggregator) validateWeights(weights models.WeightMap) error {
	if len(weights) == 0 {
		return &InvalidWeightsError{Reason: "weight map is empty"}
	}
	var unknown []string
	for asset := range weights {
		if _, ok := a.components.Returns[asset]; !ok {
			unknown = append(unknown, asset)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &InvalidWeightsError{Reason: "unknown assets", Unknown: unknown}
	}
	return nil
}

func (a *Aggregator) combine(weights models.WeightMap) models.PortfolioReturns {
	n := a.components.Rows()
	daily := make([]float64, n)
	for _, asset := range a.components.Assets {
		w := weights[asset] // zero for assets outside the map
		if w == 0 {
			continue
		}
		col := a.components.Returns[asset]
		for i := 0; i < n; i++ {
			daily[i] += w * col[i]
		}
	}

	cumulative := make([]float64, n)
	growth := 1.0
	for i, r := range daily {
		growth *= 1 + r
		cumulative[i] = growth - 1
	}

	return models.PortfolioReturns{
		Daily:      models.ReturnSeries{Dates: a.components.Dates, Values: daily},
		Cumulative: models.ReturnSeries{Dates: a.components.Dates, Values: cumulative},
	}
}
