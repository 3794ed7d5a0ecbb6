package features

import (
	"testing"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

func twoAssetTable() models.ReturnTable {
	return models.ReturnTable{
		Dates:  days(2),
		Assets: []string{"A", "B"},
		Returns: map[string][]float64{
			"A": {0.10, -0.10},
			"B": {0.10, 0.10},
		},
	}
}

func TestAggregate(t *testing.T) {
	agg := NewAggregator(twoAssetTable())
	pr, err := agg.Aggregate(models.WeightMap{"A": 0.5, "B": 0.5})
	require.NoError(t, err)

	require.InDelta(t, 0.10, pr.Daily.Values[0], 1e-12)
	require.InDelta(t, 0, pr.Daily.Values[1], 1e-12)

	// cumulative c_t = prod(1+r_s) - 1
	require.InDelta(t, 0.10, pr.Cumulative.Values[0], 1e-12)
	require.InDelta(t, 0.10, pr.Cumulative.Values[1], 1e-12)
}

func TestAggregatePartialWeights(t *testing.T) {
	// assets outside the map carry weight zero
	agg := NewAggregator(twoAssetTable())
	pr, err := agg.Aggregate(models.WeightMap{"A": 1.0})
	require.NoError(t, err)
	require.InDelta(t, 0.10, pr.Daily.Values[0], 1e-12)
	require.InDelta(t, -0.10, pr.Daily.Values[1], 1e-12)
}

func TestAggregateStrictSum(t *testing.T) {
	agg := NewAggregator(twoAssetTable())

	_, err := agg.Aggregate(models.WeightMap{"A": 0.5, "B": 0.499})
	var iw *InvalidWeightsError
	require.ErrorAs(t, err, &iw)
	require.InDelta(t, 0.999, iw.Sum, 1e-12)

	// within tolerance
	_, err = agg.Aggregate(models.WeightMap{"A": 0.5, "B": 0.500001})
	require.NoError(t, err)
}

func TestAggregateUnknownAssets(t *testing.T) {
	agg := NewAggregator(twoAssetTable())
	_, err := agg.Aggregate(models.WeightMap{"Z": 0.5, "Y": 0.5})

	var iw *InvalidWeightsError
	require.ErrorAs(t, err, &iw)
	require.Equal(t, []string{"Y", "Z"}, iw.Unknown)
}

func TestAggregateEmptyWeights(t *testing.T) {
	agg := NewAggregator(twoAssetTable())
	_, err := agg.Aggregate(models.WeightMap{})

	var iw *InvalidWeightsError
	require.ErrorAs(t, err, &iw)
}

func TestAggregateWithin(t *testing.T) {
	agg := NewAggregator(twoAssetTable())

	// 0.97 lands inside the soft window
	_, err := agg.AggregateWithin(models.WeightMap{"A": 0.5, "B": 0.47}, SoftWeightMin, SoftWeightMax)
	require.NoError(t, err)

	// 0.90 does not
	_, err = agg.AggregateWithin(models.WeightMap{"A": 0.5, "B": 0.40}, SoftWeightMin, SoftWeightMax)
	var iw *InvalidWeightsError
	require.ErrorAs(t, err, &iw)
}

func TestAggregateDoesNotMutateInputs(t *testing.T) {
	table := twoAssetTable()
	agg := NewAggregator(table)
	_, err := agg.Aggregate(models.WeightMap{"A": 0.5, "B": 0.5})
	require.NoError(t, err)

	require.Equal(t, []float64{0.10, -0.10}, table.Returns["A"])
	require.Equal(t, []float64{0.10, 0.10}, table.Returns["B"])
}
