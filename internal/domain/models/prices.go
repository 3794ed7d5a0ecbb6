package models

import "time"

// PriceTable is an aligned table of daily closing prices: one shared
// ascending date axis and one column per asset. All columns have exactly
// len(Dates) rows. Built by the ingestion side, consumed read-only by the
// feature pipeline.
type PriceTable struct {
	Dates  []time.Time
	Assets []string
	Prices map[string][]float64
}

// Rows returns the number of dates in the table.
func (t PriceTable) Rows() int { return len(t.Dates) }

// Cols returns the number of assets in the table.
func (t PriceTable) Cols() int { return len(t.Assets) }

// HasAsset reports whether the table carries a column for the asset.
func (t PriceTable) HasAsset(asset string) bool {
	_, ok := t.Prices[asset]
	return ok
}

// ReturnSeries is an ordered-by-date series of daily returns for a single
// asset or an aggregated portfolio. Derived, never mutated in place.
type ReturnSeries struct {
	Dates  []time.Time
	Values []float64
}

// Len returns the number of observations.
func (s ReturnSeries) Len() int { return len(s.Values) }

// Window returns the contiguous sub-series [start, end). The result shares
// backing arrays with the receiver; callers must treat both as read-only.
func (s ReturnSeries) Window(start, end int) ReturnSeries {
	return ReturnSeries{Dates: s.Dates[start:end], Values: s.Values[start:end]}
}

// ReturnTable holds per-asset return series aligned on a shared date axis.
type ReturnTable struct {
	Dates   []time.Time
	Assets  []string
	Returns map[string][]float64
}

// Rows returns the number of dates in the table.
func (t ReturnTable) Rows() int { return len(t.Dates) }

// Series extracts one asset's column as a ReturnSeries.
func (t ReturnTable) Series(asset string) (ReturnSeries, bool) {
	vals, ok := t.Returns[asset]
	if !ok {
		return ReturnSeries{}, false
	}
	return ReturnSeries{Dates: t.Dates, Values: vals}, true
}

// Window returns the row slice [start, end) across every column. Backing
// arrays are shared; read-only by convention.
func (t ReturnTable) Window(start, end int) ReturnTable {
	out := ReturnTable{
		Dates:   t.Dates[start:end],
		Assets:  t.Assets,
		Returns: make(map[string][]float64, len(t.Returns)),
	}
	for asset, vals := range t.Returns {
		out.Returns[asset] = vals[start:end]
	}
	return out
}

// WeightMap maps asset identifiers to portfolio weights.
type WeightMap map[string]float64

// Sum returns the total weight.
func (w WeightMap) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// PortfolioReturns bundles a portfolio's aggregated daily return series
// with its cumulative return series c_t = prod(1+r_s) - 1.
type PortfolioReturns struct {
	Daily      ReturnSeries
	Cumulative ReturnSeries
}
