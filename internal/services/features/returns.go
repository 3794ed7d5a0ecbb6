package features

import (
	"fmt"

	"QuantShield/internal/domain/models"
)

// DailyReturns derives per-asset simple daily returns r_t = p_t/p_{t-1} - 1
// from an aligned price table. The first row, whose return is undefined, is
// dropped, so the result has len(prices.Dates)-1 rows.
func DailyReturns(prices models.PriceTable) (models.ReturnTable, error) {
	if prices.Rows() == 0 || prices.Cols() == 0 {
		return models.ReturnTable{}, fmt.Errorf("price table has %d rows and %d columns: %w", prices.Rows(), prices.Cols(), ErrEmptyInput)
	}

	n := prices.Rows() - 1
	out := models.ReturnTable{
		Dates:   prices.Dates[1:],
		Assets:  prices.Assets,
		Returns: make(map[string][]float64, prices.Cols()),
	}
	for _, asset := range prices.Assets {
		col, ok := prices.Prices[asset]
		if !ok || len(col) != prices.Rows() {
			return models.ReturnTable{}, fmt.Errorf("price column %q misaligned with date axis", asset)
		}
		rets := make([]float64, n)
		for i := 1; i <= n; i++ {
			rets[i-1] = col[i]/col[i-1] - 1
		}
		out.Returns[asset] = rets
	}
	return out, nil
}
