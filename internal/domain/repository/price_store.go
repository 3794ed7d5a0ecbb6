package repository

import (
	"context"
	"time"

	"QuantShield/internal/domain/models"
)

// PriceStore provides read-only access to aligned daily closing prices.
// Implementations guarantee the returned table has a shared date axis with
// no duplicate dates and no missing values (gaps are forward-filled, then
// backward-filled for leading gaps).
type PriceStore interface {
	// GetDailyCloses returns an aligned PriceTable covering [from, to] for
	// the requested assets. Assets with no observations at all are omitted
	// from the table.
	GetDailyCloses(ctx context.Context, assets []string, from, to time.Time) (models.PriceTable, error)
}
