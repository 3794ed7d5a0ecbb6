package repository

import (
	"context"
	"time"

	"QuantShield/internal/domain/models"
)

// PanelStore persists and serves the labeled training panel.
type PanelStore interface {
	// ReplacePanel atomically replaces the stored panel with rows built at
	// builtAt. Rows are expected sorted ascending by WindowEnd.
	ReplacePanel(ctx context.Context, rows models.Panel, builtAt time.Time) error

	// LatestPanel returns up to limit rows of the most recent panel build,
	// ascending by WindowEnd.
	LatestPanel(ctx context.Context, limit int) (models.Panel, error)
}
