package panel

import "QuantShield/internal/domain/models"

// Rule-based label thresholds. The label provides the target for the
// classifier; no training is involved.
const (
	lowVolBelow  = 0.12
	lowDDBelow   = 0.15
	highVolAbove = 0.20
	highDDAbove  = 0.25
	highVaRAbove = 0.03
)

// AssignLabel maps a window's risk statistics to a risk class. Conditions
// are evaluated Low first, then High, else Medium; the order is part of
// the contract so threshold edits stay reproducible.
func AssignLabel(vol, var95, maxDD float64) models.RiskLevel {
	if vol < lowVolBelow && maxDD < lowDDBelow {
		return models.RiskLow
	}
	if vol > highVolAbove || maxDD > highDDAbove || var95 > highVaRAbove {
		return models.RiskHigh
	}
	return models.RiskMedium
}
