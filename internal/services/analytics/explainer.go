package analytics

import (
	"fmt"

	"QuantShield/internal/domain/models"
	"QuantShield/internal/domain/service"
)

// TemplateExplainer renders a deterministic plain-language summary of the
// computed risk metrics. Strictly backward-looking: it restates what was
// measured and never forecasts.
type TemplateExplainer struct{}

func NewTemplateExplainer() *TemplateExplainer {
	return &TemplateExplainer{}
}

var _ service.Explainer = (*TemplateExplainer)(nil)

// Explain formats the metrics into a fixed narrative. Percentages are
// rendered with two decimals, the diversification score as a plain number.
func (e *TemplateExplainer) Explain(riskClass models.RiskLevel, fv models.FeatureVector) string {
	return fmt.Sprintf(
		"Based on its past performance, this portfolio is currently considered %s risk. "+
			"On average, its value goes up or down by about %.2f%% each year. "+
			"Looking at bad market days in the past, a typical 'worst-case' daily drop has been around %.2f%%. "+
			"The biggest overall drop it ever took from a high point to a low point was %.2f%%. "+
			"It has a diversification score of %.2f; a higher score means your eggs are better spread "+
			"across different baskets, which helps lower your overall risk.",
		riskClass,
		fv.AnnualizedVolatility*100,
		fv.HistoricalVaR95*100,
		fv.MaxDrawdown*100,
		fv.DivRatioOr(1.0),
	)
}
