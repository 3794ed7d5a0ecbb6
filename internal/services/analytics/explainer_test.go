package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

func TestTemplateExplainer(t *testing.T) {
	e := NewTemplateExplainer()
	dr := 1.25
	fv := models.FeatureVector{
		AnnualizedVolatility: 0.1834,
		HistoricalVaR95:      0.021,
		MaxDrawdown:          0.155,
		DiversificationRatio: &dr,
	}

	got := e.Explain(models.RiskMedium, fv)
	require.Contains(t, got, "considered Medium risk")
	require.Contains(t, got, "about 18.34% each year")
	require.Contains(t, got, "around 2.10%")
	require.Contains(t, got, "was 15.50%")
	require.Contains(t, got, "diversification score of 1.25")
}

func TestTemplateExplainerDefaultsDivRatio(t *testing.T) {
	e := NewTemplateExplainer()
	got := e.Explain(models.RiskLow, models.FeatureVector{})
	require.Contains(t, got, "diversification score of 1.00")
}

func TestTemplateExplainerDeterministic(t *testing.T) {
	e := NewTemplateExplainer()
	fv := models.FeatureVector{AnnualizedVolatility: 0.1, HistoricalVaR95: 0.01, MaxDrawdown: 0.05}
	require.Equal(t, e.Explain(models.RiskHigh, fv), e.Explain(models.RiskHigh, fv))
}
