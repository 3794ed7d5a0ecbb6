package models

import "time"

// RiskLevel is the categorical risk class assigned to a portfolio window.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// IsValid reports whether the level is one of the three known classes.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// FeatureVector holds the four risk statistics computed from a return
// window. DiversificationRatio is nil when component returns or weights
// were not available; consumers decide their own fallback (the panel
// builder and the serving path both default to 1.0).
type FeatureVector struct {
	AnnualizedVolatility float64  `json:"Annualized_Volatility"`
	HistoricalVaR95      float64  `json:"Historical_VaR_95"`
	MaxDrawdown          float64  `json:"Maximum_Drawdown"`
	DiversificationRatio *float64 `json:"Diversification_Ratio,omitempty"`
}

// DivRatioOr returns the diversification ratio, or def when it was not
// computed.
func (f FeatureVector) DivRatioOr(def float64) float64 {
	if f.DiversificationRatio == nil {
		return def
	}
	return *f.DiversificationRatio
}

// PanelRow is one labeled observation of the training panel: the feature
// vector of a single (portfolio, window) pair plus its rule-based label.
// Created once during panel construction, immutable afterwards.
type PanelRow struct {
	PortfolioID string    `json:"Portfolio_ID"`
	WindowStart time.Time `json:"Window_Start"`
	WindowEnd   time.Time `json:"Window_End"`
	Vol         float64   `json:"Vol"`
	VaR95       float64   `json:"VaR95"`
	MaxDD       float64   `json:"MaxDD"`
	DivRatio    float64   `json:"DivRatio"`
	Label       RiskLevel `json:"Label"`
}

// Panel is the flat ML-ready table handed to the classifier. Row order is
// portfolio iteration order crossed with ascending window order until
// sorted by WindowEnd for temporal splitting.
type Panel []PanelRow

// FeatureColumns is the fixed feature order presented to the classifier.
var FeatureColumns = []string{"Vol", "VaR95", "MaxDD", "DivRatio"}

// Features returns the row's feature values in FeatureColumns order.
func (r PanelRow) Features() []float64 {
	return []float64{r.Vol, r.VaR95, r.MaxDD, r.DivRatio}
}

// RiskAssessment is the result of a single inference-time prediction.
type RiskAssessment struct {
	RiskClass   RiskLevel     `json:"risk_class"`
	Metrics     FeatureVector `json:"metrics"`
	Explanation string        `json:"explanation"`
	Timestamp   time.Time     `json:"timestamp"`
}
