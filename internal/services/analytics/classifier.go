package analytics

import (
	"context"
	"fmt"

	"QuantShield/internal/domain/models"
	"QuantShield/internal/domain/service"
	"QuantShield/pkg/config"
)

// predictRequest is the wire payload for the model service. Feature values
// are sent positionally; Columns names them so the service can verify the
// ordering it was trained with.
type predictRequest struct {
	Features []float64 `json:"features"`
	Columns  []string  `json:"columns"`
}

type predictResponse struct {
	RiskClass  string  `json:"risk_class"`
	Model      string  `json:"model,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// HTTPClassifier calls the external model service to turn a feature vector
// into a risk class.
type HTTPClassifier struct {
	*HTTPServiceBase
	attempts int
}

// NewHTTPClassifier creates a classifier backed by the configured model service.
func NewHTTPClassifier(cfg *config.Config) *HTTPClassifier {
	attempts := cfg.Model.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPClassifier{
		HTTPServiceBase: NewHTTPServiceBase(cfg),
		attempts:        attempts,
	}
}

var _ service.Classifier = (*HTTPClassifier)(nil)

// Predict submits the feature vector and returns the predicted risk class.
// A missing diversification ratio is filled with the neutral value 1.0
// before the call, mirroring the dataset-side fallback.
func (c *HTTPClassifier) Predict(ctx context.Context, fv models.FeatureVector) (models.RiskLevel, error) {
	req := predictRequest{
		Features: []float64{
			fv.AnnualizedVolatility,
			fv.HistoricalVaR95,
			fv.MaxDrawdown,
			fv.DivRatioOr(1.0),
		},
		Columns: models.FeatureColumns,
	}

	var resp predictResponse
	if err := c.PostJSONWithRetry(ctx, "/predict", req, &resp, c.attempts); err != nil {
		return "", fmt.Errorf("model service predict: %w", err)
	}

	level := models.RiskLevel(resp.RiskClass)
	if !level.IsValid() {
		return "", fmt.Errorf("model service returned unknown risk class %q", resp.RiskClass)
	}
	return level, nil
}
