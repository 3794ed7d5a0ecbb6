package service

import (
	"context"

	"QuantShield/internal/domain/models"
)

// Classifier predicts a risk class from a fixed feature vector. The
// feature order on the wire is models.FeatureColumns.
type Classifier interface {
	Predict(ctx context.Context, features models.FeatureVector) (models.RiskLevel, error)
}

// Explainer renders a human-readable explanation of a classified feature
// vector. Implementations must be deterministic and strictly
// backward-looking.
type Explainer interface {
	Explain(riskClass models.RiskLevel, features models.FeatureVector) string
}
