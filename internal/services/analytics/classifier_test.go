package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
	"QuantShield/pkg/config"
)

func classifierConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Model.URL = url
	cfg.Model.Timeout = time.Second
	cfg.Model.RetryAttempts = 1
	return cfg
}

func TestHTTPClassifierPredict(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(predictResponse{RiskClass: "High", Model: "rf", Confidence: 0.93})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(classifierConfig(srv.URL))
	dr := 1.2
	level, err := c.Predict(context.Background(), models.FeatureVector{
		AnnualizedVolatility: 0.25,
		HistoricalVaR95:      0.04,
		MaxDrawdown:          0.30,
		DiversificationRatio: &dr,
	})
	require.NoError(t, err)
	require.Equal(t, models.RiskHigh, level)

	require.Equal(t, models.FeatureColumns, got.Columns)
	require.Equal(t, []float64{0.25, 0.04, 0.30, 1.2}, got.Features)
}

func TestHTTPClassifierFillsMissingDivRatio(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(predictResponse{RiskClass: "Low"})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(classifierConfig(srv.URL))
	_, err := c.Predict(context.Background(), models.FeatureVector{AnnualizedVolatility: 0.05})
	require.NoError(t, err)
	require.Equal(t, 1.0, got.Features[3])
}

func TestHTTPClassifierRejectsUnknownClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(predictResponse{RiskClass: "Extreme"})
	}))
	defer srv.Close()

	c := NewHTTPClassifier(classifierConfig(srv.URL))
	_, err := c.Predict(context.Background(), models.FeatureVector{})
	require.ErrorContains(t, err, "unknown risk class")
}

func TestHTTPClassifierRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(predictResponse{RiskClass: "Medium"})
	}))
	defer srv.Close()

	cfg := classifierConfig(srv.URL)
	cfg.Model.RetryAttempts = 3
	c := NewHTTPClassifier(cfg)

	level, err := c.Predict(context.Background(), models.FeatureVector{})
	require.NoError(t, err)
	require.Equal(t, models.RiskMedium, level)
	require.Equal(t, 2, calls)
}

func TestHTTPClassifierServiceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // closed before use

	c := NewHTTPClassifier(classifierConfig(srv.URL))
	_, err := c.Predict(context.Background(), models.FeatureVector{})
	require.Error(t, err)
}
