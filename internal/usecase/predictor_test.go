package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
	"QuantShield/internal/services/features"
	pkgcache "QuantShield/pkg/cache"
)

// fakePriceStore serves a synthetic aligned price table.
type fakePriceStore struct {
	days int
	err  error
}

func (f *fakePriceStore) GetDailyCloses(_ context.Context, assets []string, from, to time.Time) (models.PriceTable, error) {
	if f.err != nil {
		return models.PriceTable{}, f.err
	}
	table := models.PriceTable{
		Dates:  make([]time.Time, f.days),
		Assets: assets,
		Prices: make(map[string][]float64, len(assets)),
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range table.Dates {
		table.Dates[i] = base.AddDate(0, 0, i)
	}
	for ai, asset := range assets {
		col := make([]float64, f.days)
		price := 100.0 + float64(ai)
		for i := range col {
			step := 0.001
			if (i+ai)%2 == 1 {
				step = -0.001
			}
			price *= 1 + step
			col[i] = price
		}
		table.Prices[asset] = col
	}
	return table, nil
}

type fakeClassifier struct {
	class models.RiskLevel
	err   error
	calls int
}

func (f *fakeClassifier) Predict(context.Context, models.FeatureVector) (models.RiskLevel, error) {
	f.calls++
	return f.class, f.err
}

type fakeExplainer struct{}

func (fakeExplainer) Explain(riskClass models.RiskLevel, _ models.FeatureVector) string {
	return "explained " + string(riskClass)
}

type fakeMetrics struct {
	errors      map[string]int
	latencies   map[string]int
	predictions map[string]int
	panelRows   int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		errors:      map[string]int{},
		latencies:   map[string]int{},
		predictions: map[string]int{},
	}
}

func (m *fakeMetrics) RecordMessageSent(string, string)   {}
func (m *fakeMetrics) RecordError(kind string)            { m.errors[kind]++ }
func (m *fakeMetrics) RecordLastPrice(string, float64)    {}
func (m *fakeMetrics) RecordLatency(op string, _ float64) { m.latencies[op]++ }
func (m *fakeMetrics) RecordPrediction(riskClass string)  { m.predictions[riskClass]++ }
func (m *fakeMetrics) RecordPanelRows(n int)              { m.panelRows = n }

func predictRequest() models.PredictRequest {
	return models.PredictRequest{
		Name:          "test-portfolio",
		ReportingDate: "2024-12-31",
		Holdings: []models.Holding{
			{Ticker: "AAA", Weight: 0.6},
			{Ticker: "BBB", Weight: 0.4},
		},
	}
}

func TestPredictorHappyPath(t *testing.T) {
	cls := &fakeClassifier{class: models.RiskLow}
	m := newFakeMetrics()
	p := NewPredictor(&fakePriceStore{days: 160}, cls, fakeExplainer{}, nil, 0, 0, m, nil)

	res, err := p.Predict(context.Background(), predictRequest())
	require.NoError(t, err)
	require.Equal(t, models.RiskLow, res.RiskClass)
	require.Equal(t, "explained Low", res.Explanation)
	require.NotNil(t, res.Metrics.DiversificationRatio)
	require.GreaterOrEqual(t, res.Metrics.AnnualizedVolatility, 0.0)
	require.False(t, res.Timestamp.IsZero())

	require.Equal(t, 1, cls.calls)
	require.Equal(t, 1, m.predictions["Low"])
	require.Equal(t, 1, m.latencies["predict"])
}

func TestPredictorCacheHit(t *testing.T) {
	cls := &fakeClassifier{class: models.RiskMedium}
	m := newFakeMetrics()
	cache := pkgcache.NewMemoryCache()
	defer cache.Close()

	p := NewPredictor(&fakePriceStore{days: 160}, cls, fakeExplainer{}, cache, time.Minute, 0, m, nil)

	first, err := p.Predict(context.Background(), predictRequest())
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), predictRequest())
	require.NoError(t, err)

	require.Equal(t, 1, cls.calls)
	require.Equal(t, first.RiskClass, second.RiskClass)
	require.Equal(t, first.Explanation, second.Explanation)
	require.Equal(t, 1, m.latencies["predict_cache_hit"])
}

func TestPredictorCacheKeyIgnoresHoldingOrder(t *testing.T) {
	cls := &fakeClassifier{class: models.RiskMedium}
	cache := pkgcache.NewMemoryCache()
	defer cache.Close()
	p := NewPredictor(&fakePriceStore{days: 160}, cls, fakeExplainer{}, cache, time.Minute, 0, newFakeMetrics(), nil)

	req := predictRequest()
	_, err := p.Predict(context.Background(), req)
	require.NoError(t, err)

	req.Holdings = []models.Holding{req.Holdings[1], req.Holdings[0]}
	_, err = p.Predict(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, cls.calls)
}

func TestPredictorInsufficientHistory(t *testing.T) {
	p := NewPredictor(&fakePriceStore{days: 50}, &fakeClassifier{class: models.RiskLow}, fakeExplainer{}, nil, 0, 0, newFakeMetrics(), nil)

	_, err := p.Predict(context.Background(), predictRequest())
	var ih *features.InsufficientHistoryError
	require.ErrorAs(t, err, &ih)
	require.Equal(t, 49, ih.Have)
}

func TestPredictorSoftWeightValidation(t *testing.T) {
	p := NewPredictor(&fakePriceStore{days: 160}, &fakeClassifier{class: models.RiskLow}, fakeExplainer{}, nil, 0, 0, newFakeMetrics(), nil)

	req := predictRequest()
	req.Holdings = []models.Holding{
		{Ticker: "AAA", Weight: 0.5},
		{Ticker: "BBB", Weight: 0.40},
	}
	// 0.90 is below the acceptance window
	_, err := p.Predict(context.Background(), req)
	var iw *features.InvalidWeightsError
	require.ErrorAs(t, err, &iw)

	// 0.97 is accepted without renormalization
	req.Holdings[1].Weight = 0.47
	_, err = p.Predict(context.Background(), req)
	require.NoError(t, err)
}

func TestPredictorModelOutageFallsBackToRuleLabel(t *testing.T) {
	cls := &fakeClassifier{err: errors.New("model service down")}
	m := newFakeMetrics()
	p := NewPredictor(&fakePriceStore{days: 160}, cls, fakeExplainer{}, nil, 0, 0, m, nil)

	res, err := p.Predict(context.Background(), predictRequest())
	require.NoError(t, err)
	require.True(t, res.RiskClass.IsValid())
	require.Equal(t, 1, m.errors["predict_model"])
}

func TestPredictorPriceStoreError(t *testing.T) {
	p := NewPredictor(&fakePriceStore{err: errors.New("clickhouse down")}, &fakeClassifier{}, fakeExplainer{}, nil, 0, 0, newFakeMetrics(), nil)
	_, err := p.Predict(context.Background(), predictRequest())
	require.ErrorContains(t, err, "load prices")
}

func TestParseReportingDate(t *testing.T) {
	got, err := parseReportingDate("2024-06-30")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), got)

	got, err = parseReportingDate("2024-06-30T12:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 12, got.UTC().Hour())

	_, err = parseReportingDate("not-a-date")
	require.Error(t, err)

	got, err = parseReportingDate("")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC(), got, time.Minute)
}
