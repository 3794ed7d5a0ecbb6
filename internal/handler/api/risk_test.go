package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
	icache "QuantShield/internal/service/cache"
	"QuantShield/internal/usecase"
	"QuantShield/pkg/config"
	xlogger "QuantShield/pkg/logger"
	"QuantShield/pkg/queue"
)

type stubPriceStore struct{ days int }

func (s *stubPriceStore) GetDailyCloses(_ context.Context, assets []string, _, _ time.Time) (models.PriceTable, error) {
	table := models.PriceTable{
		Dates:  make([]time.Time, s.days),
		Assets: assets,
		Prices: make(map[string][]float64, len(assets)),
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range table.Dates {
		table.Dates[i] = base.AddDate(0, 0, i)
	}
	for ai, asset := range assets {
		col := make([]float64, s.days)
		price := 100.0
		for i := range col {
			step := 0.002
			if (i+ai)%2 == 1 {
				step = -0.002
			}
			price *= 1 + step
			col[i] = price
		}
		table.Prices[asset] = col
	}
	return table, nil
}

type stubPanelStore struct{ rows models.Panel }

func (s *stubPanelStore) ReplacePanel(_ context.Context, rows models.Panel, _ time.Time) error {
	s.rows = rows
	return nil
}

func (s *stubPanelStore) LatestPanel(_ context.Context, limit int) (models.Panel, error) {
	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	return s.rows[:limit], nil
}

type stubClassifier struct{ class models.RiskLevel }

func (s stubClassifier) Predict(context.Context, models.FeatureVector) (models.RiskLevel, error) {
	return s.class, nil
}

type stubExplainer struct{}

func (stubExplainer) Explain(models.RiskLevel, models.FeatureVector) string { return "stub" }

type stubMetrics struct{}

func (stubMetrics) RecordMessageSent(string, string) {}
func (stubMetrics) RecordError(string)               {}
func (stubMetrics) RecordLastPrice(string, float64)  {}
func (stubMetrics) RecordLatency(string, float64)    {}
func (stubMetrics) RecordPrediction(string)          {}
func (stubMetrics) RecordPanelRows(int)              {}

type stubQueue struct {
	msgType string
	err     error
}

func (s *stubQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.msgType = msgType
	return nil
}

type stubHealth struct{ connected bool }

func (s stubHealth) IsConnected() bool { return s.connected }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

func newTestHandler(t *testing.T, jobs *stubQueue, connected bool) *RiskEchoHandler {
	t.Helper()
	prices := &stubPriceStore{days: 300}
	predictor := usecase.NewPredictor(prices, stubClassifier{class: models.RiskMedium}, stubExplainer{}, nil, 0, 0, stubMetrics{}, nil)
	panels := usecase.NewPanelService(prices, &stubPanelStore{}, stubMetrics{}, []config.PortfolioSpec{
		{ID: "balanced", Holdings: map[string]float64{"AAA": 0.6, "BBB": 0.4}},
	}, 0, nil)

	_, err := panels.Rebuild(context.Background())
	require.NoError(t, err)

	h := NewRiskEchoHandler(testLogger(t), predictor, panels, jobsOrNil(jobs), stubHealth{connected: connected})
	h.SetCache(icache.NewTTLCache())
	return h
}

func jobsOrNil(s *stubQueue) queue.QueueService {
	if s == nil {
		return nil
	}
	return s
}

func doRequest(h *RiskEchoHandler, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (int, json.RawMessage) {
	t.Helper()
	var env struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Status, env.Data
}

func TestPredictEndpoint(t *testing.T) {
	h := newTestHandler(t, nil, true)

	body := `{"name":"p1","reporting_date":"2024-09-30","holdings":[{"ticker":"AAA","weight":0.6},{"ticker":"BBB","weight":0.4}]}`
	rec := doRequest(h, http.MethodPost, "/api/v1/risk/predict", body)
	require.Equal(t, http.StatusOK, rec.Code)

	status, data := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, status)

	var res models.RiskAssessment
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, models.RiskMedium, res.RiskClass)
	require.Equal(t, "stub", res.Explanation)
	require.Greater(t, res.Metrics.AnnualizedVolatility, 0.0)
}

func TestPredictEndpointValidation(t *testing.T) {
	h := newTestHandler(t, nil, true)

	// missing holdings
	rec := doRequest(h, http.MethodPost, "/api/v1/risk/predict", `{"name":"p1","reporting_date":"2024-09-30"}`)
	status, _ := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestPredictEndpointBadWeights(t *testing.T) {
	h := newTestHandler(t, nil, true)

	body := `{"name":"p1","reporting_date":"2024-09-30","holdings":[{"ticker":"AAA","weight":0.4},{"ticker":"BBB","weight":0.4}]}`
	rec := doRequest(h, http.MethodPost, "/api/v1/risk/predict", body)

	status, data := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, string(data), "ERR_INVALID_WEIGHTS")
}

func TestPanelEndpoint(t *testing.T) {
	h := newTestHandler(t, nil, true)

	rec := doRequest(h, http.MethodGet, "/api/v1/panel?limit=5", "")
	status, data := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, status)

	var list struct {
		Rows  models.Panel `json:"rows"`
		Total int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Rows, 5)
	require.Equal(t, int64(5), list.Total)

	// second call is served from the response cache
	rec = doRequest(h, http.MethodGet, "/api/v1/panel?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status, _ = decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, status)
}

func TestFoldsEndpoint(t *testing.T) {
	h := newTestHandler(t, nil, true)

	rec := doRequest(h, http.MethodGet, "/api/v1/panel/folds?k=2", "")
	status, data := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusOK, status)

	var res struct {
		Rows  int               `json:"rows"`
		Folds []json.RawMessage `json:"folds"`
	}
	require.NoError(t, json.Unmarshal(data, &res))
	require.Greater(t, res.Rows, 0)
	require.Len(t, res.Folds, 2)
}

func TestRebuildEndpoint(t *testing.T) {
	q := &stubQueue{}
	h := newTestHandler(t, q, true)

	rec := doRequest(h, http.MethodPost, "/api/v1/panel/rebuild", `{"reason":"drift"}`)
	status, data := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, usecase.PanelRebuildType, q.msgType)

	var res map[string]string
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, "queued", res["status"])
	require.NotEmpty(t, res["job_id"])
}

func TestRebuildEndpointWithoutQueue(t *testing.T) {
	h := newTestHandler(t, nil, true)

	rec := doRequest(h, http.MethodPost, "/api/v1/panel/rebuild", `{"reason":"drift"}`)
	status, _ := decodeEnvelope(t, rec)
	require.Equal(t, http.StatusServiceUnavailable, status)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(t, nil, true)
	rec := doRequest(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)

	h = newTestHandler(t, nil, false)
	rec = doRequest(h, http.MethodGet, "/healthz", "")
	require.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestHealthEndpointStorageDown(t *testing.T) {
	h := newTestHandler(t, nil, true)
	h.SetDBHealth(func(context.Context) error { return context.DeadlineExceeded })

	rec := doRequest(h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"degraded"`)
}
