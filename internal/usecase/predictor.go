package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"QuantShield/internal/domain/models"
	drepo "QuantShield/internal/domain/repository"
	domsvc "QuantShield/internal/domain/service"
	"QuantShield/internal/services/features"
	"QuantShield/internal/services/panel"
	pkgcache "QuantShield/pkg/cache"
	applogger "QuantShield/pkg/logger"
	"QuantShield/pkg/util"
)

const dateLayout = "2006-01-02"

// Predictor serves on-demand risk assessments: it loads price history for
// the submitted holdings, computes the feature vector over the most recent
// window and asks the model service for a class. Assessments are cached by
// a digest of the holdings plus reporting date.
type Predictor struct {
	prices     drepo.PriceStore
	classifier domsvc.Classifier
	explainer  domsvc.Explainer
	cache      pkgcache.Service
	cacheTTL   time.Duration
	metrics    drepo.Metrics
	lookback   int // calendar days of history to load
	l          *applogger.Logger
}

// NewPredictor creates a Predictor. cache may be nil to disable caching.
func NewPredictor(
	prices drepo.PriceStore,
	classifier domsvc.Classifier,
	explainer domsvc.Explainer,
	cache pkgcache.Service,
	cacheTTL time.Duration,
	lookbackDays int,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *Predictor {
	if lookbackDays <= 0 {
		// ~400 calendar days comfortably covers 127 trading days
		lookbackDays = 400
	}
	return &Predictor{
		prices:     prices,
		classifier: classifier,
		explainer:  explainer,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    metrics,
		lookback:   lookbackDays,
		l:          l,
	}
}

// Predict computes the risk assessment for one submitted portfolio.
// Weight validation is the lenient serving-side variant: the sum only has
// to land inside the soft acceptance window.
func (p *Predictor) Predict(ctx context.Context, req models.PredictRequest) (*models.RiskAssessment, error) {
	start := time.Now()

	asOf, err := parseReportingDate(req.ReportingDate)
	if err != nil {
		return nil, err
	}

	key := pkgcache.GenerateKey("predict", hashHoldings(req.Holdings, req.ReportingDate))
	if p.cache != nil {
		var cached models.RiskAssessment
		if err := p.cache.Get(ctx, key, &cached); err == nil {
			p.metrics.RecordLatency("predict_cache_hit", time.Since(start).Seconds())
			return &cached, nil
		}
	}

	weights := req.Weights()
	tickers := make([]string, 0, len(weights))
	for t := range weights {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	from := asOf.AddDate(0, 0, -p.lookback)
	prices, err := p.prices.GetDailyCloses(ctx, tickers, from, asOf)
	if err != nil {
		p.metrics.RecordError("predict_prices")
		return nil, fmt.Errorf("load prices: %w", err)
	}

	rets, err := features.DailyReturns(prices)
	if err != nil {
		return nil, err
	}
	if rets.Rows() < panel.WindowLength {
		return nil, &features.InsufficientHistoryError{
			PortfolioID: req.Name,
			Have:        rets.Rows(),
			Need:        panel.WindowLength,
		}
	}

	agg := features.NewAggregator(rets)
	pr, err := agg.AggregateWithin(weights, features.SoftWeightMin, features.SoftWeightMax)
	if err != nil {
		return nil, err
	}

	// Score on the most recent full window only.
	n := pr.Daily.Len()
	window := pr.Daily.Window(n-panel.WindowLength, n)
	comps := rets.Window(n-panel.WindowLength, n)

	fv, err := features.Compute(window, &comps, weights)
	if err != nil {
		return nil, err
	}

	riskClass, err := p.classifier.Predict(ctx, fv)
	if err != nil {
		// Degrade to the rule-based label so serving survives a model
		// service outage.
		p.metrics.RecordError("predict_model")
		if p.l != nil {
			p.l.Warn("model service unavailable, using rule-based label",
				applogger.String("portfolio", req.Name),
				applogger.Error(err),
			)
		}
		riskClass = panel.AssignLabel(fv.AnnualizedVolatility, fv.HistoricalVaR95, fv.MaxDrawdown)
	}

	assessment := &models.RiskAssessment{
		RiskClass:   riskClass,
		Metrics:     fv,
		Explanation: p.explainer.Explain(riskClass, fv),
		Timestamp:   time.Now().UTC(),
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, assessment, p.cacheTTL); err != nil && p.l != nil {
			p.l.Warn("prediction cache set failed", applogger.Error(err))
		}
	}

	p.metrics.RecordPrediction(string(riskClass))
	p.metrics.RecordLatency("predict", time.Since(start).Seconds())
	return assessment, nil
}

func parseReportingDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	// Accept RFC3339 and unix-second stamps too.
	if t, ok := util.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid reporting_date %q", s)
}

// hashHoldings derives a stable digest from the holdings and reporting
// date, insensitive to holding order.
func hashHoldings(holdings []models.Holding, reportingDate string) string {
	parts := make([]string, len(holdings))
	for i, h := range holdings {
		parts[i] = fmt.Sprintf("%s=%.8f", h.Ticker, h.Weight)
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(reportingDate + "|" + strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
