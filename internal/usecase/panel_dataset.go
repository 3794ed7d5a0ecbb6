package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	drepo "QuantShield/internal/domain/repository"
	"QuantShield/internal/domain/models"
	"QuantShield/internal/services/features"
	"QuantShield/internal/services/panel"
	"QuantShield/pkg/config"
	applogger "QuantShield/pkg/logger"
)

// ErrEmptyPanel is returned when a rebuild produced zero rows, for example
// when every configured portfolio was skipped.
var ErrEmptyPanel = errors.New("panel build produced no rows")

// PanelService builds, persists and serves the labeled training panel for
// the configured portfolio universe.
type PanelService struct {
	prices      drepo.PriceStore
	store       drepo.PanelStore
	metrics     drepo.Metrics
	portfolios  []config.PortfolioSpec
	historyDays int
	l           *applogger.Logger
}

// NewPanelService creates a PanelService.
func NewPanelService(
	prices drepo.PriceStore,
	store drepo.PanelStore,
	metrics drepo.Metrics,
	portfolios []config.PortfolioSpec,
	historyDays int,
	l *applogger.Logger,
) *PanelService {
	if historyDays <= 0 {
		historyDays = 3 * 365
	}
	return &PanelService{
		prices:      prices,
		store:       store,
		metrics:     metrics,
		portfolios:  portfolios,
		historyDays: historyDays,
		l:           l,
	}
}

// Rebuild regenerates the whole panel from price history and atomically
// replaces the stored copy. A portfolio that fails aggregation or lacks
// history is skipped and reported; only an entirely empty result is an
// error.
func (s *PanelService) Rebuild(ctx context.Context) (panel.Report, error) {
	start := time.Now()
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -s.historyDays)

	inputs := make([]panel.Portfolio, 0, len(s.portfolios))
	var preSkipped []panel.Skip
	for _, spec := range s.portfolios {
		input, err := s.loadPortfolio(ctx, spec, from, to)
		if err != nil {
			// Per-portfolio isolation: log, record, move on.
			preSkipped = append(preSkipped, panel.Skip{PortfolioID: spec.ID, Err: err})
			s.metrics.RecordError("panel_portfolio")
			if s.l != nil {
				s.l.Warn("panel portfolio skipped",
					applogger.String("portfolio", spec.ID),
					applogger.Error(err),
				)
			}
			continue
		}
		inputs = append(inputs, input)
	}

	rows, report := panel.Build(inputs)
	report.Portfolios = len(s.portfolios)
	report.Skipped = append(preSkipped, report.Skipped...)

	if len(rows) == 0 {
		return report, ErrEmptyPanel
	}

	panel.SortByWindowEnd(rows)
	builtAt := time.Now().UTC()
	if err := s.store.ReplacePanel(ctx, rows, builtAt); err != nil {
		return report, fmt.Errorf("persist panel: %w", err)
	}

	s.metrics.RecordPanelRows(len(rows))
	s.metrics.RecordLatency("panel_rebuild", time.Since(start).Seconds())
	if s.l != nil {
		s.l.Info("panel rebuilt",
			applogger.Int("rows", report.Rows),
			applogger.Int("portfolios", report.Portfolios),
			applogger.Int("skipped", len(report.Skipped)),
			applogger.Int("windows_degraded", report.WindowsDegraded),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return report, nil
}

// loadPortfolio turns one configured portfolio into panel input: aligned
// prices, per-asset returns, strictly validated weighted aggregation.
func (s *PanelService) loadPortfolio(ctx context.Context, spec config.PortfolioSpec, from, to time.Time) (panel.Portfolio, error) {
	if len(spec.Holdings) == 0 {
		return panel.Portfolio{}, fmt.Errorf("portfolio %s has no holdings", spec.ID)
	}
	assets := make([]string, 0, len(spec.Holdings))
	weights := make(models.WeightMap, len(spec.Holdings))
	for ticker, w := range spec.Holdings {
		assets = append(assets, ticker)
		weights[ticker] = w
	}
	sort.Strings(assets)

	prices, err := s.prices.GetDailyCloses(ctx, assets, from, to)
	if err != nil {
		return panel.Portfolio{}, fmt.Errorf("load prices: %w", err)
	}
	rets, err := features.DailyReturns(prices)
	if err != nil {
		return panel.Portfolio{}, err
	}

	// Training side uses the strict sum-to-1 check.
	pr, err := features.NewAggregator(rets).Aggregate(weights)
	if err != nil {
		return panel.Portfolio{}, err
	}

	return panel.Portfolio{
		ID:         spec.ID,
		Returns:    pr.Daily,
		Components: &rets,
		Weights:    weights,
	}, nil
}

// Latest returns up to limit rows of the newest stored panel, ascending by
// window end.
func (s *PanelService) Latest(ctx context.Context, limit int) (models.Panel, error) {
	if limit <= 0 {
		limit = 1000
	}
	return s.store.LatestPanel(ctx, limit)
}

// Split loads the newest panel and derives k forward-chaining folds over
// it. The returned panel is the sorted row set the fold indexes refer to.
func (s *PanelService) Split(ctx context.Context, limit, k int) (models.Panel, []panel.Fold, error) {
	rows, err := s.Latest(ctx, limit)
	if err != nil {
		return nil, nil, err
	}
	folds, err := panel.ForwardChainingFolds(len(rows), k)
	if err != nil {
		return nil, nil, err
	}
	return rows, folds, nil
}
