package panel

import (
	"sort"
	"time"

	"QuantShield/internal/domain/models"
	"QuantShield/internal/services/features"
)

// Rolling-window geometry, fixed by contract: ~6 months of trading days
// per window, advanced ~1 month at a time.
const (
	WindowLength = 126
	StepSize     = 21
)

// Portfolio is one input series for panel construction. Components and
// Weights are optional; without them every row of that portfolio falls
// back to a diversification ratio of 1.0.
type Portfolio struct {
	ID         string
	Returns    models.ReturnSeries
	Components *models.ReturnTable
	Weights    models.WeightMap
}

// Skip records a portfolio excluded from the panel and why.
type Skip struct {
	PortfolioID string
	Err         error
}

// Report summarizes one panel build. An empty panel (zero rows) is a valid
// result; callers must check Rows.
type Report struct {
	Rows            int
	Portfolios      int
	Skipped         []Skip
	WindowsDegraded int // windows that lost component data to misalignment
}

// Build slides fixed-length windows over each portfolio's return series,
// computes the feature vector per window, assigns the rule-based label and
// collects the rows into a flat panel. Portfolios shorter than
// WindowLength are skipped and reported, never fatal. Row order is input
// portfolio order crossed with ascending window order.
func Build(portfolios []Portfolio) (models.Panel, Report) {
	rows := models.Panel{}
	report := Report{Portfolios: len(portfolios)}

	for _, p := range portfolios {
		n := p.Returns.Len()
		if n < WindowLength {
			report.Skipped = append(report.Skipped, Skip{
				PortfolioID: p.ID,
				Err:         &features.InsufficientHistoryError{PortfolioID: p.ID, Have: n, Need: WindowLength},
			})
			continue
		}

		for start := 0; start+WindowLength <= n; start += StepSize {
			window := p.Returns.Window(start, start+WindowLength)

			comps, aligned := componentWindow(p, window)
			if p.Components != nil && comps == nil && !aligned {
				report.WindowsDegraded++
			}

			weights := p.Weights
			if comps == nil {
				weights = nil
			}
			fv, err := features.Compute(window, comps, weights)
			if err != nil {
				// Windows are non-empty by construction; treat a failure
				// as fatal for this portfolio only.
				report.Skipped = append(report.Skipped, Skip{PortfolioID: p.ID, Err: err})
				break
			}

			vol := fv.AnnualizedVolatility
			var95 := fv.HistoricalVaR95
			maxDD := fv.MaxDrawdown
			rows = append(rows, models.PanelRow{
				PortfolioID: p.ID,
				WindowStart: window.Dates[0],
				WindowEnd:   window.Dates[len(window.Dates)-1],
				Vol:         vol,
				VaR95:       var95,
				MaxDD:       maxDD,
				DivRatio:    fv.DivRatioOr(1.0),
				Label:       AssignLabel(vol, var95, maxDD),
			})
		}
	}

	report.Rows = len(rows)
	return rows, report
}

// componentWindow slices the portfolio's component table to the rows that
// align with the window's date range. Slicing is by integer offsets on the
// component table's own date axis; when the table does not cover the full
// window the build degrades to "no component data" for that window instead
// of failing. The second return value is false only on misalignment.
func componentWindow(p Portfolio, window models.ReturnSeries) (*models.ReturnTable, bool) {
	if p.Components == nil || p.Weights == nil {
		return nil, true
	}

	comps := p.Components
	offset := dateIndex(comps.Dates, window.Dates[0])
	if offset < 0 || offset+window.Len() > comps.Rows() {
		return nil, false
	}
	if !comps.Dates[offset+window.Len()-1].Equal(window.Dates[len(window.Dates)-1]) {
		return nil, false
	}
	sliced := comps.Window(offset, offset+window.Len())
	return &sliced, true
}

// dateIndex binary-searches for d in an ascending date axis, returning -1
// when absent.
func dateIndex(dates []time.Time, d time.Time) int {
	i := sort.Search(len(dates), func(j int) bool { return !dates[j].Before(d) })
	if i < len(dates) && dates[i].Equal(d) {
		return i
	}
	return -1
}
