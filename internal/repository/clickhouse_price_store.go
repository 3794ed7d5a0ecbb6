package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"QuantShield/internal/domain/models"
	pkgch "QuantShield/pkg/clickhouse"
	applogger "QuantShield/pkg/logger"
	"QuantShield/pkg/util"
)

// CHPriceStore implements PriceStore backed by the daily bars table. Rows
// come back sparse per symbol; pivoting and gap-filling happen here so the
// feature pipeline only ever sees a dense aligned table.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, table string) *CHPriceStore {
	return &CHPriceStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) GetDailyCloses(ctx context.Context, assets []string, from, to time.Time) (models.PriceTable, error) {
	start := time.Now()
	if len(assets) == 0 {
		return models.PriceTable{}, fmt.Errorf("no assets requested")
	}

	placeholders := make([]string, len(assets))
	args := make([]interface{}, 0, len(assets)+2)
	for i, a := range assets {
		placeholders[i] = "?"
		args = append(args, a)
	}
	args = append(args, from, to)

	stmt := fmt.Sprintf(`
        SELECT day, symbol, close
        FROM %s
        WHERE symbol IN (%s) AND day >= ? AND day <= ?
        ORDER BY day ASC
    `, s.table, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse daily_closes query error",
				applogger.String("table", s.table),
				applogger.Int("assets", len(assets)),
				applogger.Error(err),
			)
		}
		return models.PriceTable{}, fmt.Errorf("get daily closes: %w", err)
	}
	defer rows.Close()

	// observed[symbol][day] = close
	observed := make(map[string]map[time.Time]float64, len(assets))
	daySet := make(map[time.Time]struct{})
	for rows.Next() {
		var day time.Time
		var symbol string
		var close float64
		if err := rows.Scan(&day, &symbol, &close); err != nil {
			return models.PriceTable{}, fmt.Errorf("scan daily close: %w", err)
		}
		day = util.TruncateDay(day)
		if observed[symbol] == nil {
			observed[symbol] = make(map[time.Time]float64)
		}
		observed[symbol][day] = close
		daySet[day] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return models.PriceTable{}, fmt.Errorf("rows: %w", err)
	}

	table := pivotAndFill(assets, observed, daySet)
	if s.l != nil {
		s.l.Info("clickhouse daily_closes ok",
			applogger.String("table", s.table),
			applogger.Int("assets", table.Cols()),
			applogger.Int("rows", table.Rows()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return table, nil
}

// pivotAndFill builds the dense table: union date axis, forward-fill gaps,
// backward-fill leading gaps. Assets with no observations at all are
// omitted. Requested-asset order is preserved for the ones that survive.
func pivotAndFill(assets []string, observed map[string]map[time.Time]float64, daySet map[time.Time]struct{}) models.PriceTable {
	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := models.PriceTable{
		Dates:  dates,
		Prices: make(map[string][]float64),
	}
	for _, asset := range assets {
		obs := observed[asset]
		if len(obs) == 0 {
			continue
		}
		col := make([]float64, len(dates))
		// forward fill
		last := 0.0
		seen := false
		firstIdx := -1
		for i, d := range dates {
			if p, ok := obs[d]; ok {
				last = p
				if !seen {
					firstIdx = i
					seen = true
				}
			}
			col[i] = last
		}
		// backward fill the leading gap
		for i := 0; i < firstIdx; i++ {
			col[i] = col[firstIdx]
		}
		out.Assets = append(out.Assets, asset)
		out.Prices[asset] = col
	}
	return out
}
