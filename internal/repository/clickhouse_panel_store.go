package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuantShield/internal/domain/models"
	pkgch "QuantShield/pkg/clickhouse"
	applogger "QuantShield/pkg/logger"
)

// CHPanelStore persists labeled panel builds in ClickHouse. Each build is
// stamped with built_at; reads always serve the newest build, so stale
// builds are replaced logically and reclaimed by table TTL.
type CHPanelStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPanelStore(ch *pkgch.Client, table string) *CHPanelStore {
	return &CHPanelStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPanelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPanelStore) ReplacePanel(ctx context.Context, rows models.Panel, builtAt time.Time) error {
	if len(rows) == 0 {
		return fmt.Errorf("refusing to store empty panel")
	}
	start := time.Now()

	const chunkSize = 2000
	for lo := 0; lo < len(rows); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range rows[lo:hi] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				builtAt,
				r.PortfolioID,
				r.WindowStart,
				r.WindowEnd,
				r.Vol,
				r.VaR95,
				r.MaxDD,
				r.DivRatio,
				string(r.Label),
			)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (built_at, portfolio_id, window_start, window_end, vol, var95, max_dd, div_ratio, label) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse panel insert error",
					applogger.String("table", s.table),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store panel: %w", err)
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse panel stored",
			applogger.String("table", s.table),
			applogger.Int("rows", len(rows)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHPanelStore) LatestPanel(ctx context.Context, limit int) (models.Panel, error) {
	stmt := fmt.Sprintf(`
        SELECT portfolio_id, window_start, window_end, vol, var95, max_dd, div_ratio, label
        FROM %s
        WHERE built_at = (SELECT max(built_at) FROM %s)
        ORDER BY window_end ASC
        LIMIT ?
    `, s.table, s.table)

	rows, err := s.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse panel query error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest panel: %w", err)
	}
	defer rows.Close()

	out := make(models.Panel, 0, 1024)
	for rows.Next() {
		var r models.PanelRow
		var label string
		if err := rows.Scan(&r.PortfolioID, &r.WindowStart, &r.WindowEnd, &r.Vol, &r.VaR95, &r.MaxDD, &r.DivRatio, &label); err != nil {
			return nil, fmt.Errorf("scan panel row: %w", err)
		}
		r.Label = models.RiskLevel(label)
		out = append(out, r)
	}
	return out, rows.Err()
}
