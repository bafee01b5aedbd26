package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartYield summarizes print outcomes for one part over a period.
type PartYield struct {
	PartID            string          `json:"part_id"`
	PartName          string          `json:"part_name"`
	TotalRuns         int             `json:"total_runs"`
	SuccessfulRuns    int             `json:"successful_runs"`
	FailedRuns        int             `json:"failed_runs"`
	UnitsProduced     int             `json:"units_produced"`
	MaterialUsedGrams decimal.Decimal `json:"material_used_grams"`
	SuccessRate       decimal.Decimal `json:"success_rate"` // 0..1, zero when no runs
}

// DashboardStats is the landing-page summary.
type DashboardStats struct {
	PendingOrders      int `json:"pending_orders"`
	InProductionOrders int `json:"in_production_orders"`
	CompletedOrders    int `json:"completed_orders"`
	LowStockParts      int `json:"low_stock_parts"`
	ActivePrinters     int `json:"active_printers"`
	TotalPrinters      int `json:"total_printers"`
	OpenDemandParts    int `json:"open_demand_parts"`
}

// ReportingService computes read-only aggregates over the print log and the
// order book. Nothing here mutates state.
type ReportingService interface {
	GetPartYields(ctx context.Context, since time.Time) ([]PartYield, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

type reportingService struct {
	pool *pgxpool.Pool
	inv  InventoryService
}

func NewReportingService(pool *pgxpool.Pool, inv InventoryService) ReportingService {
	return &reportingService{pool: pool, inv: inv}
}

func (s *reportingService) GetPartYields(ctx context.Context, since time.Time) ([]PartYield, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.part_id, p.name,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE l.outcome = 'success'),
		       COUNT(*) FILTER (WHERE l.outcome = 'failed'),
		       COALESCE(SUM(l.quantity_printed) FILTER (WHERE l.outcome = 'success'), 0),
		       COALESCE(SUM(l.material_grams), 0)
		FROM print_log l
		JOIN parts p ON p.id = l.part_id
		WHERE l.completed_at >= $1
		GROUP BY l.part_id, p.name
		ORDER BY p.name
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query part yields: %w", err)
	}
	defer rows.Close()

	var yields []PartYield
	for rows.Next() {
		var y PartYield
		if err := rows.Scan(&y.PartID, &y.PartName, &y.TotalRuns, &y.SuccessfulRuns,
			&y.FailedRuns, &y.UnitsProduced, &y.MaterialUsedGrams); err != nil {
			return nil, fmt.Errorf("failed to scan part yield: %w", err)
		}
		if y.TotalRuns > 0 {
			y.SuccessRate = decimal.NewFromInt(int64(y.SuccessfulRuns)).
				Div(decimal.NewFromInt(int64(y.TotalRuns))).Round(4)
		}
		yields = append(yields, y)
	}
	return yields, rows.Err()
}

func (s *reportingService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_production'),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM production_orders
	`).Scan(&stats.PendingOrders, &stats.InProductionOrders, &stats.CompletedOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to query order counts: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status IN ('idle', 'printing'))
		FROM printers
	`).Scan(&stats.TotalPrinters, &stats.ActivePrinters)
	if err != nil {
		return nil, fmt.Errorf("failed to query printer counts: %w", err)
	}

	low, err := s.inv.GetLowStockParts(ctx)
	if err != nil {
		return nil, err
	}
	stats.LowStockParts = len(low)

	// Parts with open allocation lines on active orders, same filter the
	// demand aggregator uses.
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT a.part_id)
		FROM order_part_allocations a
		JOIN production_orders o ON o.id = a.production_order_id
		WHERE o.status <> 'cancelled'
		  AND a.status IN ('pending', 'partially_allocated')
	`).Scan(&stats.OpenDemandParts)
	if err != nil {
		return nil, fmt.Errorf("failed to query open demand: %w", err)
	}

	return &stats, nil
}
