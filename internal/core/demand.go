package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DemandOrder is one order still owed parts, as seen from a part's demand row.
type DemandOrder struct {
	OrderID        string        `json:"order_id"`
	Priority       OrderPriority `json:"priority"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	QuantityNeeded int           `json:"quantity_needed"` // still-unallocated units
	CreatedAt      time.Time     `json:"created_at"`
}

// Demand is the per-part production requirement: how many finished parts open
// orders still need, netted against available inventory.
type Demand struct {
	PartID             string        `json:"part_id"`
	PartName           string        `json:"part_name"`
	PrintTimeMinutes   int           `json:"print_time_minutes"`
	PartsPerPrint      int           `json:"parts_per_print"`
	TotalNeeded        int           `json:"total_needed"`
	AvailableInventory int           `json:"available_inventory"`
	Deficit            int           `json:"deficit"`
	PrintsRequired     int           `json:"prints_required"`
	Orders             []DemandOrder `json:"orders"`
}

// OpenAllocation is an unfinished allocation line joined with its order and
// part, the raw input to demand aggregation.
type OpenAllocation struct {
	PartID           string
	PartName         string
	PrintTimeMinutes int
	PartsPerPrint    int
	OrderID          string
	OrderPriority    OrderPriority
	OrderDueDate     *time.Time
	OrderCreatedAt   time.Time
	Unallocated      int
}

// AggregateDemand groups open allocation lines by part, nets each part's total
// against available inventory, and returns only parts with a positive deficit,
// most urgent first. available maps partID to on-hand minus reserved; negative
// values (over-reserved) count as zero available stock.
func AggregateDemand(lines []OpenAllocation, available map[string]int) []Demand {
	byPart := make(map[string]*Demand)
	var order []string

	for _, l := range lines {
		if l.Unallocated <= 0 {
			continue
		}
		d, ok := byPart[l.PartID]
		if !ok {
			avail := available[l.PartID]
			if avail < 0 {
				avail = 0
			}
			d = &Demand{
				PartID:             l.PartID,
				PartName:           l.PartName,
				PrintTimeMinutes:   l.PrintTimeMinutes,
				PartsPerPrint:      l.PartsPerPrint,
				AvailableInventory: avail,
			}
			byPart[l.PartID] = d
			order = append(order, l.PartID)
		}
		d.TotalNeeded += l.Unallocated
		d.Orders = append(d.Orders, DemandOrder{
			OrderID:        l.OrderID,
			Priority:       l.OrderPriority,
			DueDate:        l.OrderDueDate,
			QuantityNeeded: l.Unallocated,
			CreatedAt:      l.OrderCreatedAt,
		})
	}

	demands := make([]Demand, 0, len(byPart))
	for _, partID := range order {
		d := byPart[partID]
		d.Deficit = d.TotalNeeded - d.AvailableInventory
		if d.Deficit < 0 {
			d.Deficit = 0
		}
		if d.Deficit == 0 {
			continue
		}
		perPrint := d.PartsPerPrint
		if perPrint < 1 {
			perPrint = 1
		}
		d.PrintsRequired = (d.Deficit + perPrint - 1) / perPrint
		demands = append(demands, *d)
	}

	// Urgency of a part is its most urgent contributing order, not an average.
	sort.SliceStable(demands, func(i, j int) bool {
		pi, pj := minPriorityRank(demands[i].Orders), minPriorityRank(demands[j].Orders)
		if pi != pj {
			return pi < pj
		}
		di, dj := earliestDueDate(demands[i].Orders), earliestDueDate(demands[j].Orders)
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})
	return demands
}

func minPriorityRank(orders []DemandOrder) int {
	rank := PriorityRank(PriorityNormal)
	for _, o := range orders {
		if r := PriorityRank(o.Priority); r < rank {
			rank = r
		}
	}
	return rank
}

func earliestDueDate(orders []DemandOrder) *time.Time {
	var earliest *time.Time
	for _, o := range orders {
		if o.DueDate == nil {
			continue
		}
		if earliest == nil || o.DueDate.Before(*earliest) {
			earliest = o.DueDate
		}
	}
	return earliest
}

// ── Service ───────────────────────────────────────────────────────────────────

// DemandService recomputes part demand from current order and ledger state.
// Results are never cached: every call reflects the store as of the read.
type DemandService interface {
	ComputeDemand(ctx context.Context) ([]Demand, error)
}

type demandService struct {
	pool *pgxpool.Pool
}

func NewDemandService(pool *pgxpool.Pool) DemandService {
	return &demandService{pool: pool}
}

func (s *demandService) ComputeDemand(ctx context.Context) ([]Demand, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.part_id, p.name, p.print_time_minutes, p.parts_per_print,
		       a.production_order_id, o.priority, o.due_date, o.created_at,
		       a.quantity_needed - a.quantity_allocated
		FROM order_part_allocations a
		JOIN production_orders o ON o.id = a.production_order_id
		JOIN parts p ON p.id = a.part_id
		WHERE o.status <> 'cancelled'
		  AND a.status IN ('pending', 'partially_allocated')
		ORDER BY a.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open allocations: %w", err)
	}
	defer rows.Close()

	var lines []OpenAllocation
	for rows.Next() {
		var l OpenAllocation
		if err := rows.Scan(&l.PartID, &l.PartName, &l.PrintTimeMinutes, &l.PartsPerPrint,
			&l.OrderID, &l.OrderPriority, &l.OrderDueDate, &l.OrderCreatedAt, &l.Unallocated); err != nil {
			return nil, fmt.Errorf("failed to scan open allocation: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating open allocations: %w", err)
	}

	// One availability read per part, never per order.
	available := make(map[string]int)
	invRows, err := s.pool.Query(ctx,
		"SELECT part_id, quantity_on_hand - quantity_reserved FROM inventory")
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory availability: %w", err)
	}
	defer invRows.Close()
	for invRows.Next() {
		var partID string
		var avail int
		if err := invRows.Scan(&partID, &avail); err != nil {
			return nil, fmt.Errorf("failed to scan inventory availability: %w", err)
		}
		available[partID] = avail
	}
	if err := invRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory availability: %w", err)
	}

	return AggregateDemand(lines, available), nil
}
