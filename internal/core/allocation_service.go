package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AllocationService moves allocation lines through their state machine:
//
//	pending → partially_allocated → allocated
//
// Lines only move forward while the order is active; cancellation zeroes them
// and returns the reserved stock. Allocation passes are idempotent: with no
// new inventory a second pass allocates nothing further.
type AllocationService interface {
	// CreateAllocationsTx inserts one pending line per part in the product's
	// bill of materials, inside the caller's order-creation transaction.
	CreateAllocationsTx(ctx context.Context, tx pgx.Tx, orderID, productID string, quantity int) error

	// AllocateOrder greedily satisfies a single order's open lines from
	// available stock.
	AllocateOrder(ctx context.Context, orderID, actor string) error

	// AllocateAll satisfies every open line across all active orders, most
	// urgent first. Safe to call concurrently and repeatedly: passes
	// serialize on the selected allocation rows, and claims on the
	// inventory row per part.
	AllocateAll(ctx context.Context, actor string) error

	// ReleaseOrderTx undoes an order's allocations on cancellation: releases
	// exactly what was reserved, then zeroes every line.
	ReleaseOrderTx(ctx context.Context, tx pgx.Tx, orderID, actor string) error

	GetAllocations(ctx context.Context, orderID string) ([]Allocation, error)
}

type allocationService struct {
	pool *pgxpool.Pool
	inv  InventoryService
}

func NewAllocationService(pool *pgxpool.Pool, inv InventoryService) AllocationService {
	return &allocationService{pool: pool, inv: inv}
}

func (s *allocationService) CreateAllocationsTx(ctx context.Context, tx pgx.Tx, orderID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("allocation quantity must be positive, got %d", quantity)
	}

	rows, err := tx.Query(ctx,
		"SELECT part_id FROM product_parts WHERE product_id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to query product parts: %w", err)
	}
	var partIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan product part: %w", err)
		}
		partIDs = append(partIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product parts: %w", err)
	}
	if len(partIDs) == 0 {
		return fmt.Errorf("product %s has no parts in its bill of materials", productID)
	}

	// 1:1 bill of materials: each product unit needs one of each part,
	// in finished-part units.
	for _, partID := range partIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_part_allocations (production_order_id, part_id, quantity_needed, quantity_allocated, status)
			VALUES ($1, $2, $3, 0, 'pending')
		`, orderID, partID, quantity)
		if err != nil {
			return fmt.Errorf("failed to insert allocation for part %s: %w", partID, err)
		}
	}
	return nil
}

// openLine is an allocation line eligible for an allocation pass.
type openLine struct {
	id     string
	partID string
	want   int
}

func (s *allocationService) AllocateOrder(ctx context.Context, orderID, actor string) error {
	return s.allocate(ctx, actor, "AND a.production_order_id = $1", orderID)
}

func (s *allocationService) AllocateAll(ctx context.Context, actor string) error {
	return s.allocate(ctx, actor, "")
}

// allocate runs one greedy pass over open lines, most urgent order first.
// Locking the selected lines keeps a concurrent pass from acting on a stale
// remaining want: it blocks until this pass commits, then re-reads the rows.
func (s *allocationService) allocate(ctx context.Context, actor, extraFilter string, extraArgs ...any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin allocation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT a.id, a.part_id, a.quantity_needed - a.quantity_allocated
		FROM order_part_allocations a
		JOIN production_orders o ON o.id = a.production_order_id
		WHERE o.status IN ('pending', 'in_production')
		  AND a.status IN ('pending', 'partially_allocated')
		  AND a.quantity_needed > a.quantity_allocated
		  ` + extraFilter + `
		ORDER BY CASE o.priority WHEN 'critical' THEN 0 WHEN 'rush' THEN 1 ELSE 2 END,
		         o.due_date ASC NULLS LAST,
		         o.created_at ASC,
		         a.created_at ASC
		FOR UPDATE OF a
	`
	rows, err := tx.Query(ctx, query, extraArgs...)
	if err != nil {
		return fmt.Errorf("failed to query open allocation lines: %w", err)
	}
	var lines []openLine
	for rows.Next() {
		var l openLine
		if err := rows.Scan(&l.id, &l.partID, &l.want); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan allocation line: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating allocation lines: %w", err)
	}

	for _, line := range lines {
		if err := s.allocateLineTx(ctx, tx, line, actor); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// allocateLineTx claims min(want, available) for one line. The inventory row
// lock serializes concurrent passes racing on the same part.
func (s *allocationService) allocateLineTx(ctx context.Context, tx pgx.Tx, line openLine, actor string) error {
	var onHand, reserved int
	err := tx.QueryRow(ctx, `
		SELECT quantity_on_hand, quantity_reserved
		FROM inventory
		WHERE part_id = $1
		FOR UPDATE
	`, line.partID).Scan(&onHand, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // no inventory row yet, nothing to claim
		}
		return fmt.Errorf("failed to lock inventory for part %s: %w", line.partID, err)
	}

	available := onHand - reserved
	if available <= 0 {
		return nil
	}
	give := line.want
	if give > available {
		give = available
	}

	var needed, allocated int
	err = tx.QueryRow(ctx, `
		UPDATE order_part_allocations
		SET quantity_allocated = quantity_allocated + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING quantity_needed, quantity_allocated
	`, give, line.id).Scan(&needed, &allocated)
	if err != nil {
		return fmt.Errorf("failed to update allocation %s: %w", line.id, err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE order_part_allocations SET status = $1 WHERE id = $2",
		allocationStatusFor(allocated, needed), line.id)
	if err != nil {
		return fmt.Errorf("failed to update allocation status for %s: %w", line.id, err)
	}

	if err := s.inv.ReserveTx(ctx, tx, line.partID, give,
		fmt.Sprintf("Allocated %d to order allocation %s", give, line.id), actor); err != nil {
		return err
	}
	return nil
}

func (s *allocationService) ReleaseOrderTx(ctx context.Context, tx pgx.Tx, orderID, actor string) error {
	rows, err := tx.Query(ctx, `
		SELECT id, part_id, quantity_allocated
		FROM order_part_allocations
		WHERE production_order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("failed to query allocations for order %s: %w", orderID, err)
	}
	type relLine struct {
		id        string
		partID    string
		allocated int
	}
	var lines []relLine
	for rows.Next() {
		var l relLine
		if err := rows.Scan(&l.id, &l.partID, &l.allocated); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan allocation for release: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating allocations for release: %w", err)
	}

	for _, l := range lines {
		if l.allocated > 0 {
			if err := s.inv.ReleaseTx(ctx, tx, l.partID, l.allocated,
				fmt.Sprintf("Order %s cancelled", orderID), actor); err != nil {
				return err
			}
		}
		// Zeroed even when nothing was allocated: the line must not surface
		// as open demand once the order is cancelled.
		_, err := tx.Exec(ctx, `
			UPDATE order_part_allocations
			SET quantity_allocated = 0, status = 'pending', updated_at = NOW()
			WHERE id = $1
		`, l.id)
		if err != nil {
			return fmt.Errorf("failed to zero allocation %s: %w", l.id, err)
		}
	}
	return nil
}

func (s *allocationService) GetAllocations(ctx context.Context, orderID string) ([]Allocation, error) {
	return fetchAllocations(ctx, s.pool, orderID)
}

func fetchAllocations(ctx context.Context, q pgxConn, orderID string) ([]Allocation, error) {
	rows, err := q.Query(ctx, `
		SELECT a.id, a.production_order_id, a.part_id, p.name,
		       a.quantity_needed, a.quantity_allocated, a.status,
		       a.created_at, a.updated_at
		FROM order_part_allocations a
		JOIN parts p ON p.id = a.part_id
		WHERE a.production_order_id = $1
		ORDER BY p.name
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var allocations []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.ProductionOrderID, &a.PartID, &a.PartName,
			&a.QuantityNeeded, &a.QuantityAllocated, &a.Status,
			&a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}
