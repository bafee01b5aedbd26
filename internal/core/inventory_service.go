package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn is satisfied by both *pgxpool.Pool and pgx.Tx, so ledger primitives
// can run standalone or inside a caller's transaction.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// InventoryService is the authoritative ledger of on-hand and reserved part
// counts. Every mutation is a single atomic SQL increment/decrement paired
// with an audit row, never an application-tier read-modify-write.
type InventoryService interface {
	// Adjust sets the absolute on-hand count and returns the previous value.
	// The change is always logged with the actor and reason.
	Adjust(ctx context.Context, partID string, newOnHand int, reason, actor string) (previous int, err error)

	// IncrementOnHand adds delta finished parts (the print completion path).
	IncrementOnHand(ctx context.Context, partID string, delta int, reason, actor string) error

	// Reserve commits delta units of stock to an order.
	Reserve(ctx context.Context, partID string, delta int, reason, actor string) error
	// Release returns delta reserved units to the pool, clamping at zero so
	// bookkeeping drift never crashes the write path.
	Release(ctx context.Context, partID string, delta int, reason, actor string) error

	// Available returns on-hand minus reserved. May be negative when
	// over-reserved; callers treat negative as zero available.
	Available(ctx context.Context, partID string) (int, error)

	GetStockLevels(ctx context.Context) ([]StockLevel, error)
	// GetLowStockParts returns stock levels strictly below their threshold.
	GetLowStockParts(ctx context.Context) ([]StockLevel, error)
	GetAdjustments(ctx context.Context, partID string, limit int) ([]InventoryAdjustment, error)

	// Tx-scoped variants, used by the order and allocation services to keep
	// ledger movements atomic with order state transitions.
	IncrementOnHandTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error
	ReserveTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error
	ReleaseTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

// ensureRow creates the part's inventory row if it does not exist yet.
func ensureRow(ctx context.Context, q pgxConn, partID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO inventory (part_id, quantity_on_hand, quantity_reserved)
		VALUES ($1, 0, 0)
		ON CONFLICT (part_id) DO NOTHING
	`, partID)
	if err != nil {
		return fmt.Errorf("failed to ensure inventory row for part %s: %w", partID, err)
	}
	return nil
}

func (s *inventoryService) Adjust(ctx context.Context, partID string, newOnHand int, reason, actor string) (int, error) {
	if newOnHand < 0 {
		return 0, fmt.Errorf("on-hand quantity cannot be negative, got %d", newOnHand)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureRow(ctx, tx, partID); err != nil {
		return 0, err
	}

	var previous int
	err = tx.QueryRow(ctx, `
		WITH old AS (
			SELECT quantity_on_hand FROM inventory WHERE part_id = $1 FOR UPDATE
		)
		UPDATE inventory
		SET quantity_on_hand = $2, last_updated = NOW()
		WHERE part_id = $1
		RETURNING (SELECT quantity_on_hand FROM old)
	`, partID, newOnHand).Scan(&previous)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust inventory for part %s: %w", partID, err)
	}

	if err := insertAdjustment(ctx, tx, partID, previous, newOnHand, AdjustManual, reason, actor); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit inventory adjustment: %w", err)
	}
	return previous, nil
}

func (s *inventoryService) IncrementOnHand(ctx context.Context, partID string, delta int, reason, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.IncrementOnHandTx(ctx, tx, partID, delta, reason, actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *inventoryService) IncrementOnHandTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error {
	if delta <= 0 {
		return fmt.Errorf("increment must be positive, got %d", delta)
	}
	if err := ensureRow(ctx, tx, partID); err != nil {
		return err
	}

	var newQty int
	err := tx.QueryRow(ctx, `
		UPDATE inventory
		SET quantity_on_hand = quantity_on_hand + $1, last_updated = NOW()
		WHERE part_id = $2
		RETURNING quantity_on_hand
	`, delta, partID).Scan(&newQty)
	if err != nil {
		return fmt.Errorf("failed to increment on-hand for part %s: %w", partID, err)
	}

	return insertAdjustment(ctx, tx, partID, newQty-delta, newQty, AdjustPrintComplete, reason, actor)
}

func (s *inventoryService) Reserve(ctx context.Context, partID string, delta int, reason, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ReserveTx(ctx, tx, partID, delta, reason, actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *inventoryService) ReserveTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error {
	if delta <= 0 {
		return fmt.Errorf("reservation delta must be positive, got %d", delta)
	}
	if err := ensureRow(ctx, tx, partID); err != nil {
		return err
	}

	var newReserved int
	err := tx.QueryRow(ctx, `
		UPDATE inventory
		SET quantity_reserved = quantity_reserved + $1, last_updated = NOW()
		WHERE part_id = $2
		RETURNING quantity_reserved
	`, delta, partID).Scan(&newReserved)
	if err != nil {
		return fmt.Errorf("failed to reserve stock for part %s: %w", partID, err)
	}

	return insertAdjustment(ctx, tx, partID, newReserved-delta, newReserved, AdjustOrderReserved, reason, actor)
}

func (s *inventoryService) Release(ctx context.Context, partID string, delta int, reason, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ReleaseTx(ctx, tx, partID, delta, reason, actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *inventoryService) ReleaseTx(ctx context.Context, tx pgx.Tx, partID string, delta int, reason, actor string) error {
	if delta <= 0 {
		return fmt.Errorf("release delta must be positive, got %d", delta)
	}

	// GREATEST clamps at zero: releasing more than is reserved is expected
	// drift from legacy paths and must not fail.
	var prevReserved, newReserved int
	err := tx.QueryRow(ctx, `
		WITH old AS (
			SELECT quantity_reserved FROM inventory WHERE part_id = $2 FOR UPDATE
		)
		UPDATE inventory
		SET quantity_reserved = GREATEST(quantity_reserved - $1, 0), last_updated = NOW()
		WHERE part_id = $2
		RETURNING (SELECT quantity_reserved FROM old), quantity_reserved
	`, delta, partID).Scan(&prevReserved, &newReserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No inventory row means nothing reserved; releasing is a no-op.
			return nil
		}
		return fmt.Errorf("failed to release reservation for part %s: %w", partID, err)
	}

	return insertAdjustment(ctx, tx, partID, prevReserved, newReserved, AdjustOrderReleased, reason, actor)
}

func (s *inventoryService) Available(ctx context.Context, partID string) (int, error) {
	var available int
	err := s.pool.QueryRow(ctx,
		"SELECT quantity_on_hand - quantity_reserved FROM inventory WHERE part_id = $1",
		partID,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read availability for part %s: %w", partID, err)
	}
	return available, nil
}

func (s *inventoryService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.part_id, p.name,
		       i.quantity_on_hand, i.quantity_reserved,
		       i.quantity_on_hand - i.quantity_reserved,
		       p.low_stock_threshold, i.last_updated
		FROM inventory i
		JOIN parts p ON p.id = i.part_id
		ORDER BY i.quantity_on_hand - i.quantity_reserved, p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.PartID, &sl.PartName, &sl.OnHand, &sl.Reserved,
			&sl.Available, &sl.LowStockThreshold, &sl.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *inventoryService) GetLowStockParts(ctx context.Context) ([]StockLevel, error) {
	levels, err := s.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	var low []StockLevel
	for _, sl := range levels {
		if sl.LowStock() {
			low = append(low, sl)
		}
	}
	return low, nil
}

func (s *inventoryService) GetAdjustments(ctx context.Context, partID string, limit int) ([]InventoryAdjustment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT a.id, a.part_id, p.name, a.previous_quantity, a.new_quantity,
		       a.adjustment_type, COALESCE(a.reason, ''), COALESCE(a.created_by, ''), a.created_at
		FROM inventory_adjustments a
		JOIN parts p ON p.id = a.part_id
	`
	args := []any{limit}
	if partID != "" {
		query += " WHERE a.part_id = $2"
		args = append(args, partID)
	}
	query += " ORDER BY a.created_at DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []InventoryAdjustment
	for rows.Next() {
		var a InventoryAdjustment
		if err := rows.Scan(&a.ID, &a.PartID, &a.PartName, &a.PreviousQuantity, &a.NewQuantity,
			&a.Type, &a.Reason, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory adjustment: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}

// insertAdjustment appends one audit row for a ledger mutation.
func insertAdjustment(ctx context.Context, q pgxConn, partID string, previous, next int, typ AdjustmentType, reason, actor string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO inventory_adjustments (part_id, previous_quantity, new_quantity, adjustment_type, reason, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
	`, partID, previous, next, typ, reason, actor)
	if err != nil {
		return fmt.Errorf("failed to insert inventory adjustment for part %s: %w", partID, err)
	}
	return nil
}
