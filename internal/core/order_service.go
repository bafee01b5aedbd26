package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateOrderInput is the input for creating a production order.
type CreateOrderInput struct {
	ProductID        string
	Quantity         int
	Priority         OrderPriority
	DueDate          *time.Time
	Notes            string
	Source           OrderSource
	ExternalOrderRef string
	Actor            string
}

// OrderService manages the production order lifecycle. Allocation lines are
// created atomically with the order: an order with no allocation rows is a
// failed creation, never a silent partial success.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*ProductionOrder, error)

	// StartProduction transitions pending → in_production.
	StartProduction(ctx context.Context, orderID string) (*ProductionOrder, error)
	// CompleteOrder transitions an active order to completed and consumes the
	// stock allocated to it (on-hand and reserved both drop by the allocated
	// amount).
	CompleteOrder(ctx context.Context, orderID, actor string) (*ProductionOrder, error)
	// CancelOrder transitions an active order to cancelled, releasing every
	// reservation the order held.
	CancelOrder(ctx context.Context, orderID, actor string) (*ProductionOrder, error)

	UpdateOrderPriority(ctx context.Context, orderID string, priority OrderPriority) (*ProductionOrder, error)
	UpdateOrderDetails(ctx context.Context, orderID string, dueDate *time.Time, notes string) (*ProductionOrder, error)

	GetOrder(ctx context.Context, orderID string) (*ProductionOrder, error)
	GetOrders(ctx context.Context, status *OrderStatus) ([]ProductionOrder, error)
}

type orderService struct {
	pool  *pgxpool.Pool
	alloc AllocationService
}

func NewOrderService(pool *pgxpool.Pool, alloc AllocationService) OrderService {
	return &orderService{pool: pool, alloc: alloc}
}

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*ProductionOrder, error) {
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", input.Quantity)
	}
	if input.Priority == "" {
		input.Priority = PriorityNormal
	}
	if input.Source == "" {
		input.Source = SourceInternal
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Verify the product exists before inserting anything.
	var productID string
	err = tx.QueryRow(ctx, "SELECT id FROM products WHERE id = $1", input.ProductID).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s not found", input.ProductID)
		}
		return nil, fmt.Errorf("failed to resolve product: %w", err)
	}

	var orderID string
	err = tx.QueryRow(ctx, `
		INSERT INTO production_orders (source, external_order_ref, product_id, quantity, priority, status, due_date, notes, created_by)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, 'pending', $6, NULLIF($7, ''), NULLIF($8, ''))
		RETURNING id
	`, input.Source, input.ExternalOrderRef, input.ProductID, input.Quantity,
		input.Priority, input.DueDate, input.Notes, input.Actor).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert production order: %w", err)
	}

	// Allocation rows are part of the same transaction: if they cannot be
	// written, the whole creation rolls back.
	if err := s.alloc.CreateAllocationsTx(ctx, tx, orderID, input.ProductID, input.Quantity); err != nil {
		return nil, fmt.Errorf("failed to create allocations for order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	// Offer any stock already on the shelf to the new order. A failure here
	// is not a creation failure; the next allocation pass catches up.
	if err := s.alloc.AllocateOrder(ctx, orderID, input.Actor); err != nil {
		logf("allocation pass after order %s creation failed: %v", orderID, err)
	}

	return s.GetOrder(ctx, orderID)
}

// lockOrderStatus loads and locks an order row, returning its current status.
func lockOrderStatus(ctx context.Context, tx pgx.Tx, orderID string) (OrderStatus, error) {
	var status OrderStatus
	err := tx.QueryRow(ctx,
		"SELECT status FROM production_orders WHERE id = $1 FOR UPDATE",
		orderID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("order %s not found", orderID)
		}
		return "", fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}
	return status, nil
}

func (s *orderService) StartProduction(ctx context.Context, orderID string) (*ProductionOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != OrderPending {
		return nil, fmt.Errorf("order %s cannot start production: status is %s (must be pending)", orderID, status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE production_orders SET status = 'in_production' WHERE id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to start production for order %s: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status transition: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) CompleteOrder(ctx context.Context, orderID, actor string) (*ProductionOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != OrderPending && status != OrderInProduction {
		return nil, fmt.Errorf("order %s cannot be completed: status is %s", orderID, status)
	}

	// Consume the stock committed to this order: allocated parts leave both
	// on-hand and reserved counts.
	lines, err := fetchAllocations(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if l.QuantityAllocated <= 0 {
			continue
		}
		var prevOnHand, newOnHand int
		err = tx.QueryRow(ctx, `
			WITH old AS (
				SELECT quantity_on_hand FROM inventory WHERE part_id = $2 FOR UPDATE
			)
			UPDATE inventory
			SET quantity_on_hand  = quantity_on_hand - $1,
			    quantity_reserved = GREATEST(quantity_reserved - $1, 0),
			    last_updated      = NOW()
			WHERE part_id = $2
			RETURNING (SELECT quantity_on_hand FROM old), quantity_on_hand
		`, l.QuantityAllocated, l.PartID).Scan(&prevOnHand, &newOnHand)
		if err != nil {
			return nil, fmt.Errorf("failed to consume stock for part %s: %w", l.PartID, err)
		}
		if err := insertAdjustment(ctx, tx, l.PartID, prevOnHand, newOnHand, AdjustOrderShipped,
			fmt.Sprintf("Order %s completed", orderID), actor); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE production_orders SET status = 'completed', completed_at = NOW() WHERE id = $1",
		orderID); err != nil {
		return nil, fmt.Errorf("failed to complete order %s: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order completion: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, actor string) (*ProductionOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockOrderStatus(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status == OrderCompleted || status == OrderCancelled {
		return nil, fmt.Errorf("order %s cannot be cancelled: status is %s (terminal)", orderID, status)
	}

	// Release reservations and zero the lines atomically with the transition.
	if err := s.alloc.ReleaseOrderTx(ctx, tx, orderID, actor); err != nil {
		return nil, fmt.Errorf("failed to release allocations for order %s: %w", orderID, err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE production_orders SET status = 'cancelled' WHERE id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order cancellation: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) UpdateOrderPriority(ctx context.Context, orderID string, priority OrderPriority) (*ProductionOrder, error) {
	switch priority {
	case PriorityNormal, PriorityRush, PriorityCritical:
	default:
		return nil, fmt.Errorf("invalid priority %q", priority)
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE production_orders SET priority = $1 WHERE id = $2 AND status IN ('pending', 'in_production')",
		priority, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update priority for order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("order %s not found or not active", orderID)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) UpdateOrderDetails(ctx context.Context, orderID string, dueDate *time.Time, notes string) (*ProductionOrder, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE production_orders SET due_date = $1, notes = NULLIF($2, '') WHERE id = $3 AND status IN ('pending', 'in_production')",
		dueDate, notes, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("order %s not found or not active", orderID)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*ProductionOrder, error) {
	var o ProductionOrder
	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.source, COALESCE(o.external_order_ref, ''), o.product_id, p.name,
		       o.quantity, o.priority, o.status, o.due_date, COALESCE(o.notes, ''),
		       COALESCE(o.created_by, ''), o.created_at, o.completed_at
		FROM production_orders o
		JOIN products p ON p.id = o.product_id
		WHERE o.id = $1
	`, orderID).Scan(
		&o.ID, &o.Source, &o.ExternalOrderRef, &o.ProductID, &o.ProductName,
		&o.Quantity, &o.Priority, &o.Status, &o.DueDate, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s not found", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", orderID, err)
	}

	o.Allocations, err = fetchAllocations(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	o.Fulfillment = RollupFulfillment(o.Allocations)
	return &o, nil
}

func (s *orderService) GetOrders(ctx context.Context, status *OrderStatus) ([]ProductionOrder, error) {
	query := `
		SELECT o.id, o.source, COALESCE(o.external_order_ref, ''), o.product_id, p.name,
		       o.quantity, o.priority, o.status, o.due_date, COALESCE(o.notes, ''),
		       COALESCE(o.created_by, ''), o.created_at, o.completed_at,
		       COUNT(a.id), COUNT(a.id) FILTER (WHERE a.status = 'allocated'),
		       COALESCE(SUM(a.quantity_allocated), 0)
		FROM production_orders o
		JOIN products p ON p.id = o.product_id
		LEFT JOIN order_part_allocations a ON a.production_order_id = o.id
	`
	var args []any
	if status != nil {
		query += " WHERE o.status = $1"
		args = append(args, *status)
	}
	query += " GROUP BY o.id, p.name ORDER BY o.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []ProductionOrder
	for rows.Next() {
		var o ProductionOrder
		var lineCount, fullLines, totalAllocated int
		if err := rows.Scan(
			&o.ID, &o.Source, &o.ExternalOrderRef, &o.ProductID, &o.ProductName,
			&o.Quantity, &o.Priority, &o.Status, &o.DueDate, &o.Notes,
			&o.CreatedBy, &o.CreatedAt, &o.CompletedAt,
			&lineCount, &fullLines, &totalAllocated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		switch {
		case lineCount > 0 && fullLines == lineCount:
			o.Fulfillment = Fulfilled
		case totalAllocated > 0:
			o.Fulfillment = PartiallyFulfilled
		default:
			o.Fulfillment = Unfulfilled
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
