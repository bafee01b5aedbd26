package core_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

func newOrderStack(pool *pgxpool.Pool) (core.OrderService, core.AllocationService, core.InventoryService) {
	inv := core.NewInventoryService(pool)
	alloc := core.NewAllocationService(pool, inv)
	orders := core.NewOrderService(pool, alloc)
	return orders, alloc, inv
}

// lineFor returns the allocation line for one part of an order.
func lineFor(t *testing.T, order *core.ProductionOrder, partID string) core.Allocation {
	t.Helper()
	for _, l := range order.Allocations {
		if l.PartID == partID {
			return l
		}
	}
	t.Fatalf("no allocation line for part %s on order %s", partID, order.ID)
	return core.Allocation{}
}

func TestOrder_CreateWithAllocationLines(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, _, _ := newOrderStack(pool)

	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productDuo,
		Quantity:  3,
		Priority:  core.PriorityRush,
		Actor:     "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != core.OrderPending {
		t.Errorf("expected pending, got %s", order.Status)
	}
	if len(order.Allocations) != 2 {
		t.Fatalf("expected one line per BOM part, got %d", len(order.Allocations))
	}
	for _, l := range order.Allocations {
		if l.QuantityNeeded != 3 {
			t.Errorf("expected 3 needed per line, got %d", l.QuantityNeeded)
		}
		if l.QuantityAllocated != 0 || l.Status != core.AllocationPending {
			t.Errorf("no stock exists, line should be untouched: %+v", l)
		}
	}
	if order.Fulfillment != core.Unfulfilled {
		t.Errorf("expected unfulfilled, got %s", order.Fulfillment)
	}
}

func TestOrder_CreateIsAtomicWithAllocations(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, _, _ := newOrderStack(pool)

	// A product without a BOM cannot be ordered, and the failed creation
	// must leave no order row behind.
	var emptyProduct string
	err := pool.QueryRow(ctx,
		"INSERT INTO products (name) VALUES ('No BOM') RETURNING id").Scan(&emptyProduct)
	if err != nil {
		t.Fatalf("Failed to insert product: %v", err)
	}

	_, err = orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: emptyProduct, Quantity: 1, Actor: "tester",
	})
	if err == nil {
		t.Fatal("expected error for product without BOM")
	}

	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM production_orders").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("failed creation must roll back the order row, found %d", count)
	}
}

func TestAllocation_GreedyPartialThenIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, alloc, inv := newOrderStack(pool)

	if _, err := inv.Adjust(ctx, partBracket, 5, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	// Creation runs an allocation pass: 5 available against 8 needed.
	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 8, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	line := lineFor(t, order, partBracket)
	if line.QuantityAllocated != 5 || line.Status != core.AllocationPartial {
		t.Errorf("expected 5 partially allocated, got %d (%s)", line.QuantityAllocated, line.Status)
	}
	if order.Fulfillment != core.PartiallyFulfilled {
		t.Errorf("expected partially fulfilled, got %s", order.Fulfillment)
	}
	if _, reserved := getStock(t, ctx, pool, partBracket); reserved != 5 {
		t.Errorf("expected 5 reserved, got %d", reserved)
	}

	// A second pass with no new stock changes nothing.
	if err := alloc.AllocateAll(ctx, "tester"); err != nil {
		t.Fatalf("AllocateAll failed: %v", err)
	}
	order, err = orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	line = lineFor(t, order, partBracket)
	if line.QuantityAllocated != 5 {
		t.Errorf("idempotence violated: expected 5 allocated, got %d", line.QuantityAllocated)
	}
	if _, reserved := getStock(t, ctx, pool, partBracket); reserved != 5 {
		t.Errorf("idempotence violated: expected 5 reserved, got %d", reserved)
	}
}

// Allocation passes fire from prints, order creation, and inventory
// adjustments, so several can run at once. They serialize on the selected
// lines: every pass returns cleanly and a line never exceeds its need.
func TestAllocation_ConcurrentPassesDoNotOverAllocate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, alloc, inv := newOrderStack(pool)

	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 6, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	// Stock arrives after creation, in excess of the need.
	if _, err := inv.Adjust(ctx, partBracket, 20, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	const passes = 8
	errs := make(chan error, passes)
	var wg sync.WaitGroup
	for i := 0; i < passes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- alloc.AllocateAll(ctx, "tester")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent AllocateAll failed: %v", err)
		}
	}

	order, err = orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	line := lineFor(t, order, partBracket)
	if line.QuantityAllocated != 6 || line.Status != core.AllocationAllocated {
		t.Errorf("expected exactly 6 allocated, got %d (%s)", line.QuantityAllocated, line.Status)
	}
	if _, reserved := getStock(t, ctx, pool, partBracket); reserved != 6 {
		t.Errorf("expected exactly 6 reserved after concurrent passes, got %d", reserved)
	}
}

func TestAllocation_MostUrgentOrderClaimsScarceStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, alloc, inv := newOrderStack(pool)

	// Both orders exist before any stock does.
	normal, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 4, Priority: core.PriorityNormal, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	critical, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 4, Priority: core.PriorityCritical, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := inv.Adjust(ctx, partBracket, 5, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if err := alloc.AllocateAll(ctx, "tester"); err != nil {
		t.Fatalf("AllocateAll failed: %v", err)
	}

	critical, err = orders.GetOrder(ctx, critical.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	normal, err = orders.GetOrder(ctx, normal.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}

	// The later-created critical order outranks the earlier normal one.
	if got := lineFor(t, critical, partBracket).QuantityAllocated; got != 4 {
		t.Errorf("critical order should be fully allocated, got %d", got)
	}
	if critical.Fulfillment != core.Fulfilled {
		t.Errorf("expected critical order fulfilled, got %s", critical.Fulfillment)
	}
	if got := lineFor(t, normal, partBracket).QuantityAllocated; got != 1 {
		t.Errorf("normal order should receive the remainder 1, got %d", got)
	}
}

func TestOrder_CancelReleasesExactlyReserved(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, _, inv := newOrderStack(pool)

	if _, err := inv.Adjust(ctx, partBracket, 5, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 8, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, reserved := getStock(t, ctx, pool, partBracket); reserved != 5 {
		t.Fatalf("precondition: expected 5 reserved, got %d", reserved)
	}

	order, err = orders.CancelOrder(ctx, order.ID, "tester")
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if order.Status != core.OrderCancelled {
		t.Errorf("expected cancelled, got %s", order.Status)
	}
	onHand, reserved := getStock(t, ctx, pool, partBracket)
	if reserved != 0 {
		t.Errorf("cancel must release exactly what was reserved, got %d", reserved)
	}
	if onHand != 5 {
		t.Errorf("cancel must not touch on-hand stock, got %d", onHand)
	}
	line := lineFor(t, order, partBracket)
	if line.QuantityAllocated != 0 || line.Status != core.AllocationPending {
		t.Errorf("cancelled lines must be zeroed: %+v", line)
	}

	// Terminal states reject further transitions.
	if _, err := orders.CancelOrder(ctx, order.ID, "tester"); err == nil {
		t.Error("cancelling a cancelled order should fail")
	}
	if _, err := orders.CompleteOrder(ctx, order.ID, "tester"); err == nil {
		t.Error("completing a cancelled order should fail")
	}
}

func TestOrder_CompleteConsumesAllocatedStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, _, inv := newOrderStack(pool)

	if _, err := inv.Adjust(ctx, partBracket, 10, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 4, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	order, err = orders.StartProduction(ctx, order.ID)
	if err != nil {
		t.Fatalf("StartProduction failed: %v", err)
	}
	if order.Status != core.OrderInProduction {
		t.Errorf("expected in_production, got %s", order.Status)
	}

	order, err = orders.CompleteOrder(ctx, order.ID, "tester")
	if err != nil {
		t.Fatalf("CompleteOrder failed: %v", err)
	}
	if order.Status != core.OrderCompleted {
		t.Errorf("expected completed, got %s", order.Status)
	}
	if order.CompletedAt == nil {
		t.Error("completed order must record completed_at")
	}

	// The 4 allocated units leave both counters.
	onHand, reserved := getStock(t, ctx, pool, partBracket)
	if onHand != 6 {
		t.Errorf("expected on-hand 6 after consumption, got %d", onHand)
	}
	if reserved != 0 {
		t.Errorf("expected reserved 0 after consumption, got %d", reserved)
	}

	var shipped int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM inventory_adjustments
		WHERE part_id = $1 AND adjustment_type = 'order_shipped'
	`, partBracket).Scan(&shipped)
	if err != nil {
		t.Fatalf("adjustment query failed: %v", err)
	}
	if shipped != 1 {
		t.Errorf("expected one order_shipped audit row, got %d", shipped)
	}

	// A completed order no longer shows up as demand.
	demands, err := core.NewDemandService(pool).ComputeDemand(ctx)
	if err != nil {
		t.Fatalf("ComputeDemand failed: %v", err)
	}
	if len(demands) != 0 {
		t.Errorf("expected no open demand, got %d", len(demands))
	}
}

func TestOrder_StartProductionGuards(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, _, _ := newOrderStack(pool)

	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 1, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.StartProduction(ctx, order.ID); err != nil {
		t.Fatalf("StartProduction failed: %v", err)
	}
	if _, err := orders.StartProduction(ctx, order.ID); err == nil {
		t.Error("starting production twice should fail")
	}
}
