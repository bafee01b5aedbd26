package core_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

func TestPrintLog_SuccessIncrementsAndCascades(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	orders, alloc, inv := newOrderStack(pool)
	prints := core.NewPrintLogService(pool, inv, alloc)

	// An order waits with no stock at all.
	order, err := orders.CreateOrder(ctx, core.CreateOrderInput{
		ProductID: productSolo, Quantity: 4, Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if lineFor(t, order, partBracket).QuantityAllocated != 0 {
		t.Fatal("precondition: nothing should be allocated yet")
	}

	grams := decimal.NewFromFloat(100.5)
	entry, err := prints.LogPrint(ctx, core.LogPrintInput{
		PartID:          partBracket,
		PrinterID:       printerOne,
		QuantityPrinted: 8, // 2 batches of 4
		Outcome:         core.PrintSuccess,
		MaterialGrams:   &grams,
		Actor:           "tester",
	})
	if err != nil {
		t.Fatalf("LogPrint failed: %v", err)
	}
	if entry.PartName != "Bracket" {
		t.Errorf("expected joined part name, got %q", entry.PartName)
	}
	if entry.PrinterID != printerOne {
		t.Errorf("expected printer recorded, got %q", entry.PrinterID)
	}

	// Ledger first: 8 on hand. Cascade second: 4 reserved for the order.
	onHand, reserved := getStock(t, ctx, pool, partBracket)
	if onHand != 8 {
		t.Errorf("expected on-hand 8, got %d", onHand)
	}
	if reserved != 4 {
		t.Errorf("expected 4 reserved by the cascade, got %d", reserved)
	}

	order, err = orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	line := lineFor(t, order, partBracket)
	if line.Status != core.AllocationAllocated || line.QuantityAllocated != 4 {
		t.Errorf("expected line fully allocated, got %d (%s)", line.QuantityAllocated, line.Status)
	}
	if order.Fulfillment != core.Fulfilled {
		t.Errorf("expected fulfilled, got %s", order.Fulfillment)
	}

	var auditType string
	err = pool.QueryRow(ctx, `
		SELECT adjustment_type FROM inventory_adjustments
		WHERE part_id = $1 AND adjustment_type = 'print_complete'
	`, partBracket).Scan(&auditType)
	if err != nil {
		t.Errorf("expected a print_complete audit row: %v", err)
	}
}

func TestPrintLog_FailedRunAddsNoStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	inv := core.NewInventoryService(pool)
	alloc := core.NewAllocationService(pool, inv)
	prints := core.NewPrintLogService(pool, inv, alloc)

	entry, err := prints.LogPrint(ctx, core.LogPrintInput{
		PartID:          partHousing,
		QuantityPrinted: 2,
		Outcome:         core.PrintFailed,
		FailureReason:   "warped first layer",
		Actor:           "tester",
	})
	if err != nil {
		t.Fatalf("LogPrint failed: %v", err)
	}
	if entry.Outcome != core.PrintFailed {
		t.Errorf("expected failed outcome, got %s", entry.Outcome)
	}
	if entry.FailureReason != "warped first layer" {
		t.Errorf("failure reason not recorded: %q", entry.FailureReason)
	}

	// No stock movement and no audit row for a failed run.
	var invRows int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM inventory WHERE part_id = $1 AND quantity_on_hand > 0",
		partHousing).Scan(&invRows); err != nil {
		t.Fatalf("inventory query failed: %v", err)
	}
	if invRows != 0 {
		t.Error("failed print must not add stock")
	}
	var audits int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM inventory_adjustments WHERE part_id = $1",
		partHousing).Scan(&audits); err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	if audits != 0 {
		t.Errorf("failed print must not write ledger audits, got %d", audits)
	}
}

func TestPrintLog_HistoryFilterAndLimit(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	inv := core.NewInventoryService(pool)
	alloc := core.NewAllocationService(pool, inv)
	prints := core.NewPrintLogService(pool, inv, alloc)

	for i := 0; i < 3; i++ {
		if _, err := prints.LogPrint(ctx, core.LogPrintInput{
			PartID: partBracket, QuantityPrinted: 4, Outcome: core.PrintSuccess, Actor: "tester",
		}); err != nil {
			t.Fatalf("LogPrint failed: %v", err)
		}
	}
	if _, err := prints.LogPrint(ctx, core.LogPrintInput{
		PartID: partHousing, QuantityPrinted: 2, Outcome: core.PrintSuccess, Actor: "tester",
	}); err != nil {
		t.Fatalf("LogPrint failed: %v", err)
	}

	entries, err := prints.GetPrintLog(ctx, partBracket, 0)
	if err != nil {
		t.Fatalf("GetPrintLog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 bracket entries, got %d", len(entries))
	}

	entries, err = prints.GetPrintLog(ctx, "", 2)
	if err != nil {
		t.Fatalf("GetPrintLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected limit of 2, got %d", len(entries))
	}
}
