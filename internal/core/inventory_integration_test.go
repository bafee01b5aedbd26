package core_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

// Fixed IDs used by the integration test seed.
const (
	partBracket = "00000000-0000-0000-0000-00000000a001" // 60 min, 4 per print, threshold 10
	partHousing = "00000000-0000-0000-0000-00000000a002" // 90 min, 2 per print, threshold 5
	productSolo = "00000000-0000-0000-0000-00000000b001" // BOM: bracket
	productDuo  = "00000000-0000-0000-0000-00000000b002" // BOM: bracket + housing
	printerOne  = "00000000-0000-0000-0000-00000000c001"
)

// setupTestDB truncates the test database and seeds a small catalog.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE print_log, order_part_allocations, production_orders,
			inventory_adjustments, inventory, product_parts, printers, parts, products CASCADE;

		INSERT INTO parts (id, name, print_time_minutes, material_grams, parts_per_print, material_type, low_stock_threshold) VALUES
		('00000000-0000-0000-0000-00000000a001', 'Bracket', 60, 12.50, 4, 'PLA',  10),
		('00000000-0000-0000-0000-00000000a002', 'Housing', 90, 48.00, 2, 'PETG',  5);

		INSERT INTO products (id, name, sku) VALUES
		('00000000-0000-0000-0000-00000000b001', 'Wall Mount', 'WM-01'),
		('00000000-0000-0000-0000-00000000b002', 'Sensor Kit', 'SK-01');

		INSERT INTO product_parts (product_id, part_id) VALUES
		('00000000-0000-0000-0000-00000000b001', '00000000-0000-0000-0000-00000000a001'),
		('00000000-0000-0000-0000-00000000b002', '00000000-0000-0000-0000-00000000a001'),
		('00000000-0000-0000-0000-00000000b002', '00000000-0000-0000-0000-00000000a002');

		INSERT INTO printers (id, name, status) VALUES
		('00000000-0000-0000-0000-00000000c001', 'Prusa MK4', 'idle');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// getStock reads the raw ledger counters for a part.
func getStock(t *testing.T, ctx context.Context, pool *pgxpool.Pool, partID string) (onHand, reserved int) {
	t.Helper()
	err := pool.QueryRow(ctx,
		"SELECT quantity_on_hand, quantity_reserved FROM inventory WHERE part_id = $1",
		partID).Scan(&onHand, &reserved)
	if err != nil {
		t.Fatalf("Failed to read inventory for %s: %v", partID, err)
	}
	return onHand, reserved
}

func TestInventory_AdjustReturnsPreviousAndAudits(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	inv := core.NewInventoryService(pool)

	previous, err := inv.Adjust(ctx, partBracket, 25, "initial count", "tester")
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if previous != 0 {
		t.Errorf("first adjustment should report previous 0, got %d", previous)
	}

	previous, err = inv.Adjust(ctx, partBracket, 18, "recount", "tester")
	if err != nil {
		t.Fatalf("second Adjust failed: %v", err)
	}
	if previous != 25 {
		t.Errorf("expected previous 25, got %d", previous)
	}

	adjustments, err := inv.GetAdjustments(ctx, partBracket, 10)
	if err != nil {
		t.Fatalf("GetAdjustments failed: %v", err)
	}
	if len(adjustments) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(adjustments))
	}
	// Newest first.
	latest := adjustments[0]
	if latest.Type != core.AdjustManual {
		t.Errorf("expected manual adjustment, got %s", latest.Type)
	}
	if latest.PreviousQuantity != 25 || latest.NewQuantity != 18 {
		t.Errorf("expected 25 -> 18, got %d -> %d", latest.PreviousQuantity, latest.NewQuantity)
	}
	if latest.CreatedBy != "tester" {
		t.Errorf("expected actor recorded, got %q", latest.CreatedBy)
	}
}

func TestInventory_ReleaseClampsAtZero(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	inv := core.NewInventoryService(pool)

	if _, err := inv.Adjust(ctx, partBracket, 10, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if err := inv.Reserve(ctx, partBracket, 5, "reserve", "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Releasing more than is reserved must clamp, not go negative or error.
	if err := inv.Release(ctx, partBracket, 8, "over-release", "tester"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	_, reserved := getStock(t, ctx, pool, partBracket)
	if reserved != 0 {
		t.Errorf("expected reserved clamped to 0, got %d", reserved)
	}

	// Releasing against a part with no inventory row is a no-op.
	if err := inv.Release(ctx, partHousing, 3, "noop", "tester"); err != nil {
		t.Fatalf("Release on missing row should be a no-op, got %v", err)
	}
}

func TestInventory_LowStockBoundary(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	ctx := context.Background()
	inv := core.NewInventoryService(pool)

	// Bracket threshold is 10. Available exactly at the threshold is not low.
	if _, err := inv.Adjust(ctx, partBracket, 10, "seed", "tester"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	low, err := inv.GetLowStockParts(ctx)
	if err != nil {
		t.Fatalf("GetLowStockParts failed: %v", err)
	}
	for _, sl := range low {
		if sl.PartID == partBracket {
			t.Error("available == threshold must not be reported as low stock")
		}
	}

	// Reserving one unit drops available below the threshold.
	if err := inv.Reserve(ctx, partBracket, 1, "reserve", "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	low, err = inv.GetLowStockParts(ctx)
	if err != nil {
		t.Fatalf("GetLowStockParts failed: %v", err)
	}
	found := false
	for _, sl := range low {
		if sl.PartID == partBracket {
			found = true
			if sl.Available != 9 {
				t.Errorf("expected available 9, got %d", sl.Available)
			}
		}
	}
	if !found {
		t.Error("available below threshold should be reported as low stock")
	}
}
