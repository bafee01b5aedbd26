package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/db"
)

// Sanity-checks a migrated database: every expected table must exist, and a
// few cheap invariants must hold. Exits non-zero on the first failure.
func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("[CONNECT] %v", err)
	}
	defer pool.Close()

	tables := []string{
		"products", "parts", "product_parts", "inventory", "inventory_adjustments",
		"printers", "production_orders", "order_part_allocations", "print_log",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			table).Scan(&exists)
		if err != nil {
			log.Fatalf("[CHECK] failed to check table %s: %v", table, err)
		}
		if !exists {
			log.Fatalf("[CHECK] missing table: %s", table)
		}
		log.Printf("[OK] table %s", table)
	}

	var overAllocated int
	err = pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_part_allocations
		WHERE quantity_allocated > quantity_needed
	`).Scan(&overAllocated)
	if err != nil {
		log.Fatalf("[CHECK] over-allocation query failed: %v", err)
	}
	if overAllocated > 0 {
		log.Fatalf("[CHECK] %d allocation line(s) exceed quantity needed", overAllocated)
	}
	log.Println("[OK] no over-allocated lines")

	var negativeReserved int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM inventory WHERE quantity_reserved < 0").Scan(&negativeReserved)
	if err != nil {
		log.Fatalf("[CHECK] reservation query failed: %v", err)
	}
	if negativeReserved > 0 {
		log.Fatalf("[CHECK] %d inventory row(s) with negative reservations", negativeReserved)
	}
	log.Println("[OK] no negative reservations")

	log.Println("[DONE] database verified")
}
