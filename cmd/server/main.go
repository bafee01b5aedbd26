package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	webAdapter "github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/adapters/web"
	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/app"
	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	catalogService := core.NewCatalogService(pool)
	inventoryService := core.NewInventoryService(pool)
	allocationService := core.NewAllocationService(pool, inventoryService)
	orderService := core.NewOrderService(pool, allocationService)
	printLogService := core.NewPrintLogService(pool, inventoryService, allocationService)
	demandService := core.NewDemandService(pool)
	reportingService := core.NewReportingService(pool, inventoryService)

	svc := app.NewAppService(pool, catalogService, inventoryService, orderService,
		allocationService, printLogService, demandService, reportingService)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins)

	log.Printf("server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
