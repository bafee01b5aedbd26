package app

import (
	"context"
	"time"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from business logic. Implementations contain no display logic.
type ApplicationService interface {
	// Catalog.
	ListParts(ctx context.Context) ([]core.Part, error)
	CreatePart(ctx context.Context, req PartRequest) (*core.Part, error)
	UpdatePart(ctx context.Context, partID string, req PartRequest) (*core.Part, error)
	DeletePart(ctx context.Context, partID string) error
	ListProducts(ctx context.Context) ([]core.Product, error)
	CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID string, req ProductRequest) (*core.Product, error)
	GetProductParts(ctx context.Context, productID string) ([]core.Part, error)
	ListPrinters(ctx context.Context) ([]core.Printer, error)
	CreatePrinter(ctx context.Context, req PrinterRequest) (*core.Printer, error)
	UpdatePrinterStatus(ctx context.Context, printerID string, status core.PrinterStatus) (*core.Printer, error)

	// Inventory ledger.
	GetStockLevels(ctx context.Context) ([]core.StockLevel, error)
	GetLowStockParts(ctx context.Context) ([]core.StockLevel, error)
	AdjustInventory(ctx context.Context, req AdjustInventoryRequest) (*AdjustInventoryResult, error)
	GetAdjustments(ctx context.Context, partID string, limit int) ([]core.InventoryAdjustment, error)

	// Production orders.
	ListOrders(ctx context.Context, status *core.OrderStatus) ([]core.ProductionOrder, error)
	GetOrder(ctx context.Context, orderID string) (*core.ProductionOrder, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.ProductionOrder, error)
	StartProduction(ctx context.Context, orderID string) (*core.ProductionOrder, error)
	CompleteOrder(ctx context.Context, orderID, actor string) (*core.ProductionOrder, error)
	CancelOrder(ctx context.Context, orderID, actor string) (*core.ProductionOrder, error)
	UpdateOrderPriority(ctx context.Context, orderID string, priority core.OrderPriority) (*core.ProductionOrder, error)
	UpdateOrderDetails(ctx context.Context, orderID string, dueDate *time.Time, notes string) (*core.ProductionOrder, error)
	// AllocateOpenOrders runs a manual allocation pass across all active
	// orders, most urgent first.
	AllocateOpenOrders(ctx context.Context, actor string) error

	// Print completions.
	LogPrint(ctx context.Context, req LogPrintRequest) (*core.PrintLogEntry, error)
	GetPrintLog(ctx context.Context, partID string, limit int) ([]core.PrintLogEntry, error)

	// Demand and scheduling. Both recompute from current order and inventory
	// state on every call; nothing is cached or persisted.
	GetDemand(ctx context.Context) ([]core.Demand, error)
	GetSchedule(ctx context.Context, start time.Time) (*core.ScheduleResult, error)

	// Reporting.
	GetPartYields(ctx context.Context, since time.Time) ([]core.PartYield, error)
	GetDashboardStats(ctx context.Context) (*core.DashboardStats, error)
}
