package app

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

// logf reports non-fatal background failures. Swappable in tests.
var logf = log.Printf

type appService struct {
	pool      *pgxpool.Pool
	catalog   core.CatalogService
	inventory core.InventoryService
	orders    core.OrderService
	alloc     core.AllocationService
	printLog  core.PrintLogService
	demand    core.DemandService
	reporting core.ReportingService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	catalog core.CatalogService,
	inventory core.InventoryService,
	orders core.OrderService,
	alloc core.AllocationService,
	printLog core.PrintLogService,
	demand core.DemandService,
	reporting core.ReportingService,
) ApplicationService {
	return &appService{
		pool:      pool,
		catalog:   catalog,
		inventory: inventory,
		orders:    orders,
		alloc:     alloc,
		printLog:  printLog,
		demand:    demand,
		reporting: reporting,
	}
}

func (s *appService) ListParts(ctx context.Context) ([]core.Part, error) {
	return s.catalog.GetParts(ctx)
}

func (s *appService) CreatePart(ctx context.Context, req PartRequest) (*core.Part, error) {
	return s.catalog.CreatePart(ctx, core.PartInput(req))
}

func (s *appService) UpdatePart(ctx context.Context, partID string, req PartRequest) (*core.Part, error) {
	return s.catalog.UpdatePart(ctx, partID, core.PartInput(req))
}

func (s *appService) DeletePart(ctx context.Context, partID string) error {
	return s.catalog.DeletePart(ctx, partID)
}

func (s *appService) ListProducts(ctx context.Context) ([]core.Product, error) {
	return s.catalog.GetProducts(ctx)
}

func (s *appService) CreateProduct(ctx context.Context, req ProductRequest) (*core.Product, error) {
	return s.catalog.CreateProduct(ctx, core.ProductInput(req))
}

func (s *appService) UpdateProduct(ctx context.Context, productID string, req ProductRequest) (*core.Product, error) {
	return s.catalog.UpdateProduct(ctx, productID, core.ProductInput(req))
}

func (s *appService) GetProductParts(ctx context.Context, productID string) ([]core.Part, error) {
	return s.catalog.GetProductParts(ctx, productID)
}

func (s *appService) ListPrinters(ctx context.Context) ([]core.Printer, error) {
	return s.catalog.GetPrinters(ctx)
}

func (s *appService) CreatePrinter(ctx context.Context, req PrinterRequest) (*core.Printer, error) {
	return s.catalog.CreatePrinter(ctx, req.Name, req.Model, req.SerialNumber)
}

func (s *appService) UpdatePrinterStatus(ctx context.Context, printerID string, status core.PrinterStatus) (*core.Printer, error) {
	return s.catalog.UpdatePrinterStatus(ctx, printerID, status)
}

func (s *appService) GetStockLevels(ctx context.Context) ([]core.StockLevel, error) {
	return s.inventory.GetStockLevels(ctx)
}

func (s *appService) GetLowStockParts(ctx context.Context) ([]core.StockLevel, error) {
	return s.inventory.GetLowStockParts(ctx)
}

// AdjustInventory sets the absolute count and then offers the new stock to
// waiting orders. The adjustment stands even if the allocation pass fails.
func (s *appService) AdjustInventory(ctx context.Context, req AdjustInventoryRequest) (*AdjustInventoryResult, error) {
	previous, err := s.inventory.Adjust(ctx, req.PartID, req.NewOnHand, req.Reason, req.Actor)
	if err != nil {
		return nil, err
	}
	if req.NewOnHand > previous {
		if err := s.alloc.AllocateAll(ctx, req.Actor); err != nil {
			logf("allocation pass after inventory adjustment for part %s failed: %v", req.PartID, err)
		}
	}
	return &AdjustInventoryResult{
		PartID:           req.PartID,
		PreviousQuantity: previous,
		NewQuantity:      req.NewOnHand,
	}, nil
}

func (s *appService) GetAdjustments(ctx context.Context, partID string, limit int) ([]core.InventoryAdjustment, error) {
	return s.inventory.GetAdjustments(ctx, partID, limit)
}

func (s *appService) ListOrders(ctx context.Context, status *core.OrderStatus) ([]core.ProductionOrder, error) {
	return s.orders.GetOrders(ctx, status)
}

func (s *appService) GetOrder(ctx context.Context, orderID string) (*core.ProductionOrder, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.ProductionOrder, error) {
	return s.orders.CreateOrder(ctx, core.CreateOrderInput(req))
}

func (s *appService) StartProduction(ctx context.Context, orderID string) (*core.ProductionOrder, error) {
	return s.orders.StartProduction(ctx, orderID)
}

func (s *appService) CompleteOrder(ctx context.Context, orderID, actor string) (*core.ProductionOrder, error) {
	return s.orders.CompleteOrder(ctx, orderID, actor)
}

func (s *appService) CancelOrder(ctx context.Context, orderID, actor string) (*core.ProductionOrder, error) {
	return s.orders.CancelOrder(ctx, orderID, actor)
}

func (s *appService) UpdateOrderPriority(ctx context.Context, orderID string, priority core.OrderPriority) (*core.ProductionOrder, error) {
	return s.orders.UpdateOrderPriority(ctx, orderID, priority)
}

func (s *appService) UpdateOrderDetails(ctx context.Context, orderID string, dueDate *time.Time, notes string) (*core.ProductionOrder, error) {
	return s.orders.UpdateOrderDetails(ctx, orderID, dueDate, notes)
}

func (s *appService) AllocateOpenOrders(ctx context.Context, actor string) error {
	return s.alloc.AllocateAll(ctx, actor)
}

func (s *appService) LogPrint(ctx context.Context, req LogPrintRequest) (*core.PrintLogEntry, error) {
	return s.printLog.LogPrint(ctx, core.LogPrintInput(req))
}

func (s *appService) GetPrintLog(ctx context.Context, partID string, limit int) ([]core.PrintLogEntry, error) {
	return s.printLog.GetPrintLog(ctx, partID, limit)
}

func (s *appService) GetDemand(ctx context.Context) ([]core.Demand, error) {
	return s.demand.ComputeDemand(ctx)
}

// GetSchedule recomputes the full plan from live demand, printer status and
// the given start date. The result is a projection, never stored.
func (s *appService) GetSchedule(ctx context.Context, start time.Time) (*core.ScheduleResult, error) {
	demands, err := s.demand.ComputeDemand(ctx)
	if err != nil {
		return nil, err
	}
	printers, err := s.catalog.GetPrinters(ctx)
	if err != nil {
		return nil, err
	}
	result := core.Schedule(core.BuildWorkItems(demands), core.AvailablePrinters(printers), start)
	return &result, nil
}

func (s *appService) GetPartYields(ctx context.Context, since time.Time) ([]core.PartYield, error) {
	return s.reporting.GetPartYields(ctx, since)
}

func (s *appService) GetDashboardStats(ctx context.Context) (*core.DashboardStats, error) {
	return s.reporting.GetDashboardStats(ctx)
}
