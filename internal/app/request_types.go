package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

// PartRequest carries the writable fields of a part.
type PartRequest struct {
	Name              string          `json:"name"`
	PrintTimeMinutes  int             `json:"print_time_minutes"`
	MaterialGrams     decimal.Decimal `json:"material_grams"`
	PartsPerPrint     int             `json:"parts_per_print"`
	Color             string          `json:"color"`
	MaterialType      string          `json:"material_type"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// ProductRequest carries the writable fields of a product. PartIDs is the
// full bill of materials; on update a nil slice leaves the BOM untouched.
type ProductRequest struct {
	Name        string   `json:"name"`
	SKU         string   `json:"sku"`
	Description string   `json:"description"`
	PartIDs     []string `json:"part_ids"`
}

type PrinterRequest struct {
	Name         string `json:"name"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// AdjustInventoryRequest sets the absolute on-hand count for a part.
type AdjustInventoryRequest struct {
	PartID    string `json:"part_id"`
	NewOnHand int    `json:"new_quantity"`
	Reason    string `json:"reason"`
	Actor     string `json:"actor"`
}

// AdjustInventoryResult reports the count before and after the adjustment.
type AdjustInventoryResult struct {
	PartID           string `json:"part_id"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
}

type CreateOrderRequest struct {
	ProductID        string             `json:"product_id"`
	Quantity         int                `json:"quantity"`
	Priority         core.OrderPriority `json:"priority"`
	DueDate          *time.Time         `json:"due_date"`
	Notes            string             `json:"notes"`
	Source           core.OrderSource   `json:"source"`
	ExternalOrderRef string             `json:"external_order_ref"`
	Actor            string             `json:"actor"`
}

// LogPrintRequest records a finished print run in finished-part units.
type LogPrintRequest struct {
	PartID          string            `json:"part_id"`
	PrinterID       string            `json:"printer_id"`
	QuantityPrinted int               `json:"quantity_printed"`
	Outcome         core.PrintOutcome `json:"outcome"`
	MaterialGrams   *decimal.Decimal  `json:"material_grams"`
	FailureReason   string            `json:"failure_reason"`
	Notes           string            `json:"notes"`
	Actor           string            `json:"actor"`
	CompletedAt     time.Time         `json:"completed_at"`
}
