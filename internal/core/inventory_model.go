package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentType string

const (
	AdjustManual        AdjustmentType = "manual"
	AdjustPrintComplete AdjustmentType = "print_complete"
	AdjustOrderReserved AdjustmentType = "order_reserved"
	AdjustOrderReleased AdjustmentType = "order_released"
	AdjustOrderShipped  AdjustmentType = "order_shipped"
)

// StockLevel is a read view of an inventory row joined with its part.
// Available may be negative when reservations transiently exceed on-hand;
// readers treat negative as zero available stock, not as an error.
type StockLevel struct {
	PartID            string    `json:"part_id"`
	PartName          string    `json:"part_name"`
	OnHand            int       `json:"quantity_on_hand"`
	Reserved          int       `json:"quantity_reserved"`
	Available         int       `json:"available"` // = OnHand - Reserved
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastUpdated       time.Time `json:"last_updated"`
}

// LowStock reports whether available stock is strictly below the threshold.
// available == threshold is not low stock.
func (s StockLevel) LowStock() bool {
	return s.Available < s.LowStockThreshold
}

// OutOfStock reports whether no stock is available at all.
func (s StockLevel) OutOfStock() bool {
	return s.Available <= 0
}

// InventoryAdjustment is one audit row: every ledger mutation records the
// previous and new on-hand value, who did it, and why.
type InventoryAdjustment struct {
	ID               string         `json:"id"`
	PartID           string         `json:"part_id"`
	PartName         string         `json:"part_name,omitempty"`
	PreviousQuantity int            `json:"previous_quantity"`
	NewQuantity      int            `json:"new_quantity"`
	Type             AdjustmentType `json:"adjustment_type"`
	Reason           string         `json:"reason"`
	CreatedBy        string         `json:"created_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

type PrintOutcome string

const (
	PrintSuccess PrintOutcome = "success"
	PrintFailed  PrintOutcome = "failed"
)

// PrintLogEntry is one append-only record of a finished print run.
// QuantityPrinted is finished-part units; the caller converts batch counts
// before invoking LogPrint.
type PrintLogEntry struct {
	ID              string           `json:"id"`
	PartID          string           `json:"part_id"`
	PartName        string           `json:"part_name,omitempty"`
	PrinterID       string           `json:"printer_id,omitempty"`
	QuantityPrinted int              `json:"quantity_printed"`
	Outcome         PrintOutcome     `json:"outcome"`
	MaterialGrams   *decimal.Decimal `json:"material_grams,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedBy       string           `json:"created_by,omitempty"`
	CompletedAt     time.Time        `json:"completed_at"`
	CreatedAt       time.Time        `json:"created_at"`
}
