package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderPriority string

const (
	PriorityNormal   OrderPriority = "normal"
	PriorityRush     OrderPriority = "rush"
	PriorityCritical OrderPriority = "critical"
)

// PriorityRank returns the sort rank for a priority: critical first.
// Unknown values rank as normal so malformed rows never jump the queue.
func PriorityRank(p OrderPriority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityRush:
		return 1
	default:
		return 2
	}
}

type OrderStatus string

const (
	OrderPending      OrderStatus = "pending"
	OrderInProduction OrderStatus = "in_production"
	OrderCompleted    OrderStatus = "completed"
	OrderCancelled    OrderStatus = "cancelled"
)

type PrinterStatus string

const (
	PrinterIdle        PrinterStatus = "idle"
	PrinterPrinting    PrinterStatus = "printing"
	PrinterError       PrinterStatus = "error"
	PrinterOffline     PrinterStatus = "offline"
	PrinterMaintenance PrinterStatus = "maintenance"
)

// Product is a sellable item assembled from one or more printed parts.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Part is a printable unit. PrintTimeMinutes and PartsPerPrint describe one
// print batch: a single run of the printer yields PartsPerPrint finished parts.
type Part struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	PrintTimeMinutes  int             `json:"print_time_minutes"`
	MaterialGrams     decimal.Decimal `json:"material_grams"`
	PartsPerPrint     int             `json:"parts_per_print"`
	Color             string          `json:"color"`
	MaterialType      string          `json:"material_type"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Printer is a machine in the shared pool. Only idle and printing machines
// contribute to scheduling capacity.
type Printer struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Model        string        `json:"model"`
	SerialNumber string        `json:"serial_number"`
	Status       PrinterStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CapacityEligible reports whether the printer counts toward daily capacity.
func (p Printer) CapacityEligible() bool {
	return p.Status == PrinterIdle || p.Status == PrinterPrinting
}
