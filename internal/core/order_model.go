package core

import "time"

type OrderSource string

const (
	SourceInternal OrderSource = "internal"
	SourceChannel  OrderSource = "channel"
)

type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"
	AllocationPartial   AllocationStatus = "partially_allocated"
	AllocationAllocated AllocationStatus = "allocated"
)

// FulfillmentStatus is derived from an order's allocation lines, never stored.
type FulfillmentStatus string

const (
	Unfulfilled        FulfillmentStatus = "unfulfilled"
	PartiallyFulfilled FulfillmentStatus = "partially_fulfilled"
	Fulfilled          FulfillmentStatus = "fulfilled"
)

// ProductionOrder is a demand source. Status progresses through the state machine:
//
//	pending → in_production → completed | cancelled
//
// completed and cancelled are terminal.
type ProductionOrder struct {
	ID               string            `json:"id"`
	Source           OrderSource       `json:"source"`
	ExternalOrderRef string            `json:"external_order_ref,omitempty"`
	ProductID        string            `json:"product_id"`
	ProductName      string            `json:"product_name"` // joined from products
	Quantity         int               `json:"quantity"`
	Priority         OrderPriority     `json:"priority"`
	Status           OrderStatus       `json:"status"`
	DueDate          *time.Time        `json:"due_date,omitempty"`
	Notes            string            `json:"notes"`
	CreatedBy        string            `json:"created_by,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	Fulfillment      FulfillmentStatus `json:"fulfillment"`
	Allocations      []Allocation      `json:"allocations,omitempty"`
}

// Allocation is one fulfillment ledger line: how many finished parts an order
// needs of one part and how many have been reserved against it so far.
// Quantities are finished-part units throughout; print-batch math happens only
// at the scheduler boundary.
type Allocation struct {
	ID                string           `json:"id"`
	ProductionOrderID string           `json:"production_order_id"`
	PartID            string           `json:"part_id"`
	PartName          string           `json:"part_name"` // joined from parts
	QuantityNeeded    int              `json:"quantity_needed"`
	QuantityAllocated int              `json:"quantity_allocated"`
	Status            AllocationStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Unallocated returns the quantity still owed to the order for this line.
func (a Allocation) Unallocated() int {
	return a.QuantityNeeded - a.QuantityAllocated
}

// allocationStatusFor recomputes a line's status from its counters.
func allocationStatusFor(allocated, needed int) AllocationStatus {
	switch {
	case allocated <= 0:
		return AllocationPending
	case allocated < needed:
		return AllocationPartial
	default:
		return AllocationAllocated
	}
}

// RollupFulfillment derives an order's fulfillment status from its lines.
// fulfilled requires every line allocated; any progress at all is partial.
func RollupFulfillment(lines []Allocation) FulfillmentStatus {
	if len(lines) == 0 {
		return Unfulfilled
	}
	total, full := 0, true
	for _, l := range lines {
		total += l.QuantityAllocated
		if l.Status != AllocationAllocated {
			full = false
		}
	}
	switch {
	case full:
		return Fulfilled
	case total > 0:
		return PartiallyFulfilled
	default:
		return Unfulfilled
	}
}
