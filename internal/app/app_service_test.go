package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AugmentedImagery/FORMSET-Production-Dashboard/internal/core"
)

type stubInventory struct {
	core.InventoryService
	previous int
}

func (s *stubInventory) Adjust(ctx context.Context, partID string, newOnHand int, reason, actor string) (int, error) {
	return s.previous, nil
}

type stubAllocator struct {
	core.AllocationService
	err   error
	calls int
}

func (s *stubAllocator) AllocateAll(ctx context.Context, actor string) error {
	s.calls++
	return s.err
}

// The adjustment is durable once the ledger write commits. A failing
// allocation pass afterwards is logged, not surfaced as a rejection.
func TestAdjustInventory_SurvivesFailedAllocationPass(t *testing.T) {
	alloc := &stubAllocator{err: errors.New("connection reset")}
	svc := &appService{
		inventory: &stubInventory{previous: 2},
		alloc:     alloc,
	}

	var logged string
	prev := logf
	logf = func(format string, args ...any) { logged = fmt.Sprintf(format, args...) }
	defer func() { logf = prev }()

	result, err := svc.AdjustInventory(context.Background(), AdjustInventoryRequest{
		PartID: "part-1", NewOnHand: 9, Reason: "restock", Actor: "tester",
	})
	if err != nil {
		t.Fatalf("AdjustInventory must not fail on the follow-up pass: %v", err)
	}
	if result.PreviousQuantity != 2 || result.NewQuantity != 9 {
		t.Errorf("unexpected result: %+v", result)
	}
	if alloc.calls != 1 {
		t.Errorf("expected one allocation pass, got %d", alloc.calls)
	}
	if !strings.Contains(logged, "part-1") || !strings.Contains(logged, "connection reset") {
		t.Errorf("failure should be logged with part and cause, got %q", logged)
	}
}

// Lowering stock frees nothing for waiting orders, so no pass runs.
func TestAdjustInventory_DownwardSkipsAllocationPass(t *testing.T) {
	alloc := &stubAllocator{}
	svc := &appService{
		inventory: &stubInventory{previous: 10},
		alloc:     alloc,
	}

	result, err := svc.AdjustInventory(context.Background(), AdjustInventoryRequest{
		PartID: "part-1", NewOnHand: 3, Reason: "shrinkage", Actor: "tester",
	})
	if err != nil {
		t.Fatalf("AdjustInventory failed: %v", err)
	}
	if result.PreviousQuantity != 10 || result.NewQuantity != 3 {
		t.Errorf("unexpected result: %+v", result)
	}
	if alloc.calls != 0 {
		t.Errorf("downward adjustment must not trigger allocation, got %d passes", alloc.calls)
	}
}
