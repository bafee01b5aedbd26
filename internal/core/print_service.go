package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LogPrintInput describes one finished print run. QuantityPrinted is in
// finished-part units, already multiplied out from batches.
type LogPrintInput struct {
	PartID          string
	PrinterID       string
	QuantityPrinted int
	Outcome         PrintOutcome
	MaterialGrams   *decimal.Decimal
	FailureReason   string
	Notes           string
	Actor           string
	CompletedAt     time.Time
}

// PrintLogService records print completions. The ledger write commits first;
// the allocation cascade that follows a successful print runs after the
// commit and may fail without undoing the stock increment. Rerunning the
// cascade later is the recovery path.
type PrintLogService interface {
	LogPrint(ctx context.Context, input LogPrintInput) (*PrintLogEntry, error)
	GetPrintLog(ctx context.Context, partID string, limit int) ([]PrintLogEntry, error)
}

type printLogService struct {
	pool  *pgxpool.Pool
	inv   InventoryService
	alloc AllocationService
}

func NewPrintLogService(pool *pgxpool.Pool, inv InventoryService, alloc AllocationService) PrintLogService {
	return &printLogService{pool: pool, inv: inv, alloc: alloc}
}

func (s *printLogService) LogPrint(ctx context.Context, input LogPrintInput) (*PrintLogEntry, error) {
	if input.QuantityPrinted <= 0 {
		return nil, fmt.Errorf("quantity printed must be positive, got %d", input.QuantityPrinted)
	}
	switch input.Outcome {
	case PrintSuccess, PrintFailed:
	default:
		return nil, fmt.Errorf("invalid print outcome %q", input.Outcome)
	}
	if input.CompletedAt.IsZero() {
		input.CompletedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var partName string
	err = tx.QueryRow(ctx, "SELECT name FROM parts WHERE id = $1", input.PartID).Scan(&partName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s not found", input.PartID)
		}
		return nil, fmt.Errorf("failed to resolve part: %w", err)
	}

	var entryID string
	err = tx.QueryRow(ctx, `
		INSERT INTO print_log (part_id, printer_id, quantity_printed, outcome, material_grams,
		                       failure_reason, notes, created_by, completed_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING id
	`, input.PartID, input.PrinterID, input.QuantityPrinted, input.Outcome, input.MaterialGrams,
		input.FailureReason, input.Notes, input.Actor, input.CompletedAt).Scan(&entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert print log entry: %w", err)
	}

	// Failed prints are recorded but add no stock.
	if input.Outcome == PrintSuccess {
		reason := fmt.Sprintf("Print run completed: %d x %s", input.QuantityPrinted, partName)
		if err := s.inv.IncrementOnHandTx(ctx, tx, input.PartID, input.QuantityPrinted, reason, input.Actor); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit print completion: %w", err)
	}

	// New stock is on the shelf; offer it to waiting orders, most urgent
	// first. The ledger stays committed even if this pass fails.
	if input.Outcome == PrintSuccess {
		if err := s.alloc.AllocateAll(ctx, input.Actor); err != nil {
			logf("allocation pass after print %s failed: %v", entryID, err)
		}
	}

	return s.getEntry(ctx, entryID)
}

func (s *printLogService) getEntry(ctx context.Context, entryID string) (*PrintLogEntry, error) {
	var e PrintLogEntry
	err := s.pool.QueryRow(ctx, `
		SELECT l.id, l.part_id, p.name, COALESCE(l.printer_id::text, ''), l.quantity_printed,
		       l.outcome, l.material_grams, COALESCE(l.failure_reason, ''), COALESCE(l.notes, ''),
		       COALESCE(l.created_by, ''), l.completed_at, l.created_at
		FROM print_log l
		JOIN parts p ON p.id = l.part_id
		WHERE l.id = $1
	`, entryID).Scan(
		&e.ID, &e.PartID, &e.PartName, &e.PrinterID, &e.QuantityPrinted,
		&e.Outcome, &e.MaterialGrams, &e.FailureReason, &e.Notes,
		&e.CreatedBy, &e.CompletedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch print log entry %s: %w", entryID, err)
	}
	return &e, nil
}

func (s *printLogService) GetPrintLog(ctx context.Context, partID string, limit int) ([]PrintLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT l.id, l.part_id, p.name, COALESCE(l.printer_id::text, ''), l.quantity_printed,
		       l.outcome, l.material_grams, COALESCE(l.failure_reason, ''), COALESCE(l.notes, ''),
		       COALESCE(l.created_by, ''), l.completed_at, l.created_at
		FROM print_log l
		JOIN parts p ON p.id = l.part_id
	`
	args := []any{limit}
	if partID != "" {
		query += " WHERE l.part_id = $2"
		args = append(args, partID)
	}
	query += " ORDER BY l.completed_at DESC LIMIT $1"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query print log: %w", err)
	}
	defer rows.Close()

	var entries []PrintLogEntry
	for rows.Next() {
		var e PrintLogEntry
		if err := rows.Scan(&e.ID, &e.PartID, &e.PartName, &e.PrinterID, &e.QuantityPrinted,
			&e.Outcome, &e.MaterialGrams, &e.FailureReason, &e.Notes,
			&e.CreatedBy, &e.CompletedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan print log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
