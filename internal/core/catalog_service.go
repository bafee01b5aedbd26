package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartInput carries the writable fields of a part.
type PartInput struct {
	Name              string
	PrintTimeMinutes  int
	MaterialGrams     decimal.Decimal
	PartsPerPrint     int
	Color             string
	MaterialType      string
	LowStockThreshold int
}

// ProductInput carries the writable fields of a product plus its BOM part IDs.
type ProductInput struct {
	Name        string
	SKU         string
	Description string
	PartIDs     []string
}

// CatalogService manages the static catalog: parts, products and their bills
// of materials, and the printer pool.
type CatalogService interface {
	CreatePart(ctx context.Context, input PartInput) (*Part, error)
	UpdatePart(ctx context.Context, partID string, input PartInput) (*Part, error)
	// DeletePart refuses while the part is referenced by a product BOM or has
	// inventory on hand.
	DeletePart(ctx context.Context, partID string) error
	GetPart(ctx context.Context, partID string) (*Part, error)
	GetParts(ctx context.Context) ([]Part, error)

	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (*Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
	GetProducts(ctx context.Context) ([]Product, error)
	GetProductParts(ctx context.Context, productID string) ([]Part, error)

	CreatePrinter(ctx context.Context, name, model, serialNumber string) (*Printer, error)
	UpdatePrinterStatus(ctx context.Context, printerID string, status PrinterStatus) (*Printer, error)
	GetPrinters(ctx context.Context) ([]Printer, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

func validatePartInput(input PartInput) error {
	if input.Name == "" {
		return errors.New("part name is required")
	}
	if input.PrintTimeMinutes <= 0 {
		return fmt.Errorf("print time must be positive, got %d", input.PrintTimeMinutes)
	}
	if input.PartsPerPrint < 1 {
		return fmt.Errorf("parts per print must be at least 1, got %d", input.PartsPerPrint)
	}
	if input.LowStockThreshold < 0 {
		return fmt.Errorf("low stock threshold cannot be negative, got %d", input.LowStockThreshold)
	}
	return nil
}

func (s *catalogService) CreatePart(ctx context.Context, input PartInput) (*Part, error) {
	if err := validatePartInput(input); err != nil {
		return nil, err
	}
	if input.MaterialType == "" {
		input.MaterialType = "PLA"
	}

	var partID string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO parts (name, print_time_minutes, material_grams, parts_per_print, color, material_type, low_stock_threshold)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id
	`, input.Name, input.PrintTimeMinutes, input.MaterialGrams, input.PartsPerPrint,
		input.Color, input.MaterialType, input.LowStockThreshold).Scan(&partID)
	if err != nil {
		return nil, fmt.Errorf("failed to create part: %w", err)
	}
	return s.GetPart(ctx, partID)
}

func (s *catalogService) UpdatePart(ctx context.Context, partID string, input PartInput) (*Part, error) {
	if err := validatePartInput(input); err != nil {
		return nil, err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE parts
		SET name = $1, print_time_minutes = $2, material_grams = $3, parts_per_print = $4,
		    color = NULLIF($5, ''), material_type = $6, low_stock_threshold = $7, updated_at = NOW()
		WHERE id = $8
	`, input.Name, input.PrintTimeMinutes, input.MaterialGrams, input.PartsPerPrint,
		input.Color, input.MaterialType, input.LowStockThreshold, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to update part %s: %w", partID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("part %s not found", partID)
	}
	return s.GetPart(ctx, partID)
}

func (s *catalogService) DeletePart(ctx context.Context, partID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var bomRefs int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM product_parts WHERE part_id = $1", partID).Scan(&bomRefs); err != nil {
		return fmt.Errorf("failed to check product references for part %s: %w", partID, err)
	}
	if bomRefs > 0 {
		return fmt.Errorf("part %s is used by %d product(s) and cannot be deleted", partID, bomRefs)
	}

	var onHand int
	err = tx.QueryRow(ctx,
		"SELECT quantity_on_hand FROM inventory WHERE part_id = $1", partID).Scan(&onHand)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check inventory for part %s: %w", partID, err)
	}
	if onHand > 0 {
		return fmt.Errorf("part %s has %d units on hand and cannot be deleted", partID, onHand)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM inventory WHERE part_id = $1", partID); err != nil {
		return fmt.Errorf("failed to delete inventory row for part %s: %w", partID, err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM parts WHERE id = $1", partID)
	if err != nil {
		return fmt.Errorf("failed to delete part %s: %w", partID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("part %s not found", partID)
	}
	return tx.Commit(ctx)
}

const partColumns = `id, name, print_time_minutes, material_grams, parts_per_print,
	COALESCE(color, ''), material_type, low_stock_threshold, created_at, updated_at`

func scanPart(row pgx.Row) (*Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.Name, &p.PrintTimeMinutes, &p.MaterialGrams, &p.PartsPerPrint,
		&p.Color, &p.MaterialType, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *catalogService) GetPart(ctx context.Context, partID string) (*Part, error) {
	p, err := scanPart(s.pool.QueryRow(ctx,
		"SELECT "+partColumns+" FROM parts WHERE id = $1", partID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s not found", partID)
		}
		return nil, fmt.Errorf("failed to fetch part %s: %w", partID, err)
	}
	return p, nil
}

func (s *catalogService) GetParts(ctx context.Context) ([]Part, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+partColumns+" FROM parts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, *p)
	}
	return parts, rows.Err()
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if input.Name == "" {
		return nil, errors.New("product name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID string
	err = tx.QueryRow(ctx, `
		INSERT INTO products (name, sku, description)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id
	`, input.Name, input.SKU, input.Description).Scan(&productID)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	for _, partID := range input.PartIDs {
		if _, err := tx.Exec(ctx,
			"INSERT INTO product_parts (product_id, part_id) VALUES ($1, $2)",
			productID, partID); err != nil {
			return nil, fmt.Errorf("failed to link part %s to product: %w", partID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, input ProductInput) (*Product, error) {
	if input.Name == "" {
		return nil, errors.New("product name is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE products
		SET name = $1, sku = NULLIF($2, ''), description = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $4
	`, input.Name, input.SKU, input.Description, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("product %s not found", productID)
	}

	// Replace the BOM wholesale. Existing orders keep the allocation lines
	// they were created with.
	if input.PartIDs != nil {
		if _, err := tx.Exec(ctx,
			"DELETE FROM product_parts WHERE product_id = $1", productID); err != nil {
			return nil, fmt.Errorf("failed to clear product parts: %w", err)
		}
		for _, partID := range input.PartIDs {
			if _, err := tx.Exec(ctx,
				"INSERT INTO product_parts (product_id, part_id) VALUES ($1, $2)",
				productID, partID); err != nil {
				return nil, fmt.Errorf("failed to link part %s to product: %w", partID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(sku, ''), COALESCE(description, ''), created_at, updated_at
		FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s not found", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %s: %w", productID, err)
	}
	return &p, nil
}

func (s *catalogService) GetProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(sku, ''), COALESCE(description, ''), created_at, updated_at
		FROM products ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *catalogService) GetProductParts(ctx context.Context, productID string) ([]Part, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.print_time_minutes, p.material_grams, p.parts_per_print,
		       COALESCE(p.color, ''), p.material_type, p.low_stock_threshold, p.created_at, p.updated_at
		FROM product_parts pp
		JOIN parts p ON p.id = pp.part_id
		WHERE pp.product_id = $1
		ORDER BY p.name
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts for product %s: %w", productID, err)
	}
	defer rows.Close()

	var parts []Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, *p)
	}
	return parts, rows.Err()
}

func (s *catalogService) CreatePrinter(ctx context.Context, name, model, serialNumber string) (*Printer, error) {
	if name == "" {
		return nil, errors.New("printer name is required")
	}
	var printerID string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO printers (name, model, serial_number)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id
	`, name, model, serialNumber).Scan(&printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create printer: %w", err)
	}
	return s.getPrinter(ctx, printerID)
}

func (s *catalogService) UpdatePrinterStatus(ctx context.Context, printerID string, status PrinterStatus) (*Printer, error) {
	switch status {
	case PrinterIdle, PrinterPrinting, PrinterError, PrinterOffline, PrinterMaintenance:
	default:
		return nil, fmt.Errorf("invalid printer status %q", status)
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE printers SET status = $1, updated_at = NOW() WHERE id = $2", status, printerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update printer %s: %w", printerID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("printer %s not found", printerID)
	}
	return s.getPrinter(ctx, printerID)
}

func (s *catalogService) getPrinter(ctx context.Context, printerID string) (*Printer, error) {
	var p Printer
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(model, ''), COALESCE(serial_number, ''), status, created_at, updated_at
		FROM printers WHERE id = $1
	`, printerID).Scan(&p.ID, &p.Name, &p.Model, &p.SerialNumber, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch printer %s: %w", printerID, err)
	}
	return &p, nil
}

func (s *catalogService) GetPrinters(ctx context.Context) ([]Printer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(model, ''), COALESCE(serial_number, ''), status, created_at, updated_at
		FROM printers ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query printers: %w", err)
	}
	defer rows.Close()

	var printers []Printer
	for rows.Next() {
		var p Printer
		if err := rows.Scan(&p.ID, &p.Name, &p.Model, &p.SerialNumber, &p.Status,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		printers = append(printers, p)
	}
	return printers, rows.Err()
}
