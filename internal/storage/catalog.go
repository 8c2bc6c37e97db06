package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// GetCatalogRecord returns the catalog record for an item name, matched
// case-insensitively. A missing record is common.ErrItemNotFound; the caller
// classifies the item as Missing and must not mutate stock for it.
func (s *SQLiteLedger) GetCatalogRecord(ctx context.Context, name string) (*model.CatalogRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "item name"); err != nil {
		return nil, err
	}

	query := `
		SELECT item_name, quantity_on_hand, reorder_threshold, unit_cost, created_at
		FROM catalog
		WHERE LOWER(item_name) = LOWER(?)`

	record, err := s.scanCatalogRecord(s.db.QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", common.ErrItemNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog record: %w", err)
	}

	return record, nil
}

// ListCatalog returns all catalog records ordered by item name.
func (s *SQLiteLedger) ListCatalog(ctx context.Context) ([]model.CatalogRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT item_name, quantity_on_hand, reorder_threshold, unit_cost, created_at
		FROM catalog
		ORDER BY item_name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.CatalogRecord
	for rows.Next() {
		record, err := s.scanCatalogRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog: %w", err)
	}

	slog.Debug("retrieved catalog", "count", len(records))
	return records, nil
}

// GetUnitPrice returns the unit cost for an item. An exact (case-insensitive)
// match is tried first, then a substring match against the catalog; a miss on
// both is common.ErrItemNotFound, which the quotation stage reports as a
// pricing gap.
func (s *SQLiteLedger) GetUnitPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	if err := validateString(name, "item name"); err != nil {
		return decimal.Zero, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT unit_cost FROM catalog WHERE LOWER(item_name) = LOWER(?)`,
		strings.TrimSpace(name)).Scan(&raw)
	if err == nil {
		return parsePrice(raw, name)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to query unit price: %w", err)
	}

	// No exact match; fall back to substring matching in either direction.
	rows, err := s.db.QueryContext(ctx, `SELECT item_name, unit_cost FROM catalog`)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query catalog for fuzzy match: %w", err)
	}
	defer func() { _ = rows.Close() }()

	target := strings.ToLower(strings.TrimSpace(name))
	for rows.Next() {
		var itemName, cost string
		if err := rows.Scan(&itemName, &cost); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		candidate := strings.ToLower(itemName)
		if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			slog.Debug("fuzzy price match", "requested", name, "matched", itemName)
			return parsePrice(cost, itemName)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating catalog: %w", err)
	}

	return decimal.Zero, fmt.Errorf("%w: no price for %q", common.ErrItemNotFound, name)
}

// UpsertCatalogRecord creates or replaces a catalog record. This is an
// administrative operation outside the pipeline's stage tool menus; the
// stages themselves mutate stock only through stock orders and sales.
func (s *SQLiteLedger) UpsertCatalogRecord(ctx context.Context, record *model.CatalogRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("catalog record cannot be nil")
	}
	if err := validateString(record.ItemName, "item name"); err != nil {
		return err
	}
	if record.QuantityOnHand < 0 {
		return fmt.Errorf("quantity on hand cannot be negative, got %d", record.QuantityOnHand)
	}

	unlock := s.lockItem(record.ItemName)
	defer unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog (item_name, quantity_on_hand, reorder_threshold, unit_cost)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(item_name) DO UPDATE SET
			quantity_on_hand = excluded.quantity_on_hand,
			reorder_threshold = excluded.reorder_threshold,
			unit_cost = excluded.unit_cost`,
		record.ItemName, record.QuantityOnHand, record.ReorderThreshold,
		record.UnitCost.String())
	if err != nil {
		return fmt.Errorf("failed to upsert catalog record: %w", err)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteLedger) scanCatalogRecord(row rowScanner) (*model.CatalogRecord, error) {
	var record model.CatalogRecord
	var cost string
	if err := row.Scan(&record.ItemName, &record.QuantityOnHand,
		&record.ReorderThreshold, &cost, &record.CreatedAt); err != nil {
		return nil, err
	}

	parsed, err := parsePrice(cost, record.ItemName)
	if err != nil {
		return nil, err
	}
	record.UnitCost = parsed
	return &record, nil
}

func parsePrice(raw, itemName string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt unit cost %q for %q: %w", raw, itemName, err)
	}
	return price, nil
}
