package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// WriteSale commits one sale transaction, decrementing the catalog record's
// quantity_on_hand. The decrement is a conditional update that never drives
// stock below zero: if concurrent depletion has occurred the sale fails with
// common.InsufficientStockError and no row is written.
func (s *SQLiteLedger) WriteSale(ctx context.Context, sale *model.SaleTransaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSale(sale); err != nil {
		return err
	}

	unlock := s.lockItem(sale.ItemName)
	defer unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM catalog WHERE LOWER(item_name) = LOWER(?)`,
			sale.ItemName).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cannot sell %q", common.ErrItemNotFound, sale.ItemName)
		}
		if err != nil {
			return fmt.Errorf("failed to check catalog record: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE catalog
			 SET quantity_on_hand = quantity_on_hand - ?
			 WHERE LOWER(item_name) = LOWER(?) AND quantity_on_hand >= ?`,
			sale.Quantity, sale.ItemName, sale.Quantity)
		if err != nil {
			return fmt.Errorf("failed to debit stock: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if affected == 0 {
			return &common.InsufficientStockError{
				Item:     sale.ItemName,
				Quantity: sale.Quantity,
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sales (item_name, quantity, unit_price, total_price)
			 VALUES (?, ?, ?, ?)`,
			sale.ItemName, sale.Quantity, sale.UnitPrice.String(), sale.TotalPrice.String()); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		slog.Info("Sale committed",
			"item", sale.ItemName,
			"quantity", sale.Quantity,
			"total", sale.TotalPrice.String())
		return nil
	})
}

// GetSales returns the sales recorded for an item, oldest first.
func (s *SQLiteLedger) GetSales(ctx context.Context, itemName string) ([]model.SaleTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemName, "item name"); err != nil {
		return nil, err
	}

	query := `
		SELECT item_name, quantity, unit_price, total_price, created_at
		FROM sales
		WHERE LOWER(item_name) = LOWER(?)
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sales []model.SaleTransaction
	for rows.Next() {
		var sale model.SaleTransaction
		var unitPrice, totalPrice string
		if err := rows.Scan(&sale.ItemName, &sale.Quantity, &unitPrice,
			&totalPrice, &sale.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}

		if sale.UnitPrice, err = parsePrice(unitPrice, sale.ItemName); err != nil {
			return nil, err
		}
		if sale.TotalPrice, err = parsePrice(totalPrice, sale.ItemName); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return sales, nil
}
