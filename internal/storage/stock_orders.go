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

// WriteStockOrder appends one reorder audit row and credits the catalog
// record's quantity_on_hand in the same transaction. The check-then-write is
// serialized per item name so concurrent reorders and sales on one record
// cannot interleave.
func (s *SQLiteLedger) WriteStockOrder(ctx context.Context, order *model.StockOrder) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateStockOrder(order); err != nil {
		return err
	}

	unlock := s.lockItem(order.ItemName)
	defer unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM catalog WHERE LOWER(item_name) = LOWER(?)`,
			order.ItemName).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: cannot reorder %q", common.ErrItemNotFound, order.ItemName)
		}
		if err != nil {
			return fmt.Errorf("failed to check catalog record: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_orders (item_name, quantity_requested, unit_cost)
			 VALUES (?, ?, ?)`,
			order.ItemName, order.QuantityRequested, order.UnitCost.String()); err != nil {
			return fmt.Errorf("failed to insert stock order: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE catalog
			 SET quantity_on_hand = quantity_on_hand + ?
			 WHERE LOWER(item_name) = LOWER(?)`,
			order.QuantityRequested, order.ItemName); err != nil {
			return fmt.Errorf("failed to credit stock: %w", err)
		}

		slog.Info("Stock order committed",
			"item", order.ItemName,
			"quantity", order.QuantityRequested)
		return nil
	})
}

// GetStockOrders returns the reorder audit trail for an item, oldest first.
func (s *SQLiteLedger) GetStockOrders(ctx context.Context, itemName string) ([]model.StockOrder, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemName, "item name"); err != nil {
		return nil, err
	}

	query := `
		SELECT item_name, quantity_requested, unit_cost, created_at
		FROM stock_orders
		WHERE LOWER(item_name) = LOWER(?)
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []model.StockOrder
	for rows.Next() {
		var order model.StockOrder
		var cost string
		if err := rows.Scan(&order.ItemName, &order.QuantityRequested, &cost, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock order: %w", err)
		}
		price, err := parsePrice(cost, order.ItemName)
		if err != nil {
			return nil, err
		}
		order.UnitCost = price
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock orders: %w", err)
	}
	return orders, nil
}
