package storage

import (
	"context"
	"fmt"

	"github.com/mdifflin/paperflow/internal/model"
)

// validateContext ensures a usable context was supplied.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

// validateString ensures a required string field is non-empty.
func validateString(value, field string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	return nil
}

func validateStockOrder(order *model.StockOrder) error {
	if order == nil {
		return fmt.Errorf("stock order cannot be nil")
	}
	if err := validateString(order.ItemName, "item name"); err != nil {
		return err
	}
	if order.QuantityRequested <= 0 {
		return fmt.Errorf("stock order quantity must be positive, got %d", order.QuantityRequested)
	}
	return nil
}

func validateQuote(quote *model.Quote) error {
	if quote == nil {
		return fmt.Errorf("quote cannot be nil")
	}
	if err := validateString(quote.ItemName, "item name"); err != nil {
		return err
	}
	if quote.Quantity <= 0 {
		return fmt.Errorf("quote quantity must be positive, got %d", quote.Quantity)
	}
	return nil
}

func validateSale(sale *model.SaleTransaction) error {
	if sale == nil {
		return fmt.Errorf("sale cannot be nil")
	}
	if err := validateString(sale.ItemName, "item name"); err != nil {
		return err
	}
	if sale.Quantity <= 0 {
		return fmt.Errorf("sale quantity must be positive, got %d", sale.Quantity)
	}
	return nil
}
