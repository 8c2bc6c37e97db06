// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/model"
)

// Ledger defines the transactional contract every pipeline stage uses against
// the shared store of catalog state, stock orders, quote history, and sales.
type Ledger interface {
	// Catalog operations
	GetCatalogRecord(ctx context.Context, name string) (*model.CatalogRecord, error)
	ListCatalog(ctx context.Context) ([]model.CatalogRecord, error)
	GetUnitPrice(ctx context.Context, name string) (decimal.Decimal, error)

	// Stock order operations. WriteStockOrder appends the audit row and
	// credits quantity_on_hand in the same transaction.
	WriteStockOrder(ctx context.Context, order *model.StockOrder) error
	GetStockOrders(ctx context.Context, itemName string) ([]model.StockOrder, error)

	// Quote operations
	SearchQuoteHistory(ctx context.Context, terms []string, limit int) ([]model.QuoteRequest, error)
	WriteQuote(ctx context.Context, quote *model.Quote) error
	WriteQuoteRequest(ctx context.Context, request *model.QuoteRequest) error
	GetQuotes(ctx context.Context, itemName string) ([]model.Quote, error)

	// Sale operations. WriteSale decrements quantity_on_hand and never
	// drives it below zero; an insufficient balance returns
	// common.InsufficientStockError with no row written.
	WriteSale(ctx context.Context, sale *model.SaleTransaction) error
	GetSales(ctx context.Context, itemName string) ([]model.SaleTransaction, error)

	// Order run tracking for replay detection
	GetOrderRun(ctx context.Context, requestID string) (*model.OrderRun, error)
	SaveOrderRun(ctx context.Context, run *model.OrderRun) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// CompletionStats shows the results of one order run.
type CompletionStats struct {
	TotalItems  int
	Fulfillable int
	Reordered   int
	Missing     int
	Sold        int
	Duration    time.Duration
}
