package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogRecord is the ledger's view of one stocked item. Mutated only
// through inventory and sales stage transactions.
type CatalogRecord struct {
	CreatedAt        time.Time
	ItemName         string
	UnitCost         decimal.Decimal
	QuantityOnHand   int
	ReorderThreshold int
}

// StockOrder is an append-only audit row for a reorder action. One row per
// reorder transaction; never merged or deleted.
type StockOrder struct {
	CreatedAt         time.Time
	ItemName          string
	UnitCost          decimal.Decimal
	QuantityRequested int
}
