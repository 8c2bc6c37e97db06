// Package engine implements the order fulfillment pipeline: inventory
// classification, quotation, and sales finalization over a shared ledger.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
	"github.com/mdifflin/paperflow/internal/service"
)

// Operation names one ledger tool a stage may invoke. Each stage gets a
// fixed, enumerable menu; anything outside the menu is rejected before it
// reaches the ledger.
type Operation string

// Ledger operations.
const (
	OpGetCatalogRecord   Operation = "get_catalog_record"
	OpWriteStockOrder    Operation = "write_stock_order"
	OpSearchQuoteHistory Operation = "search_quote_history"
	OpGetUnitPrice       Operation = "get_unit_price"
	OpWriteQuote         Operation = "write_quote"
	OpWriteQuoteRequest  Operation = "write_quote_request"
	OpWriteSale          Operation = "write_sale"
)

// mutating operations may never name an item classified Missing.
var mutatingOps = map[Operation]bool{
	OpWriteStockOrder: true,
	OpWriteQuote:      true,
	OpWriteSale:       true,
}

// stageToolsets is the per-stage tool menu.
var stageToolsets = map[model.OrderState]map[Operation]bool{
	model.StateClassifying: {
		OpGetCatalogRecord: true,
		OpWriteStockOrder:  true,
	},
	model.StateQuoting: {
		OpSearchQuoteHistory: true,
		OpGetUnitPrice:       true,
		OpWriteQuote:         true,
		OpWriteQuoteRequest:  true,
	},
	model.StateSelling: {
		OpWriteSale: true,
	},
}

// missingSet tracks items classified Missing across the run. Shared by all
// stage ledgers so a Missing verdict in the inventory stage blocks writes in
// every later stage.
type missingSet struct {
	names map[string]bool
	mu    sync.RWMutex
}

func newMissingSet() *missingSet {
	return &missingSet{names: make(map[string]bool)}
}

func (m *missingSet) add(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[strings.ToLower(strings.TrimSpace(name))] = true
}

func (m *missingSet) has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[strings.ToLower(strings.TrimSpace(name))]
}

func (m *missingSet) list() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.names))
	for name := range m.names {
		names = append(names, name)
	}
	return names
}

// guardedLedger is the ledger handle handed to a stage. Every call is
// validated against the stage's tool menu and the Missing-item invariant
// before it touches storage.
type guardedLedger struct {
	ledger  service.Ledger
	missing *missingSet
	allowed map[Operation]bool
	stage   model.OrderState
}

func newGuardedLedger(ledger service.Ledger, stage model.OrderState, missing *missingSet) *guardedLedger {
	return &guardedLedger{
		ledger:  ledger,
		missing: missing,
		allowed: stageToolsets[stage],
		stage:   stage,
	}
}

// authorize rejects operations outside the stage menu and any operation
// naming a Missing item. Reads of a missing item's price are rejected too;
// only the inventory stage's existence check may touch such a name.
func (g *guardedLedger) authorize(op Operation, itemName string) error {
	if !g.allowed[op] {
		return fmt.Errorf("%w: %s in stage %s", common.ErrToolNotPermitted, op, g.stage)
	}
	if itemName != "" && g.missing.has(itemName) {
		if mutatingOps[op] || op == OpGetUnitPrice {
			return fmt.Errorf("%w: %s on %q", common.ErrMissingItemProtection, op, itemName)
		}
	}
	return nil
}

func (g *guardedLedger) GetCatalogRecord(ctx context.Context, name string) (*model.CatalogRecord, error) {
	if err := g.authorize(OpGetCatalogRecord, name); err != nil {
		return nil, err
	}
	return g.ledger.GetCatalogRecord(ctx, name)
}

func (g *guardedLedger) WriteStockOrder(ctx context.Context, order *model.StockOrder) error {
	if err := g.authorize(OpWriteStockOrder, order.ItemName); err != nil {
		return err
	}
	return g.ledger.WriteStockOrder(ctx, order)
}

func (g *guardedLedger) SearchQuoteHistory(ctx context.Context, terms []string, limit int) ([]model.QuoteRequest, error) {
	if err := g.authorize(OpSearchQuoteHistory, ""); err != nil {
		return nil, err
	}
	return g.ledger.SearchQuoteHistory(ctx, terms, limit)
}

func (g *guardedLedger) GetUnitPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	if err := g.authorize(OpGetUnitPrice, name); err != nil {
		return decimal.Zero, err
	}
	return g.ledger.GetUnitPrice(ctx, name)
}

func (g *guardedLedger) WriteQuote(ctx context.Context, quote *model.Quote) error {
	if err := g.authorize(OpWriteQuote, quote.ItemName); err != nil {
		return err
	}
	return g.ledger.WriteQuote(ctx, quote)
}

func (g *guardedLedger) WriteQuoteRequest(ctx context.Context, request *model.QuoteRequest) error {
	if err := g.authorize(OpWriteQuoteRequest, ""); err != nil {
		return err
	}
	return g.ledger.WriteQuoteRequest(ctx, request)
}

func (g *guardedLedger) WriteSale(ctx context.Context, sale *model.SaleTransaction) error {
	if err := g.authorize(OpWriteSale, sale.ItemName); err != nil {
		return err
	}
	return g.ledger.WriteSale(ctx, sale)
}
