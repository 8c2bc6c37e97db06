package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// ClassifiedItem is one line item after the inventory stage.
type ClassifiedItem struct {
	Record         *model.CatalogRecord
	Item           model.LineItem
	Classification model.Classification
}

// InventoryResult is the inventory stage's output handed to quotation.
type InventoryResult struct {
	Classified []ClassifiedItem
	Missing    []string
}

// inventoryStage classifies each line item against the ledger and places
// stock orders for shortfalls.
type inventoryStage struct {
	ledger *guardedLedger
	cfg    Config

	// reordered tracks items already acted on within the current run so
	// re-classification cannot issue a second stock order.
	reordered map[string]bool
	mu        sync.Mutex
}

func newInventoryStage(ledger *guardedLedger, cfg Config) *inventoryStage {
	return &inventoryStage{
		ledger:    ledger,
		cfg:       cfg,
		reordered: make(map[string]bool),
	}
}

// Run classifies all items concurrently. A ledger failure that survives its
// retry aborts the whole stage with ErrInventoryUnavailable; no partial
// classification is handed downstream.
func (s *inventoryStage) Run(ctx context.Context, order *model.Order) (*InventoryResult, error) {
	classified := make([]ClassifiedItem, len(order.Items))
	itemErrs := make([]error, len(order.Items))

	sem := make(chan struct{}, s.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, item := range order.Items {
		wg.Add(1)
		go func(idx int, lineItem model.LineItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				itemErrs[idx] = ctx.Err()
				return
			}

			classified[idx], itemErrs[idx] = s.classifyItem(ctx, lineItem)
		}(i, item)
	}
	wg.Wait()

	result := &InventoryResult{}
	for i, err := range itemErrs {
		if err != nil {
			// A canceled caller is not a ledger outage.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", common.ErrInventoryUnavailable, err)
		}
		result.Classified = append(result.Classified, classified[i])
		if classified[i].Classification == model.ClassMissing {
			result.Missing = append(result.Missing, classified[i].Item.Name)
		}
	}

	slog.Info("Inventory stage complete",
		"items", len(result.Classified),
		"missing", len(result.Missing))
	return result, nil
}

// classifyItem resolves one line item: Missing when no catalog record
// exists, Fulfillable when stock covers the quantity, otherwise Reordered
// with exactly one stock order per run.
func (s *inventoryStage) classifyItem(ctx context.Context, item model.LineItem) (ClassifiedItem, error) {
	var record *model.CatalogRecord

	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var lookupErr error
		record, lookupErr = s.ledger.GetCatalogRecord(callCtx, item.Name)
		return lookupErr
	})

	if errors.Is(err, common.ErrItemNotFound) {
		s.ledger.missing.add(item.Name)
		slog.Warn("Item not found in catalog", "item", item.Name)
		return ClassifiedItem{
			Item:           item,
			Classification: model.ClassMissing,
		}, nil
	}
	if err != nil {
		return ClassifiedItem{}, err
	}

	if record.QuantityOnHand >= item.Quantity {
		return ClassifiedItem{
			Item:           item,
			Classification: model.ClassFulfillable,
			Record:         record,
		}, nil
	}

	// Shortfall: place one stock order covering the gap plus the record's
	// reorder threshold as buffer.
	if err := s.reorder(ctx, item, record); err != nil {
		return ClassifiedItem{}, err
	}

	return ClassifiedItem{
		Item:           item,
		Classification: model.ClassReordered,
		Record:         record,
	}, nil
}

func (s *inventoryStage) reorder(ctx context.Context, item model.LineItem, record *model.CatalogRecord) error {
	key := strings.ToLower(strings.TrimSpace(item.Name))

	s.mu.Lock()
	if s.reordered[key] {
		s.mu.Unlock()
		slog.Debug("Reorder already issued this run", "item", item.Name)
		return nil
	}
	s.reordered[key] = true
	s.mu.Unlock()

	shortfall := item.Quantity - record.QuantityOnHand
	quantity := shortfall + record.ReorderThreshold

	err := s.withRetry(ctx, func(callCtx context.Context) error {
		return s.ledger.WriteStockOrder(callCtx, &model.StockOrder{
			ItemName:          record.ItemName,
			QuantityRequested: quantity,
			UnitCost:          record.UnitCost,
		})
	})
	if err != nil {
		// Release the marker so a retried run can still place the order.
		s.mu.Lock()
		delete(s.reordered, key)
		s.mu.Unlock()
		return err
	}

	record.QuantityOnHand += quantity

	slog.Info("Reorder placed",
		"item", record.ItemName,
		"shortfall", shortfall,
		"quantity", quantity)
	return nil
}

// withRetry applies the stage's timeout and single-retry policy to one
// ledger call.
func (s *inventoryStage) withRetry(ctx context.Context, call func(context.Context) error) error {
	return common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			return nil
		}
		// Catalog misses and policy rejections are verdicts, not failures.
		if errors.Is(err, common.ErrItemNotFound) ||
			errors.Is(err, common.ErrToolNotPermitted) ||
			errors.Is(err, common.ErrMissingItemProtection) {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		return &common.RetryableError{Err: err, Retryable: true}
	}, s.cfg.LedgerRetry)
}
