package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// QuotedItem is one non-missing item after pricing.
type QuotedItem struct {
	Item      model.LineItem
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// QuotationResult is the quotation stage's output handed to sales.
type QuotationResult struct {
	Quoted      []QuotedItem
	PricingGaps []string
	SearchTerms []string
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
	Discount    bool
	Matches     int
}

// quotationStage prices non-missing items and derives the order-level bulk
// discount from comparable historical quote requests.
type quotationStage struct {
	ledger *guardedLedger
	cfg    Config
}

func newQuotationStage(ledger *guardedLedger, cfg Config) *quotationStage {
	return &quotationStage{ledger: ledger, cfg: cfg}
}

// Run prices the classified items, excluding Missing ones. A pricing lookup
// miss is a per-item gap: the item is excluded and the order continues.
func (s *quotationStage) Run(ctx context.Context, order *model.Order, inventory *InventoryResult) (*QuotationResult, error) {
	result := &QuotationResult{
		SearchTerms: extractSearchTerms(order.RawRequest, s.cfg.MaxSearchTerms),
		Subtotal:    decimal.Zero,
		Total:       decimal.Zero,
	}

	// Historical search first: the discount decision is order-level and
	// independent of individual prices.
	history, err := s.searchHistory(ctx, result.SearchTerms)
	if err != nil {
		slog.Warn("Quote history search failed, quoting without discount", "error", err)
	}
	result.Matches = len(history)
	for _, request := range history {
		if signalsBulkDiscount(request.Terms()) {
			result.Discount = true
			break
		}
	}

	quotable := make([]ClassifiedItem, 0, len(inventory.Classified))
	for _, item := range inventory.Classified {
		if item.Classification == model.ClassMissing {
			continue
		}
		quotable = append(quotable, item)
	}
	if len(quotable) == 0 {
		return result, nil
	}

	prices := make([]decimal.Decimal, len(quotable))
	priceErrs := make([]error, len(quotable))

	sem := make(chan struct{}, s.cfg.MaxWorkers)
	var wg sync.WaitGroup

	for i, item := range quotable {
		wg.Add(1)
		go func(idx int, classified ClassifiedItem) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				priceErrs[idx] = ctx.Err()
				return
			}

			prices[idx], priceErrs[idx] = s.lookupPrice(ctx, classified.Item.Name)
		}(i, item)
	}
	wg.Wait()

	for i, classified := range quotable {
		if err := priceErrs[i]; err != nil {
			if errors.Is(err, common.ErrItemNotFound) {
				gapErr := &common.PricingGapError{Item: classified.Item.Name}
				slog.Warn("Pricing gap", "item", classified.Item.Name, "error", gapErr)
				result.PricingGaps = append(result.PricingGaps, classified.Item.Name)
				continue
			}
			return nil, fmt.Errorf("price lookup for %q: %w", classified.Item.Name, err)
		}

		lineTotal := prices[i].Mul(decimal.NewFromInt(int64(classified.Item.Quantity)))
		result.Quoted = append(result.Quoted, QuotedItem{
			Item:      classified.Item,
			UnitPrice: prices[i],
			LineTotal: lineTotal,
		})
		result.Subtotal = result.Subtotal.Add(lineTotal)
	}

	result.Total = result.Subtotal
	if result.Discount {
		result.Total = result.Subtotal.Mul(decimal.NewFromInt(1).Sub(s.cfg.DiscountRate)).Round(2)
	}

	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}

	slog.Info("Quotation stage complete",
		"quoted", len(result.Quoted),
		"pricing_gaps", len(result.PricingGaps),
		"discount", result.Discount,
		"total", result.Total.String())
	return result, nil
}

func (s *quotationStage) searchHistory(ctx context.Context, terms []string) ([]model.QuoteRequest, error) {
	var history []model.QuoteRequest
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var searchErr error
		history, searchErr = s.ledger.SearchQuoteHistory(callCtx, terms, s.cfg.HistoryLimit)
		return searchErr
	})
	return history, err
}

func (s *quotationStage) lookupPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var lookupErr error
		price, lookupErr = s.ledger.GetUnitPrice(callCtx, name)
		return lookupErr
	})
	return price, err
}

// persist writes one Quote row per quoted item and one QuoteRequest row
// summarizing the search. Missing items never reach this point.
func (s *quotationStage) persist(ctx context.Context, result *QuotationResult) error {
	for _, quoted := range result.Quoted {
		quote := &model.Quote{
			ItemName:        quoted.Item.Name,
			Quantity:        quoted.Item.Quantity,
			UnitPrice:       quoted.UnitPrice,
			TotalPrice:      quoted.LineTotal,
			DiscountApplied: result.Discount,
		}
		if err := s.withRetry(ctx, func(callCtx context.Context) error {
			return s.ledger.WriteQuote(callCtx, quote)
		}); err != nil {
			return fmt.Errorf("failed to persist quote for %q: %w", quoted.Item.Name, err)
		}
	}

	if len(result.SearchTerms) == 0 {
		return nil
	}
	request := &model.QuoteRequest{
		RequestTerms:    strings.Join(result.SearchTerms, " "),
		MatchCount:      result.Matches,
		DiscountApplied: result.Discount,
	}
	if err := s.withRetry(ctx, func(callCtx context.Context) error {
		return s.ledger.WriteQuoteRequest(callCtx, request)
	}); err != nil {
		return fmt.Errorf("failed to persist quote request: %w", err)
	}
	return nil
}

func (s *quotationStage) withRetry(ctx context.Context, call func(context.Context) error) error {
	return common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrItemNotFound) ||
			errors.Is(err, common.ErrToolNotPermitted) ||
			errors.Is(err, common.ErrMissingItemProtection) {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		return &common.RetryableError{Err: err, Retryable: true}
	}, s.cfg.LedgerRetry)
}
