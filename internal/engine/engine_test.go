package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
	"github.com/mdifflin/paperflow/internal/normalize"
	"github.com/mdifflin/paperflow/internal/service"
	"github.com/mdifflin/paperflow/internal/storage"
)

func newTestLedger(t *testing.T) *storage.SQLiteLedger {
	t.Helper()
	ledger, err := storage.NewSQLiteLedger(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	require.NoError(t, ledger.Migrate(context.Background()))
	return ledger
}

// testConfig keeps retry backoff short so failure tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LedgerRetry = service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
	return cfg
}

// flakyLedger injects failures into individual ledger operations.
type flakyLedger struct {
	service.Ledger
	catalogErr error
	priceErr   error
	saleErr    error
}

func (f *flakyLedger) GetCatalogRecord(ctx context.Context, name string) (*model.CatalogRecord, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.Ledger.GetCatalogRecord(ctx, name)
}

func (f *flakyLedger) GetUnitPrice(ctx context.Context, name string) (decimal.Decimal, error) {
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return f.Ledger.GetUnitPrice(ctx, name)
}

func (f *flakyLedger) WriteSale(ctx context.Context, sale *model.SaleTransaction) error {
	if f.saleErr != nil {
		return f.saleErr
	}
	return f.Ledger.WriteSale(ctx, sale)
}

func TestProcessOrder_FulfillableWithBulkDiscount(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())
	ctx := context.Background()

	result, err := orchestrator.ProcessOrder(ctx,
		"- 200 boxes of Envelopes\n(Date of request: 2999-01-01)", "")
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 1)
	assert.Equal(t, model.ClassFulfillable, result.Items[0].Classification)
	assert.Equal(t, model.OutcomeSold, result.Items[0].Outcome)

	// The seeded history has a comparable envelopes request mentioning a bulk
	// discount, so the 10% order-level discount applies.
	assert.True(t, result.Discount)
	assert.True(t, result.Subtotal.Equal(decimal.RequireFromString("20")),
		"subtotal = %s", result.Subtotal)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("18")),
		"total = %s", result.Total)
	assert.Contains(t, result.Explanation, "bulk discount")

	record, err := ledger.GetCatalogRecord(ctx, "Envelopes")
	require.NoError(t, err)
	assert.Equal(t, 400, record.QuantityOnHand)

	sales, err := ledger.GetSales(ctx, "Envelopes")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].TotalPrice.Equal(decimal.RequireFromString("18")))

	quotes, err := ledger.GetQuotes(ctx, "Envelopes")
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].DiscountApplied)

	require.NotNil(t, result.Delivery)
	assert.True(t, result.Delivery.Feasible)
}

func TestProcessOrder_ShortfallTriggersReorder(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())
	ctx := context.Background()

	// Poster boards are seeded with 120 on hand and a threshold of 20, so a
	// request for 150 is a shortfall of 30 and a reorder of 30+20.
	result, err := orchestrator.ProcessOrder(ctx,
		"- 150 units of Poster boards\n(Date of request: 2100-01-01)", "")
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 1)
	assert.Equal(t, model.ClassReordered, result.Items[0].Classification)
	assert.Equal(t, model.OutcomeSold, result.Items[0].Outcome)
	assert.False(t, result.Discount)

	orders, err := ledger.GetStockOrders(ctx, "Poster boards")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 50, orders[0].QuantityRequested)

	// 120 on hand + 50 reordered - 150 sold.
	record, err := ledger.GetCatalogRecord(ctx, "Poster boards")
	require.NoError(t, err)
	assert.Equal(t, 20, record.QuantityOnHand)

	require.NotNil(t, result.Delivery)
	assert.True(t, result.Delivery.Feasible)
}

func TestProcessOrder_DuplicateShortfallLinesSingleReorder(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())
	ctx := context.Background()

	// Paper rolls are seeded with 80 on hand, so both lines are shortfalls on
	// the same record. Only one stock order may be placed per run.
	result, err := orchestrator.ProcessOrder(ctx,
		"- 100 rolls of Paper rolls\n- 90 rolls of Paper rolls\n(Date of request: 2999-01-01)", "")
	require.NoError(t, err)
	require.Equal(t, model.StateDone, result.State)

	orders, err := ledger.GetStockOrders(ctx, "Paper rolls")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	for _, item := range result.Items {
		assert.Equal(t, model.ClassReordered, item.Classification)
	}
}

func TestInventoryStage_RunCanceled(t *testing.T) {
	ledger := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stage := newInventoryStage(
		newGuardedLedger(ledger, model.StateClassifying, newMissingSet()), testConfig())
	_, err := stage.Run(ctx, &model.Order{
		Items: []model.LineItem{{Name: "Envelopes", Quantity: 5}},
	})

	// A canceled caller must surface as cancellation, not as a ledger outage.
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrInventoryUnavailable)
	assert.False(t, IsFatal(err))
}

func TestProcessOrder_MissingItemIsExcluded(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())
	ctx := context.Background()

	result, err := orchestrator.ProcessOrder(ctx,
		"- 10 packs of Vellum sheets\n- 5 boxes of Envelopes\n(Date of request: 2999-01-01)", "")
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 2)
	assert.Equal(t, []string{"Vellum sheets"}, result.Missing)

	var missingItem, soldItem *model.ItemResult
	for i := range result.Items {
		switch result.Items[i].Item.Name {
		case "Vellum sheets":
			missingItem = &result.Items[i]
		case "Envelopes":
			soldItem = &result.Items[i]
		}
	}
	require.NotNil(t, missingItem)
	require.NotNil(t, soldItem)

	assert.Equal(t, model.ClassMissing, missingItem.Classification)
	assert.Equal(t, model.OutcomeMissing, missingItem.Outcome)
	assert.Nil(t, missingItem.Quote)
	assert.Nil(t, missingItem.Sale)
	assert.Equal(t, model.OutcomeSold, soldItem.Outcome)

	// Missing means excluded from every ledger write.
	orders, err := ledger.GetStockOrders(ctx, "Vellum sheets")
	require.NoError(t, err)
	assert.Empty(t, orders)
	quotes, err := ledger.GetQuotes(ctx, "Vellum sheets")
	require.NoError(t, err)
	assert.Empty(t, quotes)
	sales, err := ledger.GetSales(ctx, "Vellum sheets")
	require.NoError(t, err)
	assert.Empty(t, sales)

	assert.Contains(t, result.Explanation, "Vellum sheets")
}

func TestProcessOrder_ReplayIsNoOp(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())
	ctx := context.Background()
	raw := "- 200 boxes of Envelopes\n(Date of request: 2999-01-01)"

	first, err := orchestrator.ProcessOrder(ctx, raw, "")
	require.NoError(t, err)
	require.Equal(t, model.StateDone, first.State)

	second, err := orchestrator.ProcessOrder(ctx, raw, "")
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
	assert.Equal(t, model.StateDone, second.State)
	assert.True(t, first.Total.Equal(second.Total))

	// The replay produced no new ledger writes.
	sales, err := ledger.GetSales(ctx, "Envelopes")
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	record, err := ledger.GetCatalogRecord(ctx, "Envelopes")
	require.NoError(t, err)
	assert.Equal(t, 400, record.QuantityOnHand)
}

func TestProcessOrder_UnparseableRequest(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())

	result, err := orchestrator.ProcessOrder(context.Background(), "hello there", "")
	require.ErrorIs(t, err, common.ErrUnparseableOrder)
	assert.True(t, IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, model.StateFailed, result.State)
}

func TestProcessOrder_InventoryUnavailable(t *testing.T) {
	ledger := newTestLedger(t)
	flaky := &flakyLedger{Ledger: ledger, catalogErr: errors.New("disk I/O error")}
	orchestrator := NewWithConfig(flaky, normalize.New(nil), testConfig())

	result, err := orchestrator.ProcessOrder(context.Background(),
		"- 5 boxes of Envelopes\n(Date of request: 2999-01-01)", "")
	require.ErrorIs(t, err, common.ErrInventoryUnavailable)
	assert.True(t, IsFatal(err))
	require.NotNil(t, result)
	assert.Equal(t, model.StateFailed, result.State)

	// Aborted classification leaves no partial writes behind.
	sales, salesErr := ledger.GetSales(context.Background(), "Envelopes")
	require.NoError(t, salesErr)
	assert.Empty(t, sales)
}

func TestProcessOrder_PricingGapExcludesItem(t *testing.T) {
	ledger := newTestLedger(t)
	flaky := &flakyLedger{
		Ledger:   ledger,
		priceErr: fmt.Errorf("%w: price feed stale", common.ErrItemNotFound),
	}
	orchestrator := NewWithConfig(flaky, normalize.New(nil), testConfig())
	ctx := context.Background()

	result, err := orchestrator.ProcessOrder(ctx,
		"- 5 boxes of Envelopes\n(Date of request: 2999-01-01)", "")
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 1)
	assert.Equal(t, model.OutcomePricingGap, result.Items[0].Outcome)
	assert.True(t, result.Total.IsZero())

	sales, err := ledger.GetSales(ctx, "Envelopes")
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestProcessOrder_StockConflictExcludesItem(t *testing.T) {
	ledger := newTestLedger(t)
	flaky := &flakyLedger{
		Ledger:  ledger,
		saleErr: &common.InsufficientStockError{Item: "Envelopes", Quantity: 5},
	}
	orchestrator := NewWithConfig(flaky, normalize.New(nil), testConfig())

	result, err := orchestrator.ProcessOrder(context.Background(),
		"- 5 boxes of Envelopes\n(Date of request: 2999-01-01)", "")
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 1)
	assert.Equal(t, model.OutcomeInsufficientStock, result.Items[0].Outcome)
	assert.Empty(t, result.SoldItems())
	assert.Contains(t, result.Explanation, "excluded")
}

func TestProcessOrder_ExtractorFallback(t *testing.T) {
	ledger := newTestLedger(t)
	extractor := &MockExtractor{}
	orchestrator := NewWithConfig(ledger, normalize.New(extractor), testConfig())
	ctx := context.Background()

	result, err := orchestrator.ProcessOrder(ctx,
		"please send 20 reams of A4 paper, and 5 boxes of Envelopes (Date of request: 2999-03-01)", "")
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.Calls())
	assert.Equal(t, model.StateDone, result.State)
	require.Len(t, result.Items, 2)
	assert.Len(t, result.SoldItems(), 2)
}

func TestProcessOrder_InfeasibleDeliveryDate(t *testing.T) {
	ledger := newTestLedger(t)
	orchestrator := NewWithConfig(ledger, normalize.New(nil), testConfig())

	result, err := orchestrator.ProcessOrder(context.Background(),
		"- 5 boxes of Envelopes\n(Date of request: 2020-01-01)", "")
	require.NoError(t, err)

	// The sale still commits; feasibility is advisory.
	assert.Len(t, result.SoldItems(), 1)
	require.NotNil(t, result.Delivery)
	assert.False(t, result.Delivery.Feasible)
	assert.Contains(t, result.Delivery.Reason, "shipping lead time exceeds requested date")
	assert.Contains(t, result.Explanation, "not feasible")
}

func TestStats(t *testing.T) {
	result := &model.OrderResult{
		Items: []model.ItemResult{
			{Classification: model.ClassFulfillable, Outcome: model.OutcomeSold},
			{Classification: model.ClassReordered, Outcome: model.OutcomeSold},
			{Classification: model.ClassMissing, Outcome: model.OutcomeMissing},
			{Classification: model.ClassFulfillable, Outcome: model.OutcomePricingGap},
		},
	}

	stats := Stats(result, 2*time.Second)
	assert.Equal(t, 4, stats.TotalItems)
	assert.Equal(t, 2, stats.Fulfillable)
	assert.Equal(t, 1, stats.Reordered)
	assert.Equal(t, 1, stats.Missing)
	assert.Equal(t, 2, stats.Sold)
	assert.Equal(t, 2*time.Second, stats.Duration)
}
