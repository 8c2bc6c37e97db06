package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
	"github.com/mdifflin/paperflow/internal/normalize"
	"github.com/mdifflin/paperflow/internal/service"
)

// Orchestrator owns pipeline state, invokes the stages in order, propagates
// classifications and computed values between them, and aggregates the final
// response.
type Orchestrator struct {
	ledger     service.Ledger
	normalizer *normalize.Normalizer
	cfg        Config
}

// New creates an orchestrator with the default configuration.
func New(ledger service.Ledger, normalizer *normalize.Normalizer) *Orchestrator {
	return NewWithConfig(ledger, normalizer, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(ledger service.Ledger, normalizer *normalize.Normalizer, cfg Config) *Orchestrator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	return &Orchestrator{
		ledger:     ledger,
		normalizer: normalizer,
		cfg:        cfg,
	}
}

// ProcessOrder runs one order through the pipeline:
// Normalizing → Classifying → Quoting → Selling → Done. A request that
// already reached Done replays as a no-op, returning the stored response
// without ledger writes.
func (o *Orchestrator) ProcessOrder(ctx context.Context, rawRequest, dateStr string) (*model.OrderResult, error) {
	started := time.Now()
	slog.Info("Processing order", "request_len", len(rawRequest))

	order, err := o.normalizer.Normalize(ctx, rawRequest, dateStr)
	if err != nil {
		result := o.failedResult(model.GenerateRequestID(rawRequest, time.Time{}),
			model.StateNormalizing,
			"The order request could not be parsed into line items.")
		o.persistRun(ctx, result)
		return result, err
	}

	if replay, found := o.replayedResult(ctx, order.RequestID); found {
		slog.Info("Order already completed, replay is a no-op",
			"request_id", order.RequestID)
		return replay, nil
	}

	missing := newMissingSet()

	// Classifying
	o.saveState(ctx, order.RequestID, model.StateClassifying)
	inventory, err := newInventoryStage(
		newGuardedLedger(o.ledger, model.StateClassifying, missing), o.cfg).Run(ctx, order)
	if err != nil {
		if ctx.Err() != nil {
			return o.failedResult(order.RequestID, model.StateClassifying, "The order was canceled."), err
		}
		result := o.failedResult(order.RequestID, model.StateClassifying,
			"The inventory ledger was unavailable; no items were classified.")
		o.persistRun(ctx, result)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return o.failedResult(order.RequestID, model.StateClassifying, "The order was canceled."), err
	}

	// Quoting
	o.saveState(ctx, order.RequestID, model.StateQuoting)
	quotation, err := newQuotationStage(
		newGuardedLedger(o.ledger, model.StateQuoting, missing), o.cfg).Run(ctx, order, inventory)
	if err != nil {
		result := o.failedResult(order.RequestID, model.StateQuoting,
			"Quoting failed before any sale was committed.")
		o.persistRun(ctx, result)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return o.failedResult(order.RequestID, model.StateQuoting, "The order was canceled."), err
	}

	// Selling
	o.saveState(ctx, order.RequestID, model.StateSelling)
	sales, err := newSalesStage(
		newGuardedLedger(o.ledger, model.StateSelling, missing), o.cfg).Run(ctx, order, quotation, inventory)
	if err != nil {
		result := o.failedResult(order.RequestID, model.StateSelling,
			"Sales finalization failed; committed rows remain valid audit records.")
		o.persistRun(ctx, result)
		return result, err
	}

	result := o.aggregate(order, inventory, quotation, sales)
	o.persistRun(ctx, result)

	slog.Info("Order complete",
		"request_id", order.RequestID,
		"items", len(result.Items),
		"missing", len(result.Missing),
		"total", result.Total.String(),
		"duration", time.Since(started))
	return result, nil
}

// replayedResult returns the stored response for a request that already
// reached Done.
func (o *Orchestrator) replayedResult(ctx context.Context, requestID string) (*model.OrderResult, bool) {
	run, err := o.ledger.GetOrderRun(ctx, requestID)
	if err != nil {
		slog.Warn("Failed to check for prior run", "error", err)
		return nil, false
	}
	if run == nil || run.State != model.StateDone || run.Response == "" {
		return nil, false
	}

	var result model.OrderResult
	if err := json.Unmarshal([]byte(run.Response), &result); err != nil {
		slog.Warn("Stored response is unreadable, reprocessing",
			"request_id", requestID, "error", err)
		return nil, false
	}
	return &result, true
}

// aggregate joins the three stage outputs into the final response.
func (o *Orchestrator) aggregate(order *model.Order, inventory *InventoryResult, quotation *QuotationResult, sales *SalesResult) *model.OrderResult {
	result := &model.OrderResult{
		RequestID:   order.RequestID,
		State:       model.StateDone,
		CompletedAt: time.Now().UTC(),
		Missing:     inventory.Missing,
		Subtotal:    quotation.Subtotal,
		Total:       quotation.Total,
		Discount:    quotation.Discount,
		Delivery:    sales.Delivery,
	}

	gaps := make(map[string]bool, len(quotation.PricingGaps))
	for _, name := range quotation.PricingGaps {
		gaps[strings.ToLower(name)] = true
	}
	conflicts := make(map[string]bool, len(sales.InsufficientStock))
	for _, name := range sales.InsufficientStock {
		conflicts[strings.ToLower(name)] = true
	}

	quotes := make(map[string]*model.Quote, len(quotation.Quoted))
	for _, quoted := range quotation.Quoted {
		quotes[strings.ToLower(quoted.Item.Name)] = &model.Quote{
			ItemName:        quoted.Item.Name,
			Quantity:        quoted.Item.Quantity,
			UnitPrice:       quoted.UnitPrice,
			TotalPrice:      quoted.LineTotal,
			DiscountApplied: quotation.Discount,
		}
	}
	sold := make(map[string]*model.SaleTransaction, len(sales.Sold))
	for i := range sales.Sold {
		sold[strings.ToLower(sales.Sold[i].Sale.ItemName)] = &sales.Sold[i].Sale
	}

	for _, classified := range inventory.Classified {
		key := strings.ToLower(classified.Item.Name)
		item := model.ItemResult{
			Item:           classified.Item,
			Classification: classified.Classification,
			Quote:          quotes[key],
			Sale:           sold[key],
		}

		switch {
		case classified.Classification == model.ClassMissing:
			item.Outcome = model.OutcomeMissing
			item.Detail = "not in catalog; excluded by policy"
		case gaps[key]:
			item.Outcome = model.OutcomePricingGap
			item.Detail = "no price available; transient, retry later"
		case conflicts[key]:
			item.Outcome = model.OutcomeInsufficientStock
			item.Detail = "stock depleted before sale; transient, retry later"
		default:
			item.Outcome = model.OutcomeSold
		}

		result.Items = append(result.Items, item)
	}

	result.Explanation = buildExplanation(result)
	return result
}

// buildExplanation renders the customer-facing summary text.
func buildExplanation(result *model.OrderResult) string {
	var b strings.Builder

	soldCount := 0
	for _, item := range result.Items {
		if item.Outcome == model.OutcomeSold {
			soldCount++
		}
	}

	switch {
	case soldCount == 0:
		b.WriteString("No items could be sold from this order.")
	case result.Discount:
		fmt.Fprintf(&b, "Your order of %d item(s) totals $%s after a bulk discount (subtotal $%s).",
			soldCount, result.Total.StringFixed(2), result.Subtotal.StringFixed(2))
	default:
		fmt.Fprintf(&b, "Your order of %d item(s) totals $%s.", soldCount, result.Total.StringFixed(2))
	}

	if len(result.Missing) > 0 {
		fmt.Fprintf(&b, " Not in our catalog: %s.", strings.Join(result.Missing, ", "))
	}

	for _, item := range result.Items {
		if item.Outcome == model.OutcomePricingGap || item.Outcome == model.OutcomeInsufficientStock {
			fmt.Fprintf(&b, " %s was excluded (%s).", item.Item.Name, item.Detail)
		}
	}

	if result.Delivery != nil {
		if result.Delivery.Feasible {
			fmt.Fprintf(&b, " Estimated delivery by %s.",
				result.Delivery.EstimatedShip.Format("2006-01-02"))
		} else {
			fmt.Fprintf(&b, " Delivery by the requested date is not feasible: %s.",
				result.Delivery.Reason)
		}
	}

	return b.String()
}

func (o *Orchestrator) failedResult(requestID string, reached model.OrderState, explanation string) *model.OrderResult {
	return &model.OrderResult{
		RequestID:   requestID,
		State:       model.StateFailed,
		CompletedAt: time.Now().UTC(),
		Explanation: explanation + " Pipeline stopped in state " + string(reached) + ".",
	}
}

// saveState records a non-terminal transition. Failures are logged, not
// fatal: the run record is bookkeeping, the ledger rows are the audit.
func (o *Orchestrator) saveState(ctx context.Context, requestID string, state model.OrderState) {
	err := o.ledger.SaveOrderRun(ctx, &model.OrderRun{
		RequestID: requestID,
		State:     state,
	})
	if err != nil {
		slog.Warn("Failed to save order state", "state", state, "error", err)
	}
}

// persistRun stores the terminal run record with the serialized response.
func (o *Orchestrator) persistRun(ctx context.Context, result *model.OrderResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		slog.Warn("Failed to serialize order result", "error", err)
		payload = nil
	}

	if err := o.ledger.SaveOrderRun(ctx, &model.OrderRun{
		RequestID: result.RequestID,
		State:     result.State,
		Response:  string(payload),
	}); err != nil {
		slog.Warn("Failed to persist order run", "error", err)
	}
}

// Stats summarizes a completed result for operators.
func Stats(result *model.OrderResult, duration time.Duration) service.CompletionStats {
	stats := service.CompletionStats{
		TotalItems: len(result.Items),
		Duration:   duration,
	}
	for _, item := range result.Items {
		switch item.Classification {
		case model.ClassFulfillable:
			stats.Fulfillable++
		case model.ClassReordered:
			stats.Reordered++
		case model.ClassMissing:
			stats.Missing++
		}
		if item.Outcome == model.OutcomeSold {
			stats.Sold++
		}
	}
	return stats
}

// IsFatal reports whether an error aborts the whole order rather than a
// single item.
func IsFatal(err error) bool {
	return errors.Is(err, common.ErrUnparseableOrder) ||
		errors.Is(err, common.ErrInventoryUnavailable)
}
