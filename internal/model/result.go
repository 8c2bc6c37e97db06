package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemOutcome distinguishes why an item did or did not make it through the
// pipeline. A missing item is a business decision; a pricing gap or a stock
// conflict is transient and retryable by the caller.
type ItemOutcome string

// Item outcome constants.
const (
	OutcomeSold              ItemOutcome = "SOLD"
	OutcomeMissing           ItemOutcome = "MISSING"
	OutcomePricingGap        ItemOutcome = "PRICING_GAP"
	OutcomeInsufficientStock ItemOutcome = "INSUFFICIENT_STOCK"
)

// ItemResult carries one line item's journey through the pipeline.
type ItemResult struct {
	Item           LineItem
	Classification Classification
	Outcome        ItemOutcome
	Quote          *Quote
	Sale           *SaleTransaction
	Detail         string
}

// OrderResult aggregates the final response: per-item classifications,
// quotes, sales, and delivery feasibility.
type OrderResult struct {
	CompletedAt time.Time
	RequestID   string
	State       OrderState
	Missing     []string
	Items       []ItemResult
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
	Discount    bool
	Delivery    *DeliveryAssessment
	Explanation string
}

// SoldItems returns the results that reached a committed sale.
func (r *OrderResult) SoldItems() []ItemResult {
	var sold []ItemResult
	for _, item := range r.Items {
		if item.Outcome == OutcomeSold {
			sold = append(sold, item)
		}
	}
	return sold
}
