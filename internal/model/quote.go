package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteRequest summarizes the historical-search side of one quotation run:
// the terms used and whether they signaled a bulk discount. Rows are searched
// by term overlap when later orders look for comparable history.
type QuoteRequest struct {
	CreatedAt       time.Time
	RequestTerms    string // space-joined search terms
	MatchCount      int
	DiscountApplied bool
}

// Quote is the per-item pricing result. Immutable once created.
type Quote struct {
	CreatedAt       time.Time
	ItemName        string
	UnitPrice       decimal.Decimal
	TotalPrice      decimal.Decimal
	Quantity        int
	DiscountApplied bool
}

// Terms splits the stored request terms back into tokens.
func (q *QuoteRequest) Terms() []string {
	return strings.Fields(q.RequestTerms)
}
