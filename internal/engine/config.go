package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/service"
)

// Config holds tuning parameters for the pipeline.
type Config struct {
	// MaxWorkers bounds concurrent per-item ledger work within a stage.
	MaxWorkers int
	// MaxSearchTerms caps the discriminating terms used for the historical
	// quote search. Too many terms over-constrain the search; too few return
	// irrelevant matches.
	MaxSearchTerms int
	// HistoryLimit caps the historical quote requests considered.
	HistoryLimit int
	// DiscountRate is the order-level bulk discount multiplier.
	DiscountRate decimal.Decimal
	// RestockLeadDays is the supplier lead added for reordered items when
	// assessing delivery feasibility.
	RestockLeadDays int
	// LedgerTimeout bounds every individual ledger call.
	LedgerTimeout time.Duration
	// LedgerRetry controls the single-retry-with-backoff policy for
	// transient ledger failures.
	LedgerRetry service.RetryOptions
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:      5,
		MaxSearchTerms:  4,
		HistoryLimit:    20,
		DiscountRate:    decimal.RequireFromString("0.10"),
		RestockLeadDays: 7,
		LedgerTimeout:   5 * time.Second,
		LedgerRetry: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}
