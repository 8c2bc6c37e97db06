// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Classification indicates how the inventory stage resolved a line item.
type Classification string

// Classification constants.
const (
	// ClassUnclassified is the zero state before the inventory stage runs.
	ClassUnclassified Classification = "UNCLASSIFIED"
	// ClassFulfillable means stock on hand covers the requested quantity.
	ClassFulfillable Classification = "FULFILLABLE"
	// ClassReordered means the item exists but a stock order was placed to
	// cover a shortfall.
	ClassReordered Classification = "REORDERED"
	// ClassMissing means no catalog record exists for the item name. Missing
	// is terminal: the item never appears in reorder, quote, or sale writes.
	ClassMissing Classification = "MISSING"
)

// LineItem is a single requested item after normalization. Immutable once
// classified.
type LineItem struct {
	Name     string
	Type     string // "paper" or "product"
	Quantity int
}

// Order is a normalized customer request: the ordered line items, the
// requested-by date, and the raw request text retained for the quotation
// stage's term extraction.
type Order struct {
	RequestedBy time.Time
	RawRequest  string
	RequestID   string
	Items       []LineItem
}

// GenerateRequestID creates a stable hash for replay detection.
func GenerateRequestID(rawRequest string, requestedBy time.Time) string {
	data := fmt.Sprintf("%s:%s",
		strings.TrimSpace(rawRequest),
		requestedBy.Format("2006-01-02"))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// OrderState tracks pipeline progress for an order run.
type OrderState string

// Pipeline states. Failed is terminal and reachable from any stage.
const (
	StateNormalizing OrderState = "NORMALIZING"
	StateClassifying OrderState = "CLASSIFYING"
	StateQuoting     OrderState = "QUOTING"
	StateSelling     OrderState = "SELLING"
	StateDone        OrderState = "DONE"
	StateFailed      OrderState = "FAILED"
)

// OrderRun is the persisted record of one order execution, keyed by request
// hash. A run that already reached StateDone makes a replay of the same
// request a no-op for ledger writes.
type OrderRun struct {
	CreatedAt   time.Time
	CompletedAt time.Time
	RequestID   string
	State       OrderState
	Response    string // JSON-encoded OrderResult for completed runs
}
