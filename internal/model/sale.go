package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleTransaction records one committed sale. Created only for items with
// classification Fulfillable or Reordered that received a Quote.
type SaleTransaction struct {
	CreatedAt  time.Time
	ItemName   string
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
	Quantity   int
}

// DeliveryAssessment is derived per order and attached to the response; it is
// never persisted as ledger state.
type DeliveryAssessment struct {
	RequestedBy   time.Time
	EstimatedShip time.Time
	Reason        string
	Feasible      bool
}
