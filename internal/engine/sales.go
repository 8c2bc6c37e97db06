package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// SoldItem is one committed sale plus its source quote.
type SoldItem struct {
	Quoted QuotedItem
	Sale   model.SaleTransaction
}

// SalesResult is the sales stage's output.
type SalesResult struct {
	Sold              []SoldItem
	InsufficientStock []string
	Delivery          *model.DeliveryAssessment
}

// salesStage commits sale transactions for quoted items and validates the
// delivery timeline against the requested-by date.
type salesStage struct {
	ledger *guardedLedger
	cfg    Config
	now    func() time.Time
}

func newSalesStage(ledger *guardedLedger, cfg Config) *salesStage {
	return &salesStage{ledger: ledger, cfg: cfg, now: time.Now}
}

// Run commits one sale per quoted item. A conditional-update conflict (stock
// depleted since quoting) fails that item only; the order continues and the
// conflict is reported.
func (s *salesStage) Run(ctx context.Context, order *model.Order, quotation *QuotationResult, inventory *InventoryResult) (*SalesResult, error) {
	result := &SalesResult{}

	discountFactor := decimal.NewFromInt(1)
	if quotation.Discount {
		discountFactor = discountFactor.Sub(s.cfg.DiscountRate)
	}

	for _, quoted := range quotation.Quoted {
		sale := model.SaleTransaction{
			ItemName:   quoted.Item.Name,
			Quantity:   quoted.Item.Quantity,
			UnitPrice:  quoted.UnitPrice,
			TotalPrice: quoted.LineTotal.Mul(discountFactor).Round(2),
		}

		err := s.withRetry(ctx, func(callCtx context.Context) error {
			return s.ledger.WriteSale(callCtx, &sale)
		})

		var stockErr *common.InsufficientStockError
		switch {
		case err == nil:
			result.Sold = append(result.Sold, SoldItem{Quoted: quoted, Sale: sale})
		case errors.As(err, &stockErr):
			slog.Warn("Sale rejected, stock depleted since quoting",
				"item", quoted.Item.Name,
				"quantity", quoted.Item.Quantity)
			result.InsufficientStock = append(result.InsufficientStock, quoted.Item.Name)
		default:
			return nil, fmt.Errorf("sale commit for %q: %w", quoted.Item.Name, err)
		}
	}

	result.Delivery = s.assessDelivery(order, quotation, inventory)

	slog.Info("Sales stage complete",
		"sold", len(result.Sold),
		"stock_conflicts", len(result.InsufficientStock),
		"delivery_feasible", result.Delivery.Feasible)
	return result, nil
}

// assessDelivery estimates the ship date from total quantity and any reorder
// lead, then checks it against the requested-by date.
func (s *salesStage) assessDelivery(order *model.Order, quotation *QuotationResult, inventory *InventoryResult) *model.DeliveryAssessment {
	totalQuantity := 0
	for _, quoted := range quotation.Quoted {
		totalQuantity += quoted.Item.Quantity
	}

	hasReordered := false
	for _, classified := range inventory.Classified {
		if classified.Classification == model.ClassReordered {
			hasReordered = true
			break
		}
	}

	leadDays := shippingLeadDays(totalQuantity)
	if hasReordered {
		leadDays += s.cfg.RestockLeadDays
	}
	estimatedShip := s.now().AddDate(0, 0, leadDays)

	assessment := &model.DeliveryAssessment{
		RequestedBy:   order.RequestedBy,
		EstimatedShip: estimatedShip,
		Feasible:      true,
	}

	switch {
	case order.RequestedBy.IsZero():
		assessment.Reason = "no requested-by date provided"
	case estimatedShip.After(order.RequestedBy):
		assessment.Feasible = false
		if hasReordered {
			assessment.Reason = fmt.Sprintf(
				"reorder lead time exceeds requested date: estimated ship %s, requested by %s",
				estimatedShip.Format("2006-01-02"), order.RequestedBy.Format("2006-01-02"))
		} else {
			assessment.Reason = fmt.Sprintf(
				"shipping lead time exceeds requested date: estimated ship %s, requested by %s",
				estimatedShip.Format("2006-01-02"), order.RequestedBy.Format("2006-01-02"))
		}
	default:
		assessment.Reason = fmt.Sprintf("estimated ship %s meets requested date",
			estimatedShip.Format("2006-01-02"))
	}

	return assessment
}

// shippingLeadDays tiers the supplier lead time by order size.
func shippingLeadDays(totalQuantity int) int {
	switch {
	case totalQuantity <= 10:
		return 1
	case totalQuantity <= 100:
		return 4
	case totalQuantity <= 1000:
		return 7
	default:
		return 14
	}
}

func (s *salesStage) withRetry(ctx context.Context, call func(context.Context) error) error {
	return common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			return nil
		}
		// A stock conflict is a verdict on this item, not a transient fault.
		var stockErr *common.InsufficientStockError
		if errors.As(err, &stockErr) ||
			errors.Is(err, common.ErrItemNotFound) ||
			errors.Is(err, common.ErrToolNotPermitted) ||
			errors.Is(err, common.ErrMissingItemProtection) {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		return &common.RetryableError{Err: err, Retryable: true}
	}, s.cfg.LedgerRetry)
}
