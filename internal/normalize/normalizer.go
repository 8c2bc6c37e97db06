// Package normalize converts raw order requests into ordered line items.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/model"
)

// Extractor is the reasoning-driven fallback used when structural parsing
// yields no items. Implementations must produce the same output shape as the
// structural path.
type Extractor interface {
	ExtractOrder(ctx context.Context, rawRequest string) ([]model.LineItem, time.Time, error)
}

// Known unit vocabulary for bullet lines: "- <qty> <unit> of <name>".
var (
	dateRe = regexp.MustCompile(`\(Date of request:\s*(\d{4}-\d{2}-\d{2})\)`)
	itemRe = regexp.MustCompile(`(?m)^\s*-\s*(\d+)\s+(?:sheets|packets|reams|boxes|packs|table napkins|poster boards|cards|rolls|units)\s+of\s+(.+?)\s*$`)
)

// Normalizer produces a model.Order from raw request text. The structural
// parser runs first; the extractor is invoked only when it yields nothing.
type Normalizer struct {
	extractor Extractor
}

// New creates a normalizer. The extractor may be nil, in which case the
// structural parser is the only path.
func New(extractor Extractor) *Normalizer {
	return &Normalizer{extractor: extractor}
}

// Normalize parses raw request text plus an optional requested-by date string
// (ISO format). A date embedded in the text as "(Date of request: ...)" is
// used when the explicit string is empty. Fails with ErrUnparseableOrder only
// when both the structural parser and the extractor yield no items.
func (n *Normalizer) Normalize(ctx context.Context, rawRequest, dateStr string) (*model.Order, error) {
	if strings.TrimSpace(rawRequest) == "" {
		return nil, fmt.Errorf("%w: empty request", common.ErrUnparseableOrder)
	}

	requestedBy := n.parseDate(rawRequest, dateStr)

	items := parseBulletItems(rawRequest)

	if len(items) == 0 && n.extractor != nil {
		slog.Info("Structural parse yielded no items, falling back to extractor")

		extracted, extractedDate, extractErr := n.extractor.ExtractOrder(ctx, rawRequest)
		if extractErr != nil {
			return nil, fmt.Errorf("%w: extractor failed: %v", common.ErrUnparseableOrder, extractErr)
		}
		items = extracted
		if requestedBy.IsZero() {
			requestedBy = extractedDate
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no line items recognized", common.ErrUnparseableOrder)
	}

	order := &model.Order{
		RawRequest:  rawRequest,
		RequestedBy: requestedBy,
		Items:       items,
	}
	order.RequestID = model.GenerateRequestID(rawRequest, requestedBy)

	slog.Debug("normalized order",
		"items", len(order.Items),
		"requested_by", requestedBy.Format("2006-01-02"))
	return order, nil
}

// parseDate resolves the requested-by date. A date that cannot be parsed is
// treated as absent rather than failing the order; line items are the only
// thing normalization is allowed to reject on.
func (n *Normalizer) parseDate(rawRequest, dateStr string) time.Time {
	if dateStr == "" {
		if m := dateRe.FindStringSubmatch(rawRequest); m != nil {
			dateStr = m[1]
		}
	}
	if dateStr == "" {
		return time.Time{}
	}

	requestedBy, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		slog.Warn("Ignoring unparseable requested-by date", "date", dateStr)
		return time.Time{}
	}
	return requestedBy
}

// parseBulletItems extracts line items from bullet-delimited request text.
func parseBulletItems(rawRequest string) []model.LineItem {
	// Only the text before the date trailer carries items.
	text := rawRequest
	if idx := strings.Index(text, "(Date of request:"); idx >= 0 {
		text = text[:idx]
	}

	var items []model.LineItem
	for _, match := range itemRe.FindAllStringSubmatch(text, -1) {
		quantity, err := strconv.Atoi(match[1])
		if err != nil || quantity <= 0 {
			continue
		}

		name := strings.TrimSpace(match[2])
		if name == "" {
			continue
		}

		items = append(items, model.LineItem{
			Name:     name,
			Quantity: quantity,
			Type:     classifyItemType(name),
		})
	}
	return items
}

// classifyItemType buckets an item as paper stock or a paper product.
func classifyItemType(name string) string {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "paper") || strings.Contains(lower, "cardstock") {
		return "paper"
	}
	return "product"
}
