package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mdifflin/paperflow/internal/model"
)

// SearchQuoteHistory returns historical quote requests whose stored terms
// overlap any of the given terms (case-insensitive substring match). Results
// are newest first, capped at limit. Deterministic given the same history and
// terms.
func (s *SQLiteLedger) SearchQuoteHistory(ctx context.Context, terms []string, limit int) ([]model.QuoteRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	conditions := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)+1)
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		conditions = append(conditions, `LOWER(request_terms) LIKE ?`)
		args = append(args, "%"+term+"%")
	}
	if len(conditions) == 0 {
		return nil, nil
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT request_terms, match_count, discount_applied, created_at
		FROM quote_requests
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, strings.Join(conditions, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search quote history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var requests []model.QuoteRequest
	for rows.Next() {
		var request model.QuoteRequest
		if err := rows.Scan(&request.RequestTerms, &request.MatchCount,
			&request.DiscountApplied, &request.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote request: %w", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quote history: %w", err)
	}

	slog.Debug("searched quote history", "terms", terms, "matches", len(requests))
	return requests, nil
}

// WriteQuote persists one per-item quote row.
func (s *SQLiteLedger) WriteQuote(ctx context.Context, quote *model.Quote) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateQuote(quote); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (item_name, quantity, unit_price, discount_applied, total_price)
		 VALUES (?, ?, ?, ?, ?)`,
		quote.ItemName, quote.Quantity, quote.UnitPrice.String(),
		quote.DiscountApplied, quote.TotalPrice.String())
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

// WriteQuoteRequest persists the order-level search summary row.
func (s *SQLiteLedger) WriteQuoteRequest(ctx context.Context, request *model.QuoteRequest) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if request == nil {
		return fmt.Errorf("quote request cannot be nil")
	}
	if err := validateString(request.RequestTerms, "request terms"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quote_requests (request_terms, match_count, discount_applied)
		 VALUES (?, ?, ?)`,
		request.RequestTerms, request.MatchCount, request.DiscountApplied)
	if err != nil {
		return fmt.Errorf("failed to insert quote request: %w", err)
	}
	return nil
}

// GetQuotes returns all quotes recorded for an item, oldest first.
func (s *SQLiteLedger) GetQuotes(ctx context.Context, itemName string) ([]model.Quote, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemName, "item name"); err != nil {
		return nil, err
	}

	query := `
		SELECT item_name, quantity, unit_price, discount_applied, total_price, created_at
		FROM quotes
		WHERE LOWER(item_name) = LOWER(?)
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var quotes []model.Quote
	for rows.Next() {
		var quote model.Quote
		var unitPrice, totalPrice string
		if err := rows.Scan(&quote.ItemName, &quote.Quantity, &unitPrice,
			&quote.DiscountApplied, &totalPrice, &quote.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}

		if quote.UnitPrice, err = parsePrice(unitPrice, quote.ItemName); err != nil {
			return nil, err
		}
		if quote.TotalPrice, err = parsePrice(totalPrice, quote.ItemName); err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quotes: %w", err)
	}
	return quotes, nil
}
