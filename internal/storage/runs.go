package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mdifflin/paperflow/internal/model"
)

// GetOrderRun returns the run record for a request hash, or nil if the
// request has never been seen.
func (s *SQLiteLedger) GetOrderRun(ctx context.Context, requestID string) (*model.OrderRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(requestID, "request id"); err != nil {
		return nil, err
	}

	query := `
		SELECT request_id, state, response, created_at, completed_at
		FROM order_runs
		WHERE request_id = ?`

	// response and completed_at are nullable; scanning through the Null
	// types keeps the driver's DATETIME parsing intact.
	var run model.OrderRun
	var response sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, requestID).Scan(
		&run.RequestID, &run.State, &response, &run.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order run: %w", err)
	}

	run.Response = response.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return &run, nil
}

// SaveOrderRun upserts the run record; the completed timestamp is set when
// the run reaches a terminal state.
func (s *SQLiteLedger) SaveOrderRun(ctx context.Context, run *model.OrderRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("order run cannot be nil")
	}
	if err := validateString(run.RequestID, "request id"); err != nil {
		return err
	}

	var completedAt any
	if run.State == model.StateDone || run.State == model.StateFailed {
		completedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_runs (request_id, state, response, completed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(request_id) DO UPDATE SET
			state = excluded.state,
			response = excluded.response,
			completed_at = excluded.completed_at`,
		run.RequestID, run.State, run.Response, completedAt)
	if err != nil {
		return fmt.Errorf("failed to save order run: %w", err)
	}
	return nil
}
