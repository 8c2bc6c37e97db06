package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS catalog (
					item_name TEXT PRIMARY KEY,
					quantity_on_hand INTEGER NOT NULL DEFAULT 0 CHECK (quantity_on_hand >= 0),
					reorder_threshold INTEGER NOT NULL DEFAULT 0,
					unit_cost TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS stock_orders (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					item_name TEXT NOT NULL,
					quantity_requested INTEGER NOT NULL,
					unit_cost TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (item_name) REFERENCES catalog(item_name)
				)`,
				`CREATE INDEX idx_stock_orders_item ON stock_orders(item_name)`,

				`CREATE TABLE IF NOT EXISTS quote_requests (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					request_terms TEXT NOT NULL,
					match_count INTEGER NOT NULL DEFAULT 0,
					discount_applied INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS quotes (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					item_name TEXT NOT NULL,
					quantity INTEGER NOT NULL,
					unit_price TEXT NOT NULL,
					discount_applied INTEGER NOT NULL DEFAULT 0,
					total_price TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_quotes_item ON quotes(item_name)`,

				`CREATE TABLE IF NOT EXISTS sales (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					item_name TEXT NOT NULL,
					quantity INTEGER NOT NULL,
					unit_price TEXT NOT NULL,
					total_price TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (item_name) REFERENCES catalog(item_name)
				)`,
				`CREATE INDEX idx_sales_item ON sales(item_name)`,

				`CREATE TABLE IF NOT EXISTS order_runs (
					request_id TEXT PRIMARY KEY,
					state TEXT NOT NULL,
					response TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					completed_at DATETIME
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed paper supply catalog",
		Up: func(tx *sql.Tx) error {
			seed := []struct {
				name      string
				unitCost  string
				onHand    int
				threshold int
			}{
				{"A4 paper", "0.05", 800, 100},
				{"A3 paper", "0.08", 400, 50},
				{"Cardstock", "0.15", 300, 50},
				{"Glossy paper", "0.20", 200, 40},
				{"Letterhead paper", "0.12", 250, 40},
				{"Envelopes", "0.10", 600, 80},
				{"Paper plates", "0.10", 500, 60},
				{"Paper cups", "0.08", 500, 60},
				{"Table napkins", "0.04", 1000, 120},
				{"Poster boards", "0.50", 120, 20},
				{"Index cards", "0.02", 900, 100},
				{"Paper rolls", "1.25", 80, 15},
			}

			stmt, err := tx.Prepare(`
				INSERT OR IGNORE INTO catalog (item_name, quantity_on_hand, reorder_threshold, unit_cost)
				VALUES (?, ?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare catalog seed: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, item := range seed {
				if _, err := stmt.Exec(item.name, item.onHand, item.threshold, item.unitCost); err != nil {
					return fmt.Errorf("failed to seed catalog item %q: %w", item.name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed historical quote requests for discount derivation",
		Up: func(tx *sql.Tx) error {
			// Past quote requests whose terms mention bulk/discount signal
			// that a bulk discount applies when a comparable order matches.
			seed := []struct {
				terms    string
				matches  int
				discount int
			}{
				{"envelopes corporate mailing bulk discount", 4, 1},
				{"a4 paper office restock bulk order", 3, 1},
				{"table napkins catering event discount", 2, 1},
				{"poster boards school project", 1, 0},
				{"glossy paper brochure print", 1, 0},
			}

			stmt, err := tx.Prepare(`
				INSERT INTO quote_requests (request_terms, match_count, discount_applied)
				VALUES (?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare quote history seed: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, q := range seed {
				if _, err := stmt.Exec(q.terms, q.matches, q.discount); err != nil {
					return fmt.Errorf("failed to seed quote request: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteLedger) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
				migration.Version, migration.Description); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SchemaVersion returns the currently applied schema version.
func (s *SQLiteLedger) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
