package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mdifflin/paperflow/internal/cli"
	"github.com/mdifflin/paperflow/internal/model"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List catalog records with stock levels and reorder history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()
			if err := ledger.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate ledger: %w", err)
			}

			records, err := ledger.ListCatalog(ctx)
			if err != nil {
				return fmt.Errorf("failed to list catalog: %w", err)
			}

			fmt.Fprintln(os.Stdout, cli.TitleStyle.Render("Catalog"))
			fmt.Fprintln(os.Stdout, cli.BoldStyle.Render(fmt.Sprintf(
				"  %-28s %10s %10s %10s", "Item", "On hand", "Threshold", "Unit cost")))

			for _, record := range records {
				line := fmt.Sprintf("  %-28s %10d %10d %10s",
					record.ItemName, record.QuantityOnHand,
					record.ReorderThreshold, "$"+record.UnitCost.StringFixed(2))
				if record.QuantityOnHand <= record.ReorderThreshold {
					fmt.Fprintln(os.Stdout, cli.WarningStyle.Render(line))
				} else {
					fmt.Fprintln(os.Stdout, line)
				}
			}

			fmt.Fprintln(os.Stdout, cli.SubtleStyle.Render(
				fmt.Sprintf("%d item(s)", len(records))))
			return nil
		},
	}

	cmd.AddCommand(catalogSetCmd())
	return cmd
}

func catalogSetCmd() *cobra.Command {
	var (
		quantity  int
		threshold int
		unitCost  string
	)

	cmd := &cobra.Command{
		Use:   "set <item name>",
		Short: "Create or update a catalog record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, err := decimal.NewFromString(unitCost)
			if err != nil {
				return fmt.Errorf("invalid unit cost %q: %w", unitCost, err)
			}

			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()
			if err := ledger.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate ledger: %w", err)
			}

			record := &model.CatalogRecord{
				ItemName:         args[0],
				QuantityOnHand:   quantity,
				ReorderThreshold: threshold,
				UnitCost:         cost,
			}
			if err := ledger.UpsertCatalogRecord(ctx, record); err != nil {
				return fmt.Errorf("failed to update catalog: %w", err)
			}

			fmt.Fprintln(os.Stdout, cli.SuccessStyle.Render(
				fmt.Sprintf("Catalog updated: %s (on hand %d, threshold %d, unit cost $%s)",
					record.ItemName, record.QuantityOnHand,
					record.ReorderThreshold, record.UnitCost.StringFixed(2))))
			return nil
		},
	}

	cmd.Flags().IntVar(&quantity, "quantity", 0, "units on hand")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "reorder threshold")
	cmd.Flags().StringVar(&unitCost, "unit-cost", "0", "unit cost in dollars, e.g. 0.05")
	return cmd
}
