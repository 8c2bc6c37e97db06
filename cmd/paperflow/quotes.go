package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdifflin/paperflow/internal/cli"
)

func quotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quotes <item name>",
		Short: "Show the quote and sale history for a catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemName := args[0]

			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()
			if err := ledger.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate ledger: %w", err)
			}

			quotes, err := ledger.GetQuotes(ctx, itemName)
			if err != nil {
				return fmt.Errorf("failed to load quotes: %w", err)
			}
			sales, err := ledger.GetSales(ctx, itemName)
			if err != nil {
				return fmt.Errorf("failed to load sales: %w", err)
			}

			fmt.Fprintln(os.Stdout, cli.TitleStyle.Render("Quotes for "+itemName))
			if len(quotes) == 0 {
				fmt.Fprintln(os.Stdout, cli.SubtleStyle.Render("  none"))
			}
			for _, quote := range quotes {
				discount := ""
				if quote.DiscountApplied {
					discount = " (bulk discount)"
				}
				fmt.Fprintf(os.Stdout, "  %s  x%-5d @ $%s = $%s%s\n",
					formatTimestamp(quote.CreatedAt), quote.Quantity,
					quote.UnitPrice.StringFixed(2), quote.TotalPrice.StringFixed(2), discount)
			}

			fmt.Fprintln(os.Stdout, cli.TitleStyle.Render("Sales for "+itemName))
			if len(sales) == 0 {
				fmt.Fprintln(os.Stdout, cli.SubtleStyle.Render("  none"))
			}
			for _, sale := range sales {
				fmt.Fprintf(os.Stdout, "  %s  x%-5d @ $%s = $%s\n",
					formatTimestamp(sale.CreatedAt), sale.Quantity,
					sale.UnitPrice.StringFixed(2), sale.TotalPrice.StringFixed(2))
			}

			return nil
		},
	}
}
