package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdifflin/paperflow/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending ledger schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := openLedger()
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			ctx := cmd.Context()
			if err := ledger.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := ledger.SchemaVersion(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, cli.SuccessStyle.Render(
				fmt.Sprintf("Ledger is at schema version %d", version)))
			return nil
		},
	}
}
