package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdifflin/paperflow/internal/cli"
	"github.com/mdifflin/paperflow/internal/common"
	"github.com/mdifflin/paperflow/internal/engine"
)

func processCmd() *cobra.Command {
	var (
		dateStr  string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "process [request text]",
		Short: "Process a customer order through the fulfillment pipeline",
		Long: `Process runs one customer order through inventory classification,
quotation, and sales finalization, then prints the aggregated result.

The request is read from the argument, --file, or stdin. The requested-by
date comes from --date or a "(Date of request: YYYY-MM-DD)" trailer in the
request text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawRequest, err := readRequest(args, fromFile)
			if err != nil {
				return err
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

			orchestrator := engine.New(ledger, newNormalizer())

			started := time.Now()
			result, err := orchestrator.ProcessOrder(ctx, rawRequest, dateStr)
			if err != nil && engine.IsFatal(err) {
				if result != nil {
					fmt.Fprintln(os.Stdout, cli.RenderOrderResult(result))
				}
				return common.NewUserError("the order could not be completed", err)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, cli.RenderOrderResult(result))

			stats := engine.Stats(result, time.Since(started))
			fmt.Fprintln(os.Stdout, cli.SubtleStyle.Render(fmt.Sprintf(
				"%d item(s): %d fulfillable, %d reordered, %d missing, %d sold (%.2fs)",
				stats.TotalItems, stats.Fulfillable, stats.Reordered,
				stats.Missing, stats.Sold, stats.Duration.Seconds())))

			common.LogInfo("Order processed", common.Fields{
				"request_id": result.RequestID,
				"items":      stats.TotalItems,
				"sold":       stats.Sold,
				"duration":   stats.Duration.String(),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "requested-by date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fromFile, "file", "", "read the request text from a file")

	return cmd
}

// readRequest resolves the request text from argument, file, or stdin.
func readRequest(args []string, fromFile string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}

	if fromFile != "" {
		data, err := os.ReadFile(fromFile) // #nosec G304 -- user-supplied path is the point
		if err != nil {
			return "", fmt.Errorf("failed to read request file: %w", err)
		}
		return string(data), nil
	}

	info, err := os.Stdin.Stat()
	if err == nil && (info.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) != "" {
			return string(data), nil
		}
	}

	return "", fmt.Errorf("no request text provided; pass it as an argument, --file, or stdin")
}
