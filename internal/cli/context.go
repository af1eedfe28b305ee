package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
)

var contextCmd = &cobra.Command{
	Use:   "context <path>",
	Short: "Print a size-bounded plain-text summary of an export",
	Long: `Summarize one export as plain text for pasting into a chat or a ticket.
The output is cut at a line boundary so it never exceeds --max-bytes.`,
	Example: `  l5xctl context Line1.L5X --max-bytes 8KB`,
	Args:    RequireOnePath,
	RunE:    runContext,
}

type contextFlagValues struct {
	maxBytes string
}

var contextFlags contextFlagValues

func init() {
	rootCmd.AddCommand(contextCmd)

	contextCmd.Flags().StringVar(&contextFlags.maxBytes, "max-bytes", "16KB", "Upper bound of the summary size")
}

func runContext(cmd *cobra.Command, args []string) error {
	limit, err := humanize.ParseBytes(contextFlags.maxBytes)
	if err != nil || limit == 0 {
		return fmt.Errorf("%w: --max-bytes: invalid size %q", ErrUsage, contextFlags.maxBytes)
	}
	opts, err := loadOptionsFrom(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	snaps, err := loadAll(ctx, args, opts)
	if err != nil {
		return err
	}

	health := metrics.ComputeHealth([]*models.Snapshot{snaps[0]}, metrics.HealthOptions{})
	out := cmd.OutOrStdout()
	if _, err := io.WriteString(out, export.Context(snaps[0], &health, int(limit))); err != nil {
		return err
	}
	_, err = io.WriteString(out, "\n")
	return err
}
