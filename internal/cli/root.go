package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "l5xctl",
	Short: "Offline analysis of Studio 5000 L5X/L5K exports",
	Long: `l5xctl parses Logix Designer project exports and answers the questions
the analyzer server answers, without a server: where a tag is used, which
tags are never referenced, what changed between two exports, and whether
names follow an organization's rules.

Paths may name export files or directories; directories are scanned
(non-recursively) for .L5X and .L5K files.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid naming rule set
  11 - Export could not be parsed
  12 - Naming violations at or above --fail-on`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("max-size", "256MB", "Largest export accepted per file (e.g. 64MB, 1GiB)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Parse timeout per file")
	rootCmd.PersistentFlags().Int("workers", 0, "Reference extraction workers per file (0 = one per CPU)")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if getVerboseFlag(cmd) {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		disableColor()
	}
	return nil
}

// loadOptionsFrom reads the persistent parse limits.
func loadOptionsFrom(cmd *cobra.Command) (loadOptions, error) {
	opts := defaultLoadOptions()
	flags := cmd.Flags()
	if raw, err := flags.GetString("max-size"); err == nil && raw != "" {
		n, err := humanize.ParseBytes(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: --max-size: %v", ErrUsage, err)
		}
		opts.maxSize = int64(n)
	}
	if d, err := flags.GetDuration("timeout"); err == nil {
		opts.timeout = d
	}
	if n, err := flags.GetInt("workers"); err == nil {
		if n < 0 {
			return opts, fmt.Errorf("%w: --workers must not be negative", ErrUsage)
		}
		opts.workers = n
	}
	return opts, nil
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}
