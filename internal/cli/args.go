package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequirePaths validates that at least one path argument is provided.
func RequirePaths(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`%w: missing required argument: <path>

Usage: %s

Example:
  %s ./exports/Line1.L5X`, ErrUsage, cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}

// RequireOnePath validates that exactly one path argument is provided.
func RequireOnePath(cmd *cobra.Command, args []string) error {
	if err := RequirePaths(cmd, args); err != nil {
		return err
	}
	if len(args) > 1 {
		return fmt.Errorf("%w: accepts 1 arg(s), received %d", ErrUsage, len(args))
	}
	return nil
}

// RequireTwoPaths validates the <from> <to> pair of diff.
func RequireTwoPaths(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf(`%w: expected <from> and <to>, received %d arg(s)

Usage: %s

Example:
  %s old/Line1.L5X new/Line1.L5X`, ErrUsage, len(args), cmd.UseLine(), cmd.CommandPath())
	}
	return nil
}

// checkFormat rejects an output format the command does not offer.
func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported --format %q (want one of %v)", ErrUsage, format, allowed)
}
