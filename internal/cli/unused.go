package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/metrics"
)

var unusedCmd = &cobra.Command{
	Use:   "unused <path>...",
	Short: "List tags no rung references",
	Example: `  l5xctl unused Line1.L5X
  l5xctl unused ./exports --member-refs -f csv > unused.csv`,
	Args: RequirePaths,
	RunE: runUnused,
}

type unusedFlagValues struct {
	memberRefs bool
	format     string
}

var unusedFlags unusedFlagValues

func init() {
	rootCmd.AddCommand(unusedCmd)

	unusedCmd.Flags().BoolVar(&unusedFlags.memberRefs, "member-refs", false, "Count member references (Motor1.Run) as use of the base tag")
	unusedCmd.Flags().StringVarP(&unusedFlags.format, "format", "f", formatText, "Output format: text, json or csv")
}

func runUnused(cmd *cobra.Command, args []string) error {
	if err := checkFormat(unusedFlags.format, formatText, formatJSON, formatCSV); err != nil {
		return err
	}
	opts, err := loadOptionsFrom(cmd)
	if err != nil {
		return err
	}
	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	snaps, err := loadAll(ctx, paths, opts)
	if err != nil {
		return err
	}

	unused := metrics.ProjectUnusedTags(snaps, metrics.UnusedOptions{CountMemberReferences: unusedFlags.memberRefs})

	out := cmd.OutOrStdout()
	switch unusedFlags.format {
	case formatJSON:
		return writeJSON(out, unused)
	case formatCSV:
		return export.WriteUnusedCSV(out, unused)
	}
	rows := make([][]string, len(unused))
	for i, u := range unused {
		rows[i] = []string{u.FileName, u.Name, u.Scope, u.DataType, u.TagType}
	}
	return writeTable(out, []string{"File", "Tag", "Scope", "Data type", "Tag type"}, rows, "every tag is referenced")
}
