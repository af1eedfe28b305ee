package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
)

var refsCmd = &cobra.Command{
	Use:   "refs <path>...",
	Short: "Find where a tag is read or written",
	Long: `List every rung operand that names a tag, in extraction order.

--members also matches operands naming a member or element of the tag,
so --tag Motor1 --members finds Motor1.Run and Motor1.Speed.`,
	Example: `  l5xctl refs Line1.L5X --tag Motor1 --members
  l5xctl refs Line1.L5X --usage Write --program MainProgram -f csv`,
	Args: RequirePaths,
	RunE: runRefs,
}

type refsFlagValues struct {
	tag     string
	members bool
	usage   string
	program string
	limit   int
	format  string
}

var refsFlags refsFlagValues

func init() {
	rootCmd.AddCommand(refsCmd)

	refsCmd.Flags().StringVarP(&refsFlags.tag, "tag", "t", "", "Tag name to search for (empty matches every tag)")
	refsCmd.Flags().BoolVar(&refsFlags.members, "members", false, "Also match members and elements of --tag")
	refsCmd.Flags().StringVar(&refsFlags.usage, "usage", "", "Only references of this usage: Read, Write or Read/Write")
	refsCmd.Flags().StringVar(&refsFlags.program, "program", "", "Only references inside this program")
	refsCmd.Flags().IntVar(&refsFlags.limit, "limit", 0, "Stop after this many references (0 = all)")
	refsCmd.Flags().StringVarP(&refsFlags.format, "format", "f", formatText, "Output format: text, json or csv")
}

func referenceQuery() (snapshotdb.ReferenceQuery, error) {
	q := snapshotdb.ReferenceQuery{
		Tag:     refsFlags.tag,
		Members: refsFlags.members,
		Program: refsFlags.program,
		Limit:   refsFlags.limit,
	}
	switch usage := models.UsageType(refsFlags.usage); usage {
	case "", models.UsageRead, models.UsageWrite, models.UsageReadWrite:
		q.Usage = usage
	default:
		return q, fmt.Errorf("%w: --usage must be Read, Write or Read/Write", ErrUsage)
	}
	if q.Members && q.Tag == "" {
		return q, fmt.Errorf("%w: --members needs --tag", ErrUsage)
	}
	if q.Limit < 0 {
		return q, fmt.Errorf("%w: --limit must not be negative", ErrUsage)
	}
	return q, nil
}

// searchReferences filters the references of every snapshot, in argument
// then extraction order.
func searchReferences(snaps []*models.Snapshot, q snapshotdb.ReferenceQuery) []models.TagReference {
	out := make([]models.TagReference, 0)
	for _, s := range snaps {
		for _, r := range s.References {
			if !q.Match(r) {
				continue
			}
			out = append(out, r)
			if q.Limit > 0 && len(out) == q.Limit {
				return out
			}
		}
	}
	return out
}

func runRefs(cmd *cobra.Command, args []string) error {
	if err := checkFormat(refsFlags.format, formatText, formatJSON, formatCSV); err != nil {
		return err
	}
	q, err := referenceQuery()
	if err != nil {
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

	found := searchReferences(snaps, q)
	out := cmd.OutOrStdout()
	switch refsFlags.format {
	case formatJSON:
		return writeJSON(out, found)
	case formatCSV:
		return export.WriteReferencesCSV(out, found)
	}

	names := make(map[string]string, len(snaps))
	for _, s := range snaps {
		names[s.ID] = s.FileName
	}
	rows := make([][]string, len(found))
	for i, r := range found {
		rows[i] = []string{
			names[r.VersionID], r.TagName, r.ProgramName, r.RoutineName,
			strconv.Itoa(r.RungNumber), r.Instruction, strconv.Itoa(r.OperandIndex), string(r.UsageType),
		}
	}
	return writeTable(out,
		[]string{"File", "Tag", "Program", "Routine", "Rung", "Instruction", "Operand", "Usage"},
		rows, "no matching references")
}
