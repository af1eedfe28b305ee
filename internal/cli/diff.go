package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/export"
)

var diffCmd = &cobra.Command{
	Use:   "diff <from> <to>",
	Short: "Report what changed between two exports or two folders",
	Long: `Compare two exports entity by entity, or two folders file by file.

When both arguments are directories, files are matched by name and each
pair is diffed; files present on one side only are listed as unmatched.`,
	Example: `  l5xctl diff v1/Line1.L5X v2/Line1.L5X
  l5xctl diff v1/Line1.L5X v2/Line1.L5X -f markdown > changes.md
  l5xctl diff ./baseline ./current`,
	Args: RequireTwoPaths,
	RunE: runDiff,
}

type diffFlagValues struct {
	format      string
	concurrency int
}

var diffFlags diffFlagValues

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVarP(&diffFlags.format, "format", "f", formatText, "Output format: text, json or markdown")
	diffCmd.Flags().IntVar(&diffFlags.concurrency, "concurrency", 4, "Folder mode: pairs diffed at once")
}

func runDiff(cmd *cobra.Command, args []string) error {
	if err := checkFormat(diffFlags.format, formatText, formatJSON, formatMarkdown); err != nil {
		return err
	}
	opts, err := loadOptionsFrom(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	leftDir, err := isDir(args[0])
	if err != nil {
		return err
	}
	rightDir, err := isDir(args[1])
	if err != nil {
		return err
	}
	switch {
	case leftDir && rightDir:
		return runFolderDiff(ctx, cmd.OutOrStdout(), args[0], args[1], opts)
	case leftDir || rightDir:
		return fmt.Errorf("%w: diff takes two files or two directories", ErrUsage)
	}

	snaps, err := loadAll(ctx, args, opts)
	if err != nil {
		return err
	}
	report := diff.DiffSnapshots(snaps[0], snaps[1])

	out := cmd.OutOrStdout()
	switch diffFlags.format {
	case formatJSON:
		return writeJSON(out, report)
	case formatMarkdown:
		_, err := io.WriteString(out, export.DiffMarkdown(report))
		return err
	}
	writeTitle(out, "%s -> %s", snaps[0].FileName, snaps[1].FileName)
	return writeReport(out, report)
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func runFolderDiff(ctx context.Context, out io.Writer, leftDir, rightDir string, opts loadOptions) error {
	if diffFlags.format == formatMarkdown {
		return fmt.Errorf("%w: markdown output compares two files, not folders", ErrUsage)
	}
	if diffFlags.concurrency < 1 {
		return fmt.Errorf("%w: --concurrency must be at least 1", ErrUsage)
	}

	loader := memLoader{}
	left, err := loadFolder(ctx, leftDir, opts, loader)
	if err != nil {
		return err
	}
	right, err := loadFolder(ctx, rightDir, opts, loader)
	if err != nil {
		return err
	}

	report, err := diff.CompareFolders(ctx, loader, left, right, diffFlags.concurrency)
	if err != nil {
		return err
	}
	if diffFlags.format == formatJSON {
		return writeJSON(out, report)
	}

	rows := make([][]string, 0, len(report.MatchedPairs)+len(report.UnmatchedFiles))
	for _, p := range report.MatchedPairs {
		rows = append(rows, []string{
			p.FileName, "both",
			kindCell(p.Summary.Tags), kindCell(p.Summary.Routines), kindCell(p.Summary.Modules),
			strconv.Itoa(p.Summary.TotalChanges),
		})
	}
	for _, u := range report.UnmatchedFiles {
		rows = append(rows, []string{u.FileName, string(u.Side) + " only", "-", "-", "-", "-"})
	}
	writeTitle(out, "%s -> %s", leftDir, rightDir)
	if err := writeTable(out, []string{"File", "Present", "Tags +/-/~", "Routines +/-/~", "Modules +/-/~", "Changes"},
		rows, "both folders are empty"); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d matched files changed, %d changes in total\n",
		report.FilesWithChanges, len(report.MatchedPairs), report.TotalChanges)
	return nil
}

// loadFolder parses a directory's exports and registers them with loader.
func loadFolder(ctx context.Context, dir string, opts loadOptions, loader memLoader) ([]diff.FolderFile, error) {
	paths, err := exportFiles(dir)
	if err != nil {
		return nil, err
	}
	snaps, err := loadAll(ctx, paths, opts)
	if err != nil {
		return nil, err
	}
	files := make([]diff.FolderFile, len(snaps))
	for i, s := range snaps {
		loader[s.ID] = s
		files[i] = diff.FolderFile{FileName: s.FileName, FileID: s.FileID, VersionID: s.ID}
	}
	return files, nil
}

func kindCell(k diff.KindCounts) string {
	return fmt.Sprintf("%d/%d/%d", k.Added, k.Removed, k.Modified)
}

func writeReport(out io.Writer, r *diff.Report) error {
	sections := []struct {
		title string
		d     diff.EntityDiff
	}{
		{"Tags", r.Tags}, {"Routines", r.Routines}, {"Modules", r.Modules},
		{"Data types", r.UDTs}, {"Add-on instructions", r.AOIs}, {"Tasks", r.Tasks},
	}

	var rows [][]string
	for _, s := range sections {
		for _, k := range s.d.Added {
			rows = append(rows, []string{s.title, styles.success.Render("added"), k, ""})
		}
		for _, k := range s.d.Removed {
			rows = append(rows, []string{s.title, styles.failure.Render("removed"), k, ""})
		}
		for _, m := range s.d.Modified {
			rows = append(rows, []string{s.title, styles.warning.Render("modified"), m.Key, strings.Join(m.Changes, "\n")})
		}
	}
	if err := writeTable(out, []string{"Kind", "Change", "Name", "Details"}, rows, "no changes"); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d changes (%d in definitions)\n", r.Summary.TotalChanges, r.Summary.DefinitionChanges)
	return nil
}

