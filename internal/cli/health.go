package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/export"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
)

var healthCmd = &cobra.Command{
	Use:   "health <path>...",
	Short: "Score the health of a set of exports",
	Long: `Compute the composite health score of the given exports taken as one
project: tag efficiency, documentation (rung comment coverage) and tag
usage, plus naming compliance when --rules is given.

Components that cannot be computed, for example documentation on a
tags-only export, are reported as not applicable and the score is marked
partial.`,
	Example: `  l5xctl health ./exports
  l5xctl health Line1.L5X --rules acme.yaml --member-refs
  l5xctl health Line1.L5X -f markdown`,
	Args: RequirePaths,
	RunE: runHealth,
}

type healthFlagValues struct {
	rules      string
	memberRefs bool
	format     string
}

var healthFlags healthFlagValues

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringVarP(&healthFlags.rules, "rules", "r", "", "YAML rule set enabling the naming component")
	healthCmd.Flags().BoolVar(&healthFlags.memberRefs, "member-refs", false, "Count member references (Motor1.Run) as use of the base tag")
	healthCmd.Flags().StringVarP(&healthFlags.format, "format", "f", formatText, "Output format: text, json or markdown")
}

// projectHealth is the health output: the whole set plus each file alone.
type projectHealth struct {
	Health metrics.Health   `json:"health"`
	Naming *naming.Report   `json:"naming,omitempty"`
	Files  []fileHealthItem `json:"files"`
}

type fileHealthItem struct {
	File   string         `json:"file"`
	Health metrics.Health `json:"health"`
}

func healthOptions(rules *naming.CompiledRuleSet, snaps []*models.Snapshot) (metrics.HealthOptions, *naming.Report) {
	opts := metrics.HealthOptions{
		Unused: metrics.UnusedOptions{CountMemberReferences: healthFlags.memberRefs},
	}
	if rules == nil {
		return opts, nil
	}
	rep := naming.Validate(rules, snaps)
	counts := rep.HealthCounts()
	opts.IncludeNaming = true
	opts.Naming = &counts
	return opts, rep
}

func runHealth(cmd *cobra.Command, args []string) error {
	if err := checkFormat(healthFlags.format, formatText, formatJSON, formatMarkdown); err != nil {
		return err
	}
	var rules *naming.CompiledRuleSet
	if healthFlags.rules != "" {
		var err error
		if rules, err = loadRuleSet(healthFlags.rules); err != nil {
			return err
		}
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

	hopts, namingReport := healthOptions(rules, snaps)
	result := projectHealth{
		Health: metrics.ComputeHealth(snaps, hopts),
		Naming: namingReport,
		Files:  make([]fileHealthItem, len(snaps)),
	}
	for i, s := range snaps {
		one := []*models.Snapshot{s}
		fopts, _ := healthOptions(rules, one)
		result.Files[i] = fileHealthItem{File: s.FileName, Health: metrics.ComputeHealth(one, fopts)}
	}

	out := cmd.OutOrStdout()
	switch healthFlags.format {
	case formatJSON:
		return writeJSON(out, result)
	case formatMarkdown:
		for i, s := range snaps {
			if i > 0 {
				io.WriteString(out, "\n")
			}
			if _, err := io.WriteString(out, export.SnapshotMarkdown(s, &result.Files[i].Health)); err != nil {
				return err
			}
		}
		return nil
	}
	return writeHealth(out, result)
}

func writeHealth(out io.Writer, r projectHealth) error {
	h := r.Health
	title := "Health " + scoreCell(h.Score)
	if h.Partial {
		title += styles.muted.Render(" (partial)")
	}
	fmt.Fprintln(out, styles.title.Render(title))

	rows := [][]string{
		{"Tag efficiency", scoreCell(h.TagEfficiency)},
		{"Documentation", scoreCell(h.Documentation)},
		{"Tag usage", scoreCell(h.TagUsage)},
	}
	if h.Naming != nil {
		rows = append(rows, []string{"Naming", scoreCell(*h.Naming)})
	}
	rows = append(rows,
		[]string{"Comment coverage %", scoreCell(h.CommentCoverage)},
		[]string{"Tags", strconv.Itoa(h.Stats.TotalTags)},
		[]string{"Unused tags", strconv.Itoa(h.Stats.UnusedTags)},
		[]string{"References", strconv.Itoa(h.Stats.TotalReferences)},
		[]string{"Rungs (commented)", fmt.Sprintf("%d (%d)", h.Stats.TotalRungs, h.Stats.CommentedRungs)},
	)
	if err := writeTable(out, []string{"Component", "Value"}, rows, ""); err != nil {
		return err
	}

	if len(r.Files) < 2 {
		return nil
	}
	files := make([][]string, len(r.Files))
	for i, f := range r.Files {
		files[i] = []string{f.File, scoreCell(f.Health.Score), strconv.Itoa(f.Health.Stats.UnusedTags)}
	}
	return writeTable(out, []string{"File", "Score", "Unused tags"}, files, "")
}
