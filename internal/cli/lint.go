package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
)

var lintCmd = &cobra.Command{
	Use:   "lint <path>...",
	Short: "Check entity names against a naming rule set",
	Long: `Validate tag, data type, AOI, routine, program, task and module names
against the rules of a YAML rule set (the format the server imports).

The command fails with exit code 12 when a violation reaches --fail-on.`,
	Example: `  l5xctl lint Line1.L5X --rules acme.yaml
  l5xctl lint ./exports --rules acme.yaml --fail-on warning -f json`,
	Args: RequirePaths,
	RunE: runLint,
}

type lintFlagValues struct {
	rules  string
	failOn string
	format string
}

var lintFlags lintFlagValues

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.rules, "rules", "r", "", "YAML rule set file (required)")
	lintCmd.Flags().StringVar(&lintFlags.failOn, "fail-on", "error", "Lowest severity that fails the run: error, warning, info or never")
	lintCmd.Flags().StringVarP(&lintFlags.format, "format", "f", formatText, "Output format: text or json")
}

// loadRuleSet reads and compiles a rule set file.
func loadRuleSet(path string) (*naming.CompiledRuleSet, error) {
	rs, err := parser.ParseRuleSet(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRules, path, err)
	}
	if rs.Name == "" {
		rs.Name = path
	}
	c, err := naming.Compile(*rs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

var severityRank = map[models.Severity]int{
	models.SeverityInfo:    1,
	models.SeverityWarning: 2,
	models.SeverityError:   3,
}

// failThreshold maps --fail-on to a severity rank; never is above all.
func failThreshold(s string) (int, error) {
	if s == "never" {
		return 4, nil
	}
	rank, ok := severityRank[models.Severity(s)]
	if !ok {
		return 0, fmt.Errorf("%w: --fail-on must be error, warning, info or never", ErrUsage)
	}
	return rank, nil
}

func runLint(cmd *cobra.Command, args []string) error {
	if err := checkFormat(lintFlags.format, formatText, formatJSON); err != nil {
		return err
	}
	if lintFlags.rules == "" {
		return fmt.Errorf("%w: --rules is required", ErrUsage)
	}
	threshold, err := failThreshold(lintFlags.failOn)
	if err != nil {
		return err
	}
	rules, err := loadRuleSet(lintFlags.rules)
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

	report := naming.Validate(rules, snaps)

	out := cmd.OutOrStdout()
	if lintFlags.format == formatJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		rows := make([][]string, len(report.Violations))
		for i, v := range report.Violations {
			name := v.Name
			if v.Parent != "" {
				name = v.Parent + "." + v.Name
			}
			rows[i] = []string{
				severityStyle(v.Severity).Render(string(v.Severity)),
				v.FileName, string(v.Kind), name, v.Program, v.RuleName, v.Pattern,
			}
		}
		writeTitle(out, "Rule set %s", report.RuleSetName)
		if err := writeTable(out, []string{"Severity", "File", "Kind", "Name", "Program", "Rule", "Pattern"},
			rows, "no violations"); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d names checked: %d errors, %d warnings, %d info\n",
			report.CheckedNames, report.Counts.Error, report.Counts.Warning, report.Counts.Info)
	}

	for _, v := range report.Violations {
		if severityRank[v.Severity] >= threshold {
			return fmt.Errorf("%w: %d errors, %d warnings, %d info",
				ErrViolations, report.Counts.Error, report.Counts.Warning, report.Counts.Info)
		}
	}
	return nil
}
