package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/naming"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/snapshotdb"
	"github.com/plc-analyzer/backend/internal/testutil"
)

const acmeRules = `
name: Acme
rules:
  - name: Inputs
    pattern: "^DI_"
    applies_to: [tag]
    severity: error
`

func init() {
	disableColor()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// capture points cmd's output at a buffer for the test.
func capture(t *testing.T, cmd *cobra.Command) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	return &buf
}

func decodeJSON[T any](t *testing.T, buf *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v), buf.String())
	return v
}

func changedSample() string {
	return strings.Replace(testutil.SampleL5X,
		`<Tag Name="Sensor9" TagType="Base" DataType="REAL" Radix="Float"`,
		`<Tag Name="Sensor9" TagType="Base" DataType="DINT" Radix="Decimal"`, 1)
}

func TestArgsValidation(t *testing.T) {
	for _, cmd := range []*cobra.Command{parseCmd, refsCmd, unusedCmd, healthCmd, lintCmd} {
		err := cmd.Args(cmd, []string{})
		require.Error(t, err, cmd.Name())
		assert.Equal(t, ExitUsageError, ExitCodeForError(err), cmd.Name())
	}

	assert.Error(t, contextCmd.Args(contextCmd, []string{"a", "b"}))
	assert.NoError(t, contextCmd.Args(contextCmd, []string{"a"}))
	assert.Error(t, diffCmd.Args(diffCmd, []string{"a"}))
	assert.NoError(t, diffCmd.Args(diffCmd, []string{"a", "b"}))
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", fmt.Errorf("%w: bad flag", ErrUsage), ExitUsageError},
		{"rules", fmt.Errorf("x: %w", naming.ErrInvalidPattern), ExitInvalidRules},
		{"parse", fmt.Errorf("a.L5X: %w", &parser.ParseError{Kind: parser.ErrTruncatedInput}), ExitParseFailure},
		{"violations", fmt.Errorf("%w: 1 errors", ErrViolations), ExitViolations},
		{"other", errors.New("disk full"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeForError(tt.err))
		})
	}
}

func TestParse_InMemory(t *testing.T) {
	parseFlags = parseFlagValues{project: "default", format: formatJSON}
	dir := t.TempDir()
	writeFile(t, dir, "Line1.L5X", testutil.SampleL5X)
	writeFile(t, dir, "Line1.L5K", testutil.SampleL5K)
	writeFile(t, dir, "notes.txt", "ignored")
	out := capture(t, parseCmd)

	require.NoError(t, runParse(parseCmd, []string{dir}))

	results := decodeJSON[[]parseResult](t, out)
	require.Len(t, results, 2)
	assert.Equal(t, "Line1.L5K", results[0].File)
	assert.Equal(t, "l5k", results[0].Kind)
	assert.Equal(t, "l5x", results[1].Kind)
	assert.Equal(t, "Line1", results[1].Controller)
	assert.Equal(t, 8, results[1].Counts.Tags)
	assert.Equal(t, 9, results[1].Counts.References)
	assert.Empty(t, results[1].FileID)
}

func TestParse_IntoDataDir(t *testing.T) {
	dataDir := t.TempDir()
	parseFlags = parseFlagValues{dataDir: dataDir, project: "plant", folder: "baseline", format: formatJSON}
	path := writeFile(t, t.TempDir(), "Line1.L5X", testutil.SampleL5X)
	out := capture(t, parseCmd)

	require.NoError(t, runParse(parseCmd, []string{path}))

	results := decodeJSON[[]parseResult](t, out)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].FileID)
	require.NotEmpty(t, results[0].VersionID)

	store, err := snapshotdb.Open(filepath.Join(dataDir, "snapshots"))
	require.NoError(t, err)
	assert.True(t, store.Exists(results[0].VersionID))
}

func TestParse_Failures(t *testing.T) {
	parseFlags = parseFlagValues{format: formatText}
	dir := t.TempDir()

	t.Run("malformed", func(t *testing.T) {
		path := writeFile(t, dir, "bad.L5X", "hello world")
		err := runParse(parseCmd, []string{path})
		require.Error(t, err)
		assert.Equal(t, ExitParseFailure, ExitCodeForError(err))
	})

	t.Run("missing file", func(t *testing.T) {
		err := runParse(parseCmd, []string{filepath.Join(dir, "nope.L5X")})
		require.Error(t, err)
		assert.Equal(t, ExitGeneralError, ExitCodeForError(err))
	})

	t.Run("bad format", func(t *testing.T) {
		parseFlags.format = "yaml"
		err := runParse(parseCmd, []string{dir})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})
}

func TestParse_TextTable(t *testing.T) {
	parseFlags = parseFlagValues{format: formatText}
	path := writeFile(t, t.TempDir(), "Line1.L5X", testutil.SampleL5X)
	out := capture(t, parseCmd)

	require.NoError(t, runParse(parseCmd, []string{path}))
	assert.Contains(t, out.String(), "Line1.L5X")
	assert.Contains(t, out.String(), "References")
}

func TestRefs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Line1.L5X", testutil.SampleL5X)

	t.Run("exact tag", func(t *testing.T) {
		refsFlags = refsFlagValues{tag: "Start", format: formatJSON}
		out := capture(t, refsCmd)
		require.NoError(t, runRefs(refsCmd, []string{path}))
		found := decodeJSON[[]models.TagReference](t, out)
		require.Len(t, found, 2)
		assert.Equal(t, path, found[0].FileID)
	})

	t.Run("members", func(t *testing.T) {
		refsFlags = refsFlagValues{tag: "Motor1", members: true, format: formatJSON}
		out := capture(t, refsCmd)
		require.NoError(t, runRefs(refsCmd, []string{path}))
		assert.Len(t, decodeJSON[[]models.TagReference](t, out), 3)
	})

	t.Run("limit", func(t *testing.T) {
		refsFlags = refsFlagValues{limit: 1, format: formatJSON}
		out := capture(t, refsCmd)
		require.NoError(t, runRefs(refsCmd, []string{path}))
		assert.Len(t, decodeJSON[[]models.TagReference](t, out), 1)
	})

	t.Run("csv", func(t *testing.T) {
		refsFlags = refsFlagValues{tag: "Start", format: formatCSV}
		out := capture(t, refsCmd)
		require.NoError(t, runRefs(refsCmd, []string{path}))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		assert.Len(t, lines, 3)
	})

	t.Run("invalid usage", func(t *testing.T) {
		refsFlags = refsFlagValues{tag: "Start", usage: "Sometimes", format: formatText}
		err := runRefs(refsCmd, []string{path})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})

	t.Run("members without tag", func(t *testing.T) {
		refsFlags = refsFlagValues{members: true, format: formatText}
		err := runRefs(refsCmd, []string{path})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})
}

func TestUnused(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Line1.L5X", testutil.SampleL5X)

	unusedFlags = unusedFlagValues{memberRefs: true, format: formatJSON}
	out := capture(t, unusedCmd)
	require.NoError(t, runUnused(unusedCmd, []string{path}))

	unused := decodeJSON[[]metrics.UnusedTag](t, out)
	names := make([]string, len(unused))
	for i, u := range unused {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"Valve2", "Sensor9", "RunAlias"}, names)
	assert.Equal(t, "Line1.L5X", unused[0].FileName)

	unusedFlags.format = formatCSV
	out = capture(t, unusedCmd)
	require.NoError(t, runUnused(unusedCmd, []string{path}))
	assert.True(t, strings.HasPrefix(out.String(), "File,Name,Scope"))
}

func TestDiff_Files(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.L5X", testutil.SampleL5X)
	after := writeFile(t, dir, "after.L5X", changedSample())

	diffFlags = diffFlagValues{format: formatJSON, concurrency: 4}
	out := capture(t, diffCmd)
	require.NoError(t, runDiff(diffCmd, []string{before, after}))
	report := decodeJSON[diff.Report](t, out)
	assert.Equal(t, 1, report.Summary.TotalChanges)
	require.Len(t, report.Tags.Modified, 1)

	diffFlags.format = formatMarkdown
	out = capture(t, diffCmd)
	require.NoError(t, runDiff(diffCmd, []string{before, after}))
	assert.Contains(t, out.String(), "# Change Report")

	diffFlags.format = formatText
	out = capture(t, diffCmd)
	require.NoError(t, runDiff(diffCmd, []string{before, after}))
	assert.Contains(t, out.String(), "modified")
	assert.Contains(t, out.String(), "1 changes")
}

func TestDiff_Folders(t *testing.T) {
	left, right := t.TempDir(), t.TempDir()
	writeFile(t, left, "Line1.L5X", testutil.SampleL5X)
	writeFile(t, left, "Old.L5X", testutil.TagsOnlyL5X)
	writeFile(t, right, "Line1.L5X", changedSample())

	diffFlags = diffFlagValues{format: formatJSON, concurrency: 2}
	out := capture(t, diffCmd)
	require.NoError(t, runDiff(diffCmd, []string{left, right}))

	report := decodeJSON[diff.FolderReport](t, out)
	require.Len(t, report.MatchedPairs, 1)
	assert.Equal(t, "Line1.L5X", report.MatchedPairs[0].FileName)
	require.Len(t, report.UnmatchedFiles, 1)
	assert.Equal(t, diff.SideLeft, report.UnmatchedFiles[0].Side)
	assert.Equal(t, 1, report.FilesWithChanges)

	t.Run("file against folder", func(t *testing.T) {
		err := runDiff(diffCmd, []string{left, filepath.Join(right, "Line1.L5X")})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})

	t.Run("markdown needs files", func(t *testing.T) {
		diffFlags.format = formatMarkdown
		err := runDiff(diffCmd, []string{left, right})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})
}

func TestLint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Tags.L5X", testutil.TagsOnlyL5X)
	rules := writeFile(t, dir, "acme.yaml", acmeRules)

	t.Run("violations fail the run", func(t *testing.T) {
		lintFlags = lintFlagValues{rules: rules, failOn: "error", format: formatJSON}
		out := capture(t, lintCmd)
		err := runLint(lintCmd, []string{path})
		assert.Equal(t, ExitViolations, ExitCodeForError(err))

		report := decodeJSON[naming.Report](t, out)
		assert.Equal(t, 1, report.Counts.Error)
		require.Len(t, report.Violations, 1)
		assert.Equal(t, "Stop", report.Violations[0].Name)
	})

	t.Run("fail-on never", func(t *testing.T) {
		lintFlags = lintFlagValues{rules: rules, failOn: "never", format: formatText}
		out := capture(t, lintCmd)
		require.NoError(t, runLint(lintCmd, []string{path}))
		assert.Contains(t, out.String(), "Stop")
		assert.Contains(t, out.String(), "1 errors")
	})

	t.Run("rules required", func(t *testing.T) {
		lintFlags = lintFlagValues{failOn: "error", format: formatText}
		err := runLint(lintCmd, []string{path})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})

	t.Run("bad fail-on", func(t *testing.T) {
		lintFlags = lintFlagValues{rules: rules, failOn: "fatal", format: formatText}
		err := runLint(lintCmd, []string{path})
		assert.Equal(t, ExitUsageError, ExitCodeForError(err))
	})

	t.Run("invalid pattern", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.yaml", "name: Bad\nrules:\n  - name: x\n    pattern: \"(\"\n    applies_to: [tag]\n    severity: error\n")
		lintFlags = lintFlagValues{rules: bad, failOn: "error", format: formatText}
		err := runLint(lintCmd, []string{path})
		assert.Equal(t, ExitInvalidRules, ExitCodeForError(err))
	})

	t.Run("unreadable rules", func(t *testing.T) {
		lintFlags = lintFlagValues{rules: filepath.Join(dir, "missing.yaml"), failOn: "error", format: formatText}
		err := runLint(lintCmd, []string{path})
		assert.Equal(t, ExitInvalidRules, ExitCodeForError(err))
	})
}

func TestHealth(t *testing.T) {
	dir := t.TempDir()
	full := writeFile(t, dir, "Line1.L5X", testutil.SampleL5X)
	tags := writeFile(t, dir, "Tags.L5X", testutil.TagsOnlyL5X)
	rules := writeFile(t, dir, "acme.yaml", acmeRules)

	t.Run("json with rules", func(t *testing.T) {
		healthFlags = healthFlagValues{rules: rules, memberRefs: true, format: formatJSON}
		out := capture(t, healthCmd)
		require.NoError(t, runHealth(healthCmd, []string{full, tags}))

		var result struct {
			Health struct {
				Naming *json.RawMessage `json:"naming"`
				Stats  metrics.Stats    `json:"stats"`
			} `json:"health"`
			Naming *naming.Report `json:"naming"`
			Files  []struct {
				File string `json:"file"`
			} `json:"files"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.NotNil(t, result.Health.Naming)
		require.NotNil(t, result.Naming)
		assert.Equal(t, 10, result.Health.Stats.TotalTags)
		require.Len(t, result.Files, 2)
		assert.Equal(t, "Tags.L5X", result.Files[1].File)
	})

	t.Run("text", func(t *testing.T) {
		healthFlags = healthFlagValues{format: formatText}
		out := capture(t, healthCmd)
		require.NoError(t, runHealth(healthCmd, []string{tags}))
		assert.Contains(t, out.String(), "Tag efficiency")
		assert.Contains(t, out.String(), "partial")
		assert.NotContains(t, out.String(), "Naming")
	})

	t.Run("markdown", func(t *testing.T) {
		healthFlags = healthFlagValues{format: formatMarkdown}
		out := capture(t, healthCmd)
		require.NoError(t, runHealth(healthCmd, []string{full}))
		assert.Contains(t, out.String(), "# Line1")
		assert.Contains(t, out.String(), "## Health")
	})
}

func TestContext(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Line1.L5X", testutil.SampleL5X)

	contextFlags = contextFlagValues{maxBytes: "200B"}
	out := capture(t, contextCmd)
	require.NoError(t, runContext(contextCmd, []string{path}))
	assert.LessOrEqual(t, len(strings.TrimSuffix(out.String(), "\n")), 200)
	assert.True(t, strings.HasPrefix(out.String(), "Controller: Line1"))

	contextFlags = contextFlagValues{maxBytes: "lots"}
	err := runContext(contextCmd, []string{path})
	assert.Equal(t, ExitUsageError, ExitCodeForError(err))
}
