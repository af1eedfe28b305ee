package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/refs"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func sample(t *testing.T) *models.Snapshot {
	t.Helper()
	snap, err := parser.NewL5XParser().Parse(context.Background(), []byte(testutil.SampleL5X))
	require.NoError(t, err)
	snap.ID = "v1"
	snap.FileName = "line1.L5X"
	snap.References, err = refs.NewExtractor(nil, 2).Extract(context.Background(), snap)
	require.NoError(t, err)
	return snap
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteTagsCSV(t *testing.T) {
	snap := sample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTagsCSV(&buf, snap.Tags))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, len(snap.Tags)+1)
	assert.Equal(t, tagHeader, rows[0])
	assert.Equal(t, snap.Tags[0].Name, rows[1][0])
}

func TestWriteTagsCSV_Quoting(t *testing.T) {
	desc := "Line one, with comma\nand \"quotes\""
	var buf bytes.Buffer
	require.NoError(t, WriteTagsCSV(&buf, []models.Tag{{Name: "A", Scope: models.ScopeController, DataType: "BOOL", Description: &desc}}))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 2)
	assert.Equal(t, desc, rows[1][len(rows[1])-1])
}

func TestWriteReferencesAndUnusedCSV(t *testing.T) {
	snap := sample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteReferencesCSV(&buf, snap.References))
	rows := readCSV(t, buf.Bytes())
	assert.Len(t, rows, len(snap.References)+1)

	unused := metrics.ProjectUnusedTags([]*models.Snapshot{snap}, metrics.UnusedOptions{})
	buf.Reset()
	require.NoError(t, WriteUnusedCSV(&buf, unused))
	rows = readCSV(t, buf.Bytes())
	require.Len(t, rows, len(unused)+1)
	assert.Equal(t, "line1.L5X", rows[1][0])
}

func TestSnapshotMarkdown(t *testing.T) {
	snap := sample(t)
	h := metrics.ComputeHealth([]*models.Snapshot{snap}, metrics.HealthOptions{})

	out := SnapshotMarkdown(snap, &h)
	assert.True(t, strings.HasPrefix(out, "# Line1\n"))
	assert.Contains(t, out, "| Target type | Controller |")
	assert.Contains(t, out, "## Contents")
	assert.Contains(t, out, "## Health")
	assert.Contains(t, out, "## Tasks")

	assert.NotContains(t, SnapshotMarkdown(snap, nil), "## Health")
}

func TestDiffMarkdown(t *testing.T) {
	a := sample(t)
	b := sample(t)
	b.ID = "v2"
	b.Tags = b.Tags[1:]

	out := DiffMarkdown(diff.DiffSnapshots(a, b))
	assert.Contains(t, out, "From `v1` to `v2`.")
	assert.Contains(t, out, "| Tags | 0 | 1 | 0 |")
	assert.Contains(t, out, "## Tags\n- Removed `")
	assert.NotContains(t, out, "## Routines")
}

func TestContext(t *testing.T) {
	snap := sample(t)
	h := metrics.ComputeHealth([]*models.Snapshot{snap}, metrics.HealthOptions{})

	full := Context(snap, &h, 1<<20)
	assert.Contains(t, full, "Controller: Line1 (target Controller)")
	assert.Contains(t, full, "Logic:")

	for _, max := range []int{40, 200, 500} {
		out := Context(snap, &h, max)
		assert.LessOrEqual(t, len(out), max)
		assert.True(t, strings.HasPrefix(full, out), "truncation must keep a prefix of whole lines")
		if out != "" {
			assert.True(t, strings.HasSuffix(out, "\n"))
		}
	}
}
