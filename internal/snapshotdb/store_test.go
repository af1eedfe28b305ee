package snapshotdb

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/refs"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func sample(t *testing.T, version string) *models.Snapshot {
	t.Helper()
	ctx := context.Background()
	snap, err := parser.NewL5XParser().Parse(ctx, []byte(testutil.SampleL5X))
	require.NoError(t, err)
	snap.ID = version
	snap.FileID = "file-1"
	snap.FileName = "line1.L5X"
	snap.ParsedAt = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	snap.References, err = refs.NewExtractor(nil, 2).Extract(ctx, snap)
	require.NoError(t, err)
	return snap
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	orig := sample(t, "v1")
	require.NoError(t, store.Save(ctx, orig))
	assert.True(t, store.Exists("v1"))
	assert.Equal(t, []string{"v1"}, store.List())

	got, err := store.Load(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.FileID, got.FileID)
	assert.Equal(t, orig.FileName, got.FileName)
	assert.Equal(t, orig.Kind, got.Kind)
	assert.Equal(t, orig.ControllerName, got.ControllerName)
	assert.Equal(t, orig.Sections, got.Sections)
	assert.True(t, orig.ParsedAt.Equal(got.ParsedAt))

	assert.Equal(t, orig.Tags, got.Tags)
	assert.Equal(t, orig.Rungs, got.Rungs)
	assert.Equal(t, orig.Programs, got.Programs)
	assert.Equal(t, orig.Routines, got.Routines)
	assert.Equal(t, orig.References, got.References)
	require.Len(t, got.UDTs, 1)
	assert.Equal(t, orig.UDTs[0].Members, got.UDTs[0].Members)
	require.Len(t, got.AOIs, 1)
	assert.Equal(t, orig.AOIs[0].Parameters, got.AOIs[0].Parameters)
	require.Len(t, got.Tasks, len(orig.Tasks))
	assert.Equal(t, orig.Tasks[0].ScheduledPrograms, got.Tasks[0].ScheduledPrograms)

	r := diff.DiffSnapshots(orig, got)
	assert.Zero(t, r.Summary.TotalChanges)
	assert.Zero(t, r.Summary.DefinitionChanges)
}

func TestStore_KeepsWideNumbers(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	orig := sample(t, "v1")
	require.NotEmpty(t, orig.Tasks)
	require.NotEmpty(t, orig.Rungs)
	wide := math.MaxInt
	orig.Tasks[0].Watchdog = &wide
	orig.Tasks[0].Priority = wide - 1
	orig.Rungs[0].Number = wide - 2
	require.NoError(t, store.Save(ctx, orig))

	got, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, got.Tasks[0].Watchdog)
	assert.Equal(t, wide, *got.Tasks[0].Watchdog)
	assert.Equal(t, wide-1, got.Tasks[0].Priority)
	assert.Equal(t, wide-2, got.Rungs[0].Number)
}

func TestStore_LoadMissing(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSnapshotNotFound))
}

func TestStore_SaveCancelledPublishesNothing(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Save(ctx, sample(t, "v1")))

	assert.False(t, store.Exists("v1"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial or published file is left behind")
}

func TestStore_OpenRemovesPartials(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sample(t, "v1")))

	stale := filepath.Join(dir, "snapshot_v2.duckdb.partial")
	require.NoError(t, os.WriteFile(stale, []byte("junk"), 0644))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, reopened.List())
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SearchReferences(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sample(t, "v1")))

	t.Run("exact", func(t *testing.T) {
		got, err := store.SearchReferences(ctx, "v1", ReferenceQuery{Tag: "Start"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].RungNumber)
		assert.Equal(t, 2, got[1].RungNumber)
		assert.Equal(t, "v1", got[0].VersionID)
		assert.Equal(t, "file-1", got[0].FileID)
	})

	t.Run("members", func(t *testing.T) {
		got, err := store.SearchReferences(ctx, "v1", ReferenceQuery{Tag: "Motor1", Members: true})
		require.NoError(t, err)
		require.Len(t, got, 3)
		none, err := store.SearchReferences(ctx, "v1", ReferenceQuery{Tag: "Motor1"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("usage filter", func(t *testing.T) {
		got, err := store.SearchReferences(ctx, "v1", ReferenceQuery{Tag: "Local1", Usage: models.UsageWrite})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		got, err = store.SearchReferences(ctx, "v1", ReferenceQuery{Usage: models.UsageReadWrite, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Timer1", got[0].TagName)
	})

	t.Run("match agrees with sql", func(t *testing.T) {
		snap := sample(t, "v1")
		for _, q := range []ReferenceQuery{
			{Tag: "Start"},
			{Tag: "Motor1", Members: true},
			{Tag: "Local1", Usage: models.UsageWrite},
			{Usage: models.UsageRead, Program: "MainProgram"},
		} {
			want, err := store.SearchReferences(ctx, "v1", q)
			require.NoError(t, err)
			var got []models.TagReference
			for _, r := range snap.References {
				if q.Match(r) {
					got = append(got, r)
				}
			}
			assert.Len(t, got, len(want), "query %+v", q)
		}
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := store.SearchReferences(ctx, "v9", ReferenceQuery{})
		assert.ErrorIs(t, err, models.ErrSnapshotNotFound)
	})
}

func TestStore_DeleteAndCleanup(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, sample(t, v)))
	}
	assert.Equal(t, 3, store.Stats().Snapshots)
	assert.Positive(t, store.Stats().TotalSize)

	require.NoError(t, store.Delete("a"))
	assert.False(t, store.Exists("a"))
	_, err = os.Stat(store.Path("a"))
	assert.True(t, os.IsNotExist(err))

	removed := store.CleanupOrphaned([]string{"b"})
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"b"}, store.List())
}
