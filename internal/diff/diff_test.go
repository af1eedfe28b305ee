package diff

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func sampleSnapshot(t *testing.T) *models.Snapshot {
	t.Helper()
	snap, err := parser.NewL5XParser().Parse(context.Background(), []byte(testutil.SampleL5X))
	require.NoError(t, err)
	snap.ID = "v1"
	return snap
}

// clone deep-copies a snapshot through JSON so tests can mutate one side.
func clone(t *testing.T, s *models.Snapshot) *models.Snapshot {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	var out models.Snapshot
	require.NoError(t, json.Unmarshal(data, &out))
	return &out
}

func TestDiffSnapshots_SelfIsEmpty(t *testing.T) {
	snap := sampleSnapshot(t)
	r := DiffSnapshots(snap, snap)

	assert.Equal(t, 0, r.Summary.TotalChanges)
	assert.Equal(t, 0, r.Summary.DefinitionChanges)
	for _, d := range []EntityDiff{r.Tags, r.Routines, r.Modules, r.UDTs, r.AOIs, r.Tasks} {
		assert.NotNil(t, d.Added)
		assert.NotNil(t, d.Removed)
		assert.NotNil(t, d.Modified)
		assert.Zero(t, d.Count())
	}
}

func TestDiffSnapshots_TagChanges(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	b.ID = "v2"

	// Start: DINT -> REAL, Sensor9: gains a description, Timer1 removed, NewTag added.
	for i := range b.Tags {
		switch b.Tags[i].Name {
		case "Start":
			b.Tags[i].DataType = "REAL"
		case "Sensor9":
			b.Tags[i].Description = strPtr("Level sensor")
		}
	}
	kept := b.Tags[:0]
	for _, tag := range b.Tags {
		if tag.Name != "Timer1" {
			kept = append(kept, tag)
		}
	}
	b.Tags = append(kept, models.Tag{Name: "NewTag", DataType: "BOOL", Scope: models.ScopeController, TagType: "Base"})

	r := DiffSnapshots(a, b)
	assert.Equal(t, "v1", r.FromVersionID)
	assert.Equal(t, "v2", r.ToVersionID)
	assert.Equal(t, []string{"NewTag"}, r.Tags.Added)
	assert.Equal(t, []string{"Timer1"}, r.Tags.Removed)
	require.Len(t, r.Tags.Modified, 2)
	assert.Equal(t, "Sensor9", r.Tags.Modified[0].Key)
	assert.Equal(t, []string{"Description: (none) → Level sensor"}, r.Tags.Modified[0].Changes)
	assert.Equal(t, "Start", r.Tags.Modified[1].Key)
	assert.Equal(t, []string{"Data type: DINT → REAL"}, r.Tags.Modified[1].Changes)

	assert.Equal(t, KindCounts{Added: 1, Removed: 1, Modified: 2}, r.Summary.Tags)
	assert.Equal(t, 4, r.Summary.TotalChanges)
}

func TestDiffSnapshots_Symmetry(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	b.Tags = append(b.Tags, models.Tag{Name: "Extra", DataType: "BOOL", Scope: models.ScopeController})
	b.Modules = b.Modules[:1]

	fwd := DiffSnapshots(a, b)
	rev := DiffSnapshots(b, a)

	assert.Equal(t, fwd.Tags.Added, rev.Tags.Removed)
	assert.Equal(t, fwd.Tags.Removed, rev.Tags.Added)
	assert.Equal(t, fwd.Modules.Added, rev.Modules.Removed)
	assert.Equal(t, fwd.Modules.Removed, rev.Modules.Added)
	assert.Equal(t, fwd.Summary.TotalChanges, rev.Summary.TotalChanges)
}

func TestDiffSnapshots_Deterministic(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	for i := range b.Tags {
		b.Tags[i].Description = strPtr("changed " + b.Tags[i].Name)
	}

	first, err := json.Marshal(DiffSnapshots(a, b))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(DiffSnapshots(a, b))
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
	}
}

func TestDiffSnapshots_RoutineChanges(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	for i := range b.Rungs {
		rg := &b.Rungs[i]
		if rg.RoutineName == "MainRoutine" && rg.Number == 0 {
			rg.LogicText = "XIO(Start)OTE(Motor1.Run);"
			rg.Comment = nil
		}
	}
	b.Rungs = append(b.Rungs, models.Rung{ProgramName: "MainProgram", RoutineName: "MainRoutine", Number: 4, LogicText: "NOP();"})
	for i := range b.Routines {
		if b.Routines[i].Name == "MainRoutine" {
			b.Routines[i].RungCount = 5
		}
	}

	r := DiffSnapshots(a, b)
	require.Len(t, r.Routines.Modified, 1)
	mod := r.Routines.Modified[0]
	assert.Equal(t, "MainProgram/MainRoutine", mod.Key)
	assert.Equal(t, []string{
		"Rung count: 4 → 5",
		"Rung 0 logic: XIC(Start)OTE(Motor1.Run); → XIO(Start)OTE(Motor1.Run);",
		"Rung 0 comment: Start the motor → (none)",
		"Rung 4: added",
	}, mod.Changes)
	assert.Equal(t, 1, r.Summary.TotalChanges)
}

func TestDiffSnapshots_ModuleChanges(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	for i := range b.Modules {
		if b.Modules[i].Name == "DI_Rack" {
			b.Modules[i].Slot = intPtr(5)
			b.Modules[i].ConnectionInfo = json.RawMessage(`{"vendor":1}`)
		}
	}

	r := DiffSnapshots(a, b)
	require.Len(t, r.Modules.Modified, 1)
	assert.Equal(t, "DI_Rack", r.Modules.Modified[0].Key)
	assert.Equal(t, []string{"Slot: 3 → 5", "Connection info: changed"}, r.Modules.Modified[0].Changes)
}

func TestDiffSnapshots_DefinitionsNotInTotal(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	b.UDTs[0].Members[2].DataType = "REAL"
	b.AOIs[0].Revision = "1.3"
	b.Tasks[1].Rate = intPtr(20)

	r := DiffSnapshots(a, b)
	assert.Equal(t, 0, r.Summary.TotalChanges)
	assert.Equal(t, 3, r.Summary.DefinitionChanges)
	require.Len(t, r.UDTs.Modified, 1)
	assert.Equal(t, []string{"Member Speed data type: DINT → REAL"}, r.UDTs.Modified[0].Changes)
	require.Len(t, r.AOIs.Modified, 1)
	assert.Equal(t, []string{"Revision: 1.2 → 1.3"}, r.AOIs.Modified[0].Changes)
	require.Len(t, r.Tasks.Modified, 1)
	assert.Equal(t, []string{"Rate: 10 → 20"}, r.Tasks.Modified[0].Changes)
}

func TestDiffSnapshots_UDTMemberListChange(t *testing.T) {
	a := sampleSnapshot(t)
	b := clone(t, a)
	b.UDTs[0].Members = b.UDTs[0].Members[:3]

	r := DiffSnapshots(a, b)
	require.Len(t, r.UDTs.Modified, 1)
	changes := r.UDTs.Modified[0].Changes
	require.Len(t, changes, 1)
	assert.True(t, strings.HasPrefix(changes[0], "Members: ["))
	assert.Contains(t, changes[0], "Trend] → [")
}

func TestDiffSnapshots_MultiScopeKeys(t *testing.T) {
	a := models.NewSnapshot()
	a.Tags = []models.Tag{
		{Name: "Count", DataType: "DINT", Scope: models.ScopeController},
		{Name: "Count", DataType: "DINT", Scope: models.ProgramScope("P1")},
		{Name: "Solo", DataType: "BOOL", Scope: models.ScopeController},
	}
	b := models.NewSnapshot()
	b.Tags = []models.Tag{
		{Name: "Count", DataType: "INT", Scope: models.ProgramScope("P1")},
		{Name: "Solo", DataType: "BOOL", Scope: models.ScopeController},
	}

	r := DiffSnapshots(a, b)
	assert.Equal(t, []string{"controller/Count"}, r.Tags.Removed)
	assert.Empty(t, r.Tags.Added)
	require.Len(t, r.Tags.Modified, 1)
	assert.Equal(t, "program:P1/Count", r.Tags.Modified[0].Key)
	assert.Equal(t, []string{"Data type: DINT → INT"}, r.Tags.Modified[0].Changes)
}

func TestDiffSnapshots_ScopeMoveOfUniqueName(t *testing.T) {
	a := models.NewSnapshot()
	a.Tags = []models.Tag{{Name: "Flag", DataType: "BOOL", Scope: models.ScopeController}}
	b := models.NewSnapshot()
	b.Tags = []models.Tag{{Name: "Flag", DataType: "BOOL", Scope: models.ProgramScope("Main")}}

	r := DiffSnapshots(a, b)
	require.Len(t, r.Tags.Modified, 1)
	assert.Equal(t, []string{"Scope: controller → program:Main"}, r.Tags.Modified[0].Changes)
}

func TestDiffSnapshots_ReparseIsEqual(t *testing.T) {
	a := sampleSnapshot(t)
	b := sampleSnapshot(t)
	assert.Zero(t, DiffSnapshots(a, b).Summary.TotalChanges)

	k1, err := parser.NewL5KParser().Parse(context.Background(), []byte(testutil.SampleL5K))
	require.NoError(t, err)
	k2, err := parser.NewL5KParser().Parse(context.Background(), []byte(testutil.SampleL5K))
	require.NoError(t, err)
	r := DiffSnapshots(k1, k2)
	assert.Zero(t, r.Summary.TotalChanges)
	assert.Zero(t, r.Summary.DefinitionChanges)
}

func TestSameJSON(t *testing.T) {
	assert.True(t, sameJSON(nil, nil))
	assert.True(t, sameJSON(json.RawMessage(`{"a": 1}`), json.RawMessage(`{"a":1}`)))
	assert.False(t, sameJSON(json.RawMessage(`{"a":1}`), nil))
	assert.False(t, sameJSON(json.RawMessage(`{"a":1}`), json.RawMessage(`{"a":2}`)))
}
