package naming

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func mustCompile(t *testing.T, rules ...models.NamingRule) *CompiledRuleSet {
	t.Helper()
	c, err := Compile(models.RuleSet{ID: "rs1", Name: "test", Rules: rules})
	require.NoError(t, err)
	return c
}

func rule(id, pattern string, sev models.Severity, kinds ...models.EntityKind) models.NamingRule {
	return models.NamingRule{ID: id, Name: id, Pattern: pattern, Severity: sev, IsActive: true, AppliesTo: kinds}
}

func tagsOnly(t *testing.T) *models.Snapshot {
	t.Helper()
	snap, err := parser.NewL5XParser().Parse(context.Background(), []byte(testutil.TagsOnlyL5X))
	require.NoError(t, err)
	snap.ID = "v1"
	snap.FileName = "tags.L5X"
	return snap
}

func TestValidate_MatchPass(t *testing.T) {
	rs := mustCompile(t, rule("di", "^DI_", models.SeverityError, models.EntityTag))
	rep := Validate(rs, []*models.Snapshot{tagsOnly(t)})

	require.Len(t, rep.Violations, 1)
	v := rep.Violations[0]
	assert.Equal(t, "Stop", v.Name)
	assert.Equal(t, models.EntityTag, v.Kind)
	assert.Equal(t, models.SeverityError, v.Severity)
	assert.Equal(t, "di", v.RuleID)
	assert.Equal(t, "^DI_", v.Pattern)
	assert.Equal(t, "tags.L5X", v.FileName)
	assert.Equal(t, 2, rep.CheckedNames)
	assert.Equal(t, SeverityCounts{Error: 1}, rep.Counts)
}

func TestValidate_StartIsViolation(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Tags = []models.Tag{
		{Name: "DI_Start", Scope: models.ScopeController},
		{Name: "Start", Scope: models.ScopeController},
	}
	for _, sev := range []models.Severity{models.SeverityError, models.SeverityWarning, models.SeverityInfo} {
		rep := Validate(mustCompile(t, rule("di", "^DI_", sev, models.EntityTag)), []*models.Snapshot{snap})
		require.Len(t, rep.Violations, 1)
		assert.Equal(t, "Start", rep.Violations[0].Name)
		assert.Equal(t, sev, rep.Violations[0].Severity)
	}
}

func TestValidate_SkipsGeneratedNames(t *testing.T) {
	snap, err := parser.NewL5XParser().Parse(context.Background(), []byte(testutil.SampleL5X))
	require.NoError(t, err)

	rs := mustCompile(t,
		rule("members", "^[A-Z][a-z]+$", models.SeverityWarning, models.EntityUDTMember),
		rule("params", "^[A-Z][a-z]+$", models.SeverityWarning, models.EntityAOIParameter),
	)
	rep := Validate(rs, []*models.Snapshot{snap})
	assert.Empty(t, rep.Violations)
	// Run, Speed, Trend and Cmd, Open, Fault
	assert.Equal(t, 6, rep.CheckedNames)
}

func TestValidate_InactiveAndScope(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Tags = []models.Tag{
		{Name: "x1", Scope: models.ScopeController},
		{Name: "x2", Scope: models.ProgramScope("Line1_Main")},
		{Name: "x3", Scope: models.ProgramScope("Utility")},
	}
	snap.Routines = []models.Routine{{Name: "main", ProgramName: "Line1_Main"}}

	inactive := rule("off", "^Z", models.SeverityError, models.EntityTag)
	inactive.IsActive = false
	scoped := rule("line", "^[A-Z]", models.SeverityWarning, models.EntityTag, models.EntityRoutine)
	scoped.Scope = "Line*"

	rep := Validate(mustCompile(t, inactive, scoped), []*models.Snapshot{snap})
	require.Len(t, rep.Violations, 2)
	assert.Equal(t, models.EntityRoutine, rep.Violations[0].Kind)
	assert.Equal(t, "main", rep.Violations[0].Name)
	assert.Equal(t, "x2", rep.Violations[1].Name)
	assert.Equal(t, "Line1_Main", rep.Violations[1].Program)
	assert.Equal(t, 2, rep.CheckedNames)
	assert.Equal(t, 0, rep.HealthCounts().Errors)
	assert.Equal(t, 2, rep.HealthCounts().Warnings)
}

func TestValidate_SortedAcrossRules(t *testing.T) {
	snap := models.NewSnapshot()
	snap.Tags = []models.Tag{{Name: "b", Scope: models.ScopeController}, {Name: "a", Scope: models.ScopeController}}
	rs := mustCompile(t,
		rule("r2", "^X", models.SeverityInfo, models.EntityTag),
		rule("r1", "^Y", models.SeverityError, models.EntityTag),
	)
	rep := Validate(rs, []*models.Snapshot{snap})
	require.Len(t, rep.Violations, 4)
	got := make([]string, 0, 4)
	for _, v := range rep.Violations {
		got = append(got, v.Name+"/"+v.RuleID)
	}
	assert.Equal(t, []string{"a/r1", "a/r2", "b/r1", "b/r2"}, got)
	assert.Equal(t, SeverityCounts{Error: 2, Info: 2}, rep.Counts)
	assert.Equal(t, 2, rep.HealthCounts().Errors)
	assert.Equal(t, 0, rep.HealthCounts().Warnings)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		rule models.NamingRule
		want error
	}{
		{"bad regex", rule("r", "^(DI_", models.SeverityError, models.EntityTag), ErrInvalidPattern},
		{"empty pattern", rule("r", "", models.SeverityError, models.EntityTag), ErrInvalidPattern},
		{"bad severity", rule("r", "^A", "fatal", models.EntityTag), ErrInvalidRule},
		{"no kinds", rule("r", "^A", models.SeverityError), ErrInvalidRule},
		{"unknown kind", rule("r", "^A", models.SeverityError, "rung"), ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(models.RuleSet{Rules: []models.NamingRule{tt.rule}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}

	t.Run("bad scope glob", func(t *testing.T) {
		r := rule("r", "^A", models.SeverityError, models.EntityTag)
		r.Scope = "Line[*"
		_, err := Compile(models.RuleSet{Rules: []models.NamingRule{r}})
		assert.ErrorIs(t, err, ErrInvalidScope)
	})
}
