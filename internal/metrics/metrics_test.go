package metrics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/parser"
	"github.com/plc-analyzer/backend/internal/refs"
	"github.com/plc-analyzer/backend/internal/testutil"
)

func tagNames(tags []models.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

func refsTo(names ...string) []models.TagReference {
	out := make([]models.TagReference, len(names))
	for i, n := range names {
		out[i] = models.TagReference{TagName: n, UsageType: models.UsageRead}
	}
	return out
}

func TestFindUnusedTags_Hierarchy(t *testing.T) {
	tags := []models.Tag{
		{Name: "Motor1.Status"},
		{Name: "Valve2[0]"},
		{Name: "Sensor9"},
		{Name: "Pump.Cfg[3].Limit"},
	}
	refs := refsTo("Motor1", "Valve2", "Pump.Cfg")

	unused := FindUnusedTags(tags, refs, UnusedOptions{})
	assert.Equal(t, []string{"Sensor9"}, tagNames(unused))
}

func TestFindUnusedTags_MemberReferences(t *testing.T) {
	tags := []models.Tag{{Name: "Motor1"}, {Name: "Valve2"}, {Name: "Sensor9"}}
	refs := refsTo("Motor1.Run", "Valve2[Idx].Open")

	assert.Equal(t, []string{"Motor1", "Valve2", "Sensor9"},
		tagNames(FindUnusedTags(tags, refs, UnusedOptions{})))
	assert.Equal(t, []string{"Sensor9"},
		tagNames(FindUnusedTags(tags, refs, UnusedOptions{CountMemberReferences: true})))
}

func TestFindUnusedTags_NoRefs(t *testing.T) {
	tags := []models.Tag{{Name: "A"}, {Name: "B"}}
	assert.Equal(t, []string{"A", "B"}, tagNames(FindUnusedTags(tags, nil, UnusedOptions{})))
	assert.NotNil(t, FindUnusedTags(nil, nil, UnusedOptions{}))
}

func TestPathPrefixes(t *testing.T) {
	assert.Equal(t, []string{"A", "A.B", "A.B[2]"}, pathPrefixes("A.B[2].C"))
	assert.Equal(t, []string{"Arr"}, pathPrefixes("Arr[Idx.Field]"))
	assert.Nil(t, pathPrefixes("Plain"))
}

func TestScores_Scenario(t *testing.T) {
	h := Scores(Stats{
		TotalTags: 10, UnusedTags: 3, TotalReferences: 40,
		TotalRungs: 10, CommentedRungs: 6,
		TagsExported: true, LogicExported: true,
	}, HealthOptions{})

	assertScore(t, 40, h.TagEfficiency)
	assertScore(t, 60, h.Documentation)
	assertScore(t, 80, h.TagUsage)
	assertScore(t, 57, h.Score)
	assert.False(t, h.Partial)
	assert.Nil(t, h.Naming)
}

func TestScores_ZeroTags(t *testing.T) {
	h := Scores(Stats{TagsExported: true, LogicExported: true, TotalRungs: 4, CommentedRungs: 1}, HealthOptions{})
	assertScore(t, 100, h.TagEfficiency)
	assertScore(t, 0, h.TagUsage)
	assertScore(t, 25, h.Documentation)
	// round(0.40*100 + 0.35*25 + 0.25*0) = round(48.75)
	assertScore(t, 49, h.Score)

	t.Run("empty tags section without logic", func(t *testing.T) {
		h := Scores(Stats{TagsExported: true}, HealthOptions{})
		assertScore(t, 100, h.TagEfficiency)
		assertScore(t, 0, h.TagUsage)
		assert.Equal(t, ReasonNoRungs, h.Documentation.Reason())
		// round((0.40*100 + 0.25*0) / 0.65)
		assertScore(t, 62, h.Score)
		assert.True(t, h.Partial)
	})
}

func TestScores_Bounds(t *testing.T) {
	sections := []struct{ tags, logic bool }{{true, true}, {true, false}, {false, true}, {false, false}}
	for _, sec := range sections {
		scoresWithinBounds(t, sec.tags, sec.logic)
	}
}

func scoresWithinBounds(t *testing.T, tagsExported, logicExported bool) {
	t.Helper()
	for tags := 0; tags <= 12; tags += 3 {
		for unused := 0; unused <= tags; unused++ {
			for refs := 0; refs <= 120; refs += 17 {
				for rungs := 0; rungs <= 5; rungs++ {
					for commented := 0; commented <= rungs; commented++ {
						h := Scores(Stats{
							TotalTags: tags, UnusedTags: unused, TotalReferences: refs,
							TotalRungs: rungs, CommentedRungs: commented,
							TagsExported: tagsExported, LogicExported: logicExported,
						}, HealthOptions{IncludeNaming: true, Naming: &NamingCounts{Errors: unused, Warnings: refs % 5, Checked: tags + 1}})
						for _, s := range []Score{h.Score, h.TagEfficiency, h.TagUsage, h.Documentation, *h.Naming} {
							if v, ok := s.Value(); ok {
								require.GreaterOrEqual(t, v, 0)
								require.LessOrEqual(t, v, 100)
							}
						}
					}
				}
			}
		}
	}
}

func TestScores_NotApplicable(t *testing.T) {
	t.Run("tags section absent", func(t *testing.T) {
		h := Scores(Stats{TotalRungs: 2, CommentedRungs: 1, LogicExported: true}, HealthOptions{})
		assert.False(t, h.TagEfficiency.IsComputed())
		assert.Equal(t, ReasonNoTagsSection, h.TagEfficiency.Reason())
		assert.False(t, h.TagUsage.IsComputed())
		assertScore(t, 50, h.Score)
		assert.True(t, h.Partial)
	})

	t.Run("tags only export", func(t *testing.T) {
		h := Scores(Stats{TotalTags: 2, UnusedTags: 2, TagsExported: true}, HealthOptions{})
		assert.Equal(t, ReasonNoLogic, h.TagEfficiency.Reason())
		assert.Equal(t, ReasonNoRungs, h.Documentation.Reason())
		assert.False(t, h.Score.IsComputed())
		assert.Equal(t, ReasonNoSubScores, h.Score.Reason())
	})

	t.Run("no snapshots", func(t *testing.T) {
		h := ComputeHealth(nil, HealthOptions{})
		assert.Equal(t, ReasonNoSnapshots, h.Score.Reason())
	})
}

func TestScores_Naming(t *testing.T) {
	base := Stats{
		TotalTags: 10, UnusedTags: 3, TotalReferences: 40,
		TotalRungs: 10, CommentedRungs: 6,
		TagsExported: true, LogicExported: true,
	}

	t.Run("weights", func(t *testing.T) {
		h := Scores(base, HealthOptions{IncludeNaming: true, Naming: &NamingCounts{Errors: 1, Warnings: 2, Checked: 20}})
		require.NotNil(t, h.Naming)
		// 100 - (1 + 1)/20*200 = 80
		assertScore(t, 80, *h.Naming)
		// 0.32*40 + 0.28*60 + 0.20*80 + 0.20*80 = 61.6
		assertScore(t, 62, h.Score)
	})

	t.Run("no rule set is partial", func(t *testing.T) {
		h := Scores(base, HealthOptions{IncludeNaming: true})
		require.NotNil(t, h.Naming)
		assert.Equal(t, ReasonNoRuleSet, h.Naming.Reason())
		assert.True(t, h.Partial)
		assertScore(t, 57, h.Score)
	})

	t.Run("saturates at zero", func(t *testing.T) {
		h := Scores(base, HealthOptions{IncludeNaming: true, Naming: &NamingCounts{Errors: 9, Checked: 10}})
		assertScore(t, 0, *h.Naming)
	})
}

func TestComputeHealth_Sample(t *testing.T) {
	snap, err := parser.NewL5XParser().Parse(context.Background(), []byte(testutil.SampleL5X))
	require.NoError(t, err)
	snap.References, err = refs.NewExtractor(nil, 2).Extract(context.Background(), snap)
	require.NoError(t, err)

	h := ComputeHealth([]*models.Snapshot{snap}, HealthOptions{Unused: UnusedOptions{CountMemberReferences: true}})
	assert.Equal(t, 8, h.Stats.TotalTags)
	assert.Equal(t, 9, h.Stats.TotalReferences)
	assert.Equal(t, 4, h.Stats.TotalRungs)
	assert.Equal(t, 2, h.Stats.CommentedRungs)
	assertScore(t, 50, h.CommentCoverage)

	unused := ProjectUnusedTags([]*models.Snapshot{snap}, UnusedOptions{CountMemberReferences: true})
	names := make([]string, len(unused))
	for i, u := range unused {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"Valve2", "Sensor9", "RunAlias"}, names)
	assert.Equal(t, 3, h.Stats.UnusedTags)
}

func TestScore_JSON(t *testing.T) {
	data, err := json.Marshal(Computed(57))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"computed","value":57}`, string(data))

	data, err = json.Marshal(NotApplicable("no rungs"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"not_applicable","reason":"no rungs"}`, string(data))

	data, err = json.Marshal(Computed(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"computed","value":0}`, string(data))

	var s Score
	require.NoError(t, json.Unmarshal([]byte(`{"status":"computed","value":12}`), &s))
	assertScore(t, 12, s)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"maybe"}`), &s))
}

func assertScore(t *testing.T, want int, s Score) {
	t.Helper()
	v, ok := s.Value()
	require.True(t, ok, "score not computed: %s", s.Reason())
	assert.Equal(t, want, v)
}
