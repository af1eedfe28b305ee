package metrics

import (
	"math"

	"github.com/plc-analyzer/backend/internal/models"
)

// Composite weights. With the naming component enabled the other three are
// scaled by 0.8 and naming takes the remaining 0.20.
const (
	weightEfficiency    = 0.40
	weightDocumentation = 0.35
	weightUsage         = 0.25
	weightNaming        = 0.20
)

// Reasons reported by not-applicable scores.
const (
	ReasonNoTagsSection  = "no snapshot exports the Tags section"
	ReasonNoLogic        = "no snapshot exports program logic"
	ReasonNoRungs        = "no ladder rungs to measure"
	ReasonNoRuleSet      = "no naming rule set resolved"
	ReasonNoNamesChecked = "no names checked by the rule set"
	ReasonNoSubScores    = "no sub-score could be computed"
	ReasonNoSnapshots    = "project has no parsed snapshots"
)

// Stats are the raw counts the scores are computed from.
type Stats struct {
	Snapshots       int  `json:"snapshots"`
	TotalTags       int  `json:"totalTags"`
	UnusedTags      int  `json:"unusedTags"`
	TotalReferences int  `json:"totalReferences"`
	TotalRungs      int  `json:"totalRungs"`
	CommentedRungs  int  `json:"commentedRungs"`
	TagsExported    bool `json:"tagsExported"`
	LogicExported   bool `json:"logicExported"`
}

// NamingCounts feed the optional naming component. Info violations never
// count.
type NamingCounts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Checked  int `json:"checked"`
}

// HealthOptions selects the optional parts of the computation.
type HealthOptions struct {
	Unused UnusedOptions
	// IncludeNaming enables the fourth component. Naming nil with
	// IncludeNaming set means no rule set applied.
	IncludeNaming bool
	Naming        *NamingCounts
}

// Health is the composite score with its components.
type Health struct {
	Score           Score  `json:"score"`
	Partial         bool   `json:"partial"`
	TagEfficiency   Score  `json:"tagEfficiency"`
	Documentation   Score  `json:"documentation"`
	TagUsage        Score  `json:"tagUsage"`
	Naming          *Score `json:"naming,omitempty"`
	CommentCoverage Score  `json:"commentCoverage"`
	Stats           Stats  `json:"stats"`
}

// CommentCoverage counts commented rungs. A comment of only whitespace does
// not count.
func CommentCoverage(rungs []models.Rung) (commented, total int) {
	for _, r := range rungs {
		if r.HasComment() {
			commented++
		}
	}
	return commented, len(rungs)
}

// CoveragePercent returns the rounded comment coverage, or not applicable
// when there are no rungs.
func CoveragePercent(commented, total int) Score {
	if total == 0 {
		return NotApplicable(ReasonNoRungs)
	}
	return Computed(round(float64(commented) / float64(total) * 100))
}

// CollectStats aggregates counts over the snapshots of a project.
func CollectStats(snaps []*models.Snapshot, opts UnusedOptions) Stats {
	st := Stats{Snapshots: len(snaps)}
	for _, s := range snaps {
		if s.Sections.Tags {
			st.TagsExported = true
		}
		if s.Sections.Programs {
			st.LogicExported = true
		}
		st.TotalTags += len(s.Tags)
		st.UnusedTags += len(FindUnusedTags(s.Tags, s.References, opts))
		st.TotalReferences += len(s.References)
		c, n := CommentCoverage(s.Rungs)
		st.CommentedRungs += c
		st.TotalRungs += n
	}
	return st
}

// ComputeHealth scores the snapshots of one project.
func ComputeHealth(snaps []*models.Snapshot, opts HealthOptions) Health {
	if len(snaps) == 0 {
		na := NotApplicable(ReasonNoSnapshots)
		return Health{
			Score:           na,
			TagEfficiency:   na,
			Documentation:   na,
			TagUsage:        na,
			CommentCoverage: na,
		}
	}
	return Scores(CollectStats(snaps, opts.Unused), opts)
}

// Scores computes the health components from raw counts.
func Scores(st Stats, opts HealthOptions) Health {
	h := Health{Stats: st}

	// An exported but empty tag section is vacuously efficient whether or
	// not logic was exported.
	switch {
	case !st.TagsExported:
		h.TagEfficiency = NotApplicable(ReasonNoTagsSection)
		h.TagUsage = NotApplicable(ReasonNoTagsSection)
	case st.TotalTags == 0:
		h.TagEfficiency = Computed(100)
		h.TagUsage = Computed(0)
	case !st.LogicExported:
		h.TagEfficiency = NotApplicable(ReasonNoLogic)
		h.TagUsage = NotApplicable(ReasonNoLogic)
	default:
		ratio := float64(st.UnusedTags) / float64(st.TotalTags)
		h.TagEfficiency = Computed(clamp(round(100 - ratio*200)))
		density := float64(st.TotalReferences) / float64(st.TotalTags)
		h.TagUsage = Computed(clamp(round(density * 20)))
	}

	h.CommentCoverage = CoveragePercent(st.CommentedRungs, st.TotalRungs)
	h.Documentation = h.CommentCoverage

	weights := []float64{weightEfficiency, weightDocumentation, weightUsage}
	parts := []Score{h.TagEfficiency, h.Documentation, h.TagUsage}
	if opts.IncludeNaming {
		n := namingScore(opts.Naming)
		h.Naming = &n
		for i := range weights {
			weights[i] *= 1 - weightNaming
		}
		weights = append(weights, weightNaming)
		parts = append(parts, n)
	}

	var sum, total float64
	for i, p := range parts {
		v, ok := p.Value()
		if !ok {
			h.Partial = true
			continue
		}
		sum += weights[i] * float64(v)
		total += weights[i]
	}
	if total == 0 {
		h.Score = NotApplicable(ReasonNoSubScores)
		return h
	}
	h.Score = Computed(clamp(round(sum / total)))
	return h
}

// namingScore penalizes errors fully and warnings by half, reaching zero
// once the weighted violation ratio hits 50%.
func namingScore(c *NamingCounts) Score {
	if c == nil {
		return NotApplicable(ReasonNoRuleSet)
	}
	if c.Checked == 0 {
		return NotApplicable(ReasonNoNamesChecked)
	}
	weighted := float64(c.Errors) + 0.5*float64(c.Warnings)
	return Computed(clamp(round(100 - weighted/float64(c.Checked)*200)))
}

func round(f float64) int {
	return int(math.Round(f))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
