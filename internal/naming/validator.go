package naming

import (
	"sort"

	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/observability"
)

// Violation is one name failing one rule.
type Violation struct {
	Kind      models.EntityKind `json:"kind"`
	Name      string            `json:"name"`
	Parent    string            `json:"parent,omitempty"`  // UDT or AOI owning a member/parameter
	Program   string            `json:"program,omitempty"` // program scope, if any
	FileName  string            `json:"fileName"`
	VersionID string            `json:"versionId"`
	RuleID    string            `json:"ruleId"`
	RuleName  string            `json:"ruleName"`
	Pattern   string            `json:"pattern"`
	Severity  models.Severity   `json:"severity"`
}

// SeverityCounts counts violations per tier.
type SeverityCounts struct {
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
}

// Report is the result of validating a project.
type Report struct {
	RuleSetID    string         `json:"ruleSetId"`
	RuleSetName  string         `json:"ruleSetName"`
	Violations   []Violation    `json:"violations"`
	Counts       SeverityCounts `json:"counts"`
	CheckedNames int            `json:"checkedNames"`
}

// HealthCounts returns the counts the health score penalizes. Info is
// advisory and excluded.
func (r *Report) HealthCounts() metrics.NamingCounts {
	return metrics.NamingCounts{
		Errors:   r.Counts.Error,
		Warnings: r.Counts.Warning,
		Checked:  r.CheckedNames,
	}
}

type entity struct {
	kind    models.EntityKind
	name    string
	parent  string
	program string
}

// entities lists every checkable name of a snapshot. Hidden UDT members and
// the implicit EnableIn/EnableOut parameters are compiler generated and
// skipped.
func entities(s *models.Snapshot) []entity {
	var out []entity
	for _, t := range s.Tags {
		prog := ""
		if !t.IsController() {
			prog = models.ScopeProgram(t.Scope)
		}
		out = append(out, entity{kind: models.EntityTag, name: t.Name, program: prog})
	}
	for _, u := range s.UDTs {
		out = append(out, entity{kind: models.EntityUDT, name: u.Name})
		for _, m := range u.Members {
			if m.Hidden {
				continue
			}
			out = append(out, entity{kind: models.EntityUDTMember, name: m.Name, parent: u.Name})
		}
	}
	for _, a := range s.AOIs {
		out = append(out, entity{kind: models.EntityAOI, name: a.Name})
		for _, p := range a.Parameters {
			if p.IsImplicit() {
				continue
			}
			out = append(out, entity{kind: models.EntityAOIParameter, name: p.Name, parent: a.Name})
		}
	}
	for _, r := range s.Routines {
		out = append(out, entity{kind: models.EntityRoutine, name: r.Name, program: r.ProgramName})
	}
	for _, p := range s.Programs {
		out = append(out, entity{kind: models.EntityProgram, name: p.Name, program: p.Name})
	}
	for _, t := range s.Tasks {
		out = append(out, entity{kind: models.EntityTask, name: t.Name})
	}
	for _, m := range s.Modules {
		out = append(out, entity{kind: models.EntityModule, name: m.Name})
	}
	return out
}

// Validate checks every entity name of the snapshots against the active
// rules. A name checked by several rules yields one violation per failed
// rule; CheckedNames counts names that at least one rule applied to.
func Validate(rs *CompiledRuleSet, snaps []*models.Snapshot) *Report {
	rep := &Report{
		RuleSetID:   rs.ID,
		RuleSetName: rs.Name,
		Violations:  make([]Violation, 0),
	}

	for _, s := range snaps {
		for _, e := range entities(s) {
			checked := false
			for _, r := range rs.rules {
				if !r.appliesTo(e.kind, e.program) {
					continue
				}
				checked = true
				if r.re.MatchString(e.name) {
					continue
				}
				rep.Violations = append(rep.Violations, Violation{
					Kind:      e.kind,
					Name:      e.name,
					Parent:    e.parent,
					Program:   e.program,
					FileName:  s.FileName,
					VersionID: s.ID,
					RuleID:    r.ID,
					RuleName:  r.Name,
					Pattern:   r.Pattern,
					Severity:  r.Severity,
				})
			}
			if checked {
				rep.CheckedNames++
			}
		}
	}

	for _, v := range rep.Violations {
		switch v.Severity {
		case models.SeverityError:
			rep.Counts.Error++
		case models.SeverityWarning:
			rep.Counts.Warning++
		case models.SeverityInfo:
			rep.Counts.Info++
		}
	}
	observability.NamingViolations.WithLabelValues(string(models.SeverityError)).Add(float64(rep.Counts.Error))
	observability.NamingViolations.WithLabelValues(string(models.SeverityWarning)).Add(float64(rep.Counts.Warning))
	observability.NamingViolations.WithLabelValues(string(models.SeverityInfo)).Add(float64(rep.Counts.Info))

	sort.SliceStable(rep.Violations, func(i, j int) bool {
		a, b := rep.Violations[i], rep.Violations[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		if a.Program != b.Program {
			return a.Program < b.Program
		}
		if a.FileName != b.FileName {
			return a.FileName < b.FileName
		}
		return a.RuleID < b.RuleID
	})
	return rep
}
