package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/plc-analyzer/backend/internal/diff"
	"github.com/plc-analyzer/backend/internal/metrics"
	"github.com/plc-analyzer/backend/internal/models"
)

// cell escapes a value for a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", " ")
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func scoreText(s metrics.Score) string {
	if v, ok := s.Value(); ok {
		return fmt.Sprintf("%d", v)
	}
	return "n/a (" + s.Reason() + ")"
}

// SnapshotMarkdown renders a summary of one snapshot. health may be nil.
func SnapshotMarkdown(snap *models.Snapshot, health *metrics.Health) string {
	var b strings.Builder
	counts := snap.Counts()

	b.WriteString("# " + cell(nonEmpty(opt(snap.ControllerName), snap.FileName)) + "\n\n")
	b.WriteString("| Property | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| File | %s |\n", cell(snap.FileName))
	fmt.Fprintf(&b, "| Format | %s |\n", strings.ToUpper(string(snap.Kind)))
	fmt.Fprintf(&b, "| Schema revision | %s |\n", cell(nonEmpty(snap.SchemaRevision, "unknown")))
	fmt.Fprintf(&b, "| Software revision | %s |\n", cell(nonEmpty(opt(snap.SoftwareRevision), "unknown")))
	fmt.Fprintf(&b, "| Target type | %s |\n", cell(nonEmpty(opt(snap.TargetType), "unknown")))
	fmt.Fprintf(&b, "| Parsed at | %s |\n\n", snap.ParsedAt.UTC().Format(time.RFC3339))

	b.WriteString("## Contents\n")
	b.WriteString("| Entity | Count |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Tags | %d |\n", counts.Tags)
	fmt.Fprintf(&b, "| UDTs | %d |\n", counts.UDTs)
	fmt.Fprintf(&b, "| AOIs | %d |\n", counts.AOIs)
	fmt.Fprintf(&b, "| Programs | %d |\n", counts.Programs)
	fmt.Fprintf(&b, "| Routines | %d |\n", counts.Routines)
	fmt.Fprintf(&b, "| Rungs | %d |\n", counts.Rungs)
	fmt.Fprintf(&b, "| Modules | %d |\n", counts.Modules)
	fmt.Fprintf(&b, "| Tasks | %d |\n", counts.Tasks)
	fmt.Fprintf(&b, "| References | %d |\n\n", counts.References)

	if health != nil {
		b.WriteString("## Health\n")
		b.WriteString("| Score | Value |\n")
		b.WriteString("| --- | --- |\n")
		fmt.Fprintf(&b, "| Overall | %s |\n", scoreText(health.Score))
		fmt.Fprintf(&b, "| Tag efficiency | %s |\n", scoreText(health.TagEfficiency))
		fmt.Fprintf(&b, "| Documentation | %s |\n", scoreText(health.Documentation))
		fmt.Fprintf(&b, "| Tag usage | %s |\n", scoreText(health.TagUsage))
		if health.Naming != nil {
			fmt.Fprintf(&b, "| Naming | %s |\n", scoreText(*health.Naming))
		}
		if health.Partial {
			b.WriteString("\nSome components could not be computed from this export.\n")
		}
		b.WriteString("\n")
	}

	if len(snap.Tasks) > 0 {
		b.WriteString("## Tasks\n")
		b.WriteString("| Task | Type | Priority | Programs |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, t := range snap.Tasks {
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n", cell(t.Name), t.Type, t.Priority, cell(strings.Join(t.ScheduledPrograms, ", ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DiffMarkdown renders a change report.
func DiffMarkdown(r *diff.Report) string {
	var b strings.Builder
	b.WriteString("# Change Report\n\n")
	fmt.Fprintf(&b, "From `%s` to `%s`.\n\n", r.FromVersionID, r.ToVersionID)

	b.WriteString("## Summary\n")
	b.WriteString("| Entity | Added | Removed | Modified |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, row := range []struct {
		name string
		c    diff.KindCounts
	}{
		{"Tags", r.Summary.Tags},
		{"Routines", r.Summary.Routines},
		{"Modules", r.Summary.Modules},
	} {
		fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", row.name, row.c.Added, row.c.Removed, row.c.Modified)
	}
	fmt.Fprintf(&b, "\nTotal changes: %d. Definition changes: %d.\n\n", r.Summary.TotalChanges, r.Summary.DefinitionChanges)

	writeEntityDiff(&b, "Tags", r.Tags)
	writeEntityDiff(&b, "Routines", r.Routines)
	writeEntityDiff(&b, "Modules", r.Modules)
	writeEntityDiff(&b, "Data Types", r.UDTs)
	writeEntityDiff(&b, "Add-On Instructions", r.AOIs)
	writeEntityDiff(&b, "Tasks", r.Tasks)
	return b.String()
}

func writeEntityDiff(b *strings.Builder, title string, d diff.EntityDiff) {
	if d.Count() == 0 {
		return
	}
	b.WriteString("## " + title + "\n")
	for _, k := range d.Added {
		b.WriteString("- Added `" + k + "`\n")
	}
	for _, k := range d.Removed {
		b.WriteString("- Removed `" + k + "`\n")
	}
	for _, m := range d.Modified {
		b.WriteString("- Modified `" + m.Key + "`\n")
		for _, c := range m.Changes {
			b.WriteString("  - " + c + "\n")
		}
	}
	b.WriteString("\n")
}
